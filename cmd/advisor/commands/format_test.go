package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradepulse/internal/contracts"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func TestPrintHeader(t *testing.T) {
	buf := captureStdout(t)

	PrintHeader("Daily Analysis", [2]string{"Date", "2024-03-15"})

	out := buf.String()
	assert.Contains(t, out, "  Daily Analysis\n")
	assert.Contains(t, out, "  Date      : 2024-03-15\n")
	assert.Equal(t, 1, strings.Count(out, strings.Repeat("═", ruleWidth)))
	assert.Equal(t, 2, strings.Count(out, strings.Repeat("─", ruleWidth)))
}

func TestTableAlignsColumns(t *testing.T) {
	buf := captureStdout(t)

	tbl := newTable("Provider", "Breaker")
	tbl.row("llm7", "closed")
	tbl.row("openai", "open")
	tbl.flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Provider  Breaker", lines[0])
	assert.Equal(t, "────────  ───────", lines[1])
	// 두 번째 열은 같은 위치에서 시작
	assert.Equal(t, strings.Index(lines[0], "Breaker"), strings.Index(lines[2], "closed"))
	assert.Equal(t, strings.Index(lines[0], "Breaker"), strings.Index(lines[3], "open"))
}

func TestPrintJSON(t *testing.T) {
	buf := captureStdout(t)

	require.NoError(t, PrintJSON(contracts.Health{Status: contracts.HealthHealthy, Detail: "ok"}))
	assert.Contains(t, buf.String(), "\n  \"status\": \"healthy\"")
}

func TestStatusLines(t *testing.T) {
	buf := captureStdout(t)

	PrintSuccess("saved")
	PrintError("failed")
	PrintKeyValue("Bundles", "35", 10)

	assert.Equal(t, "✅ saved\n❌ failed\n   Bundles    : 35\n", buf.String())
}
