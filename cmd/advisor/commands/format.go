package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const ruleWidth = 59

// stdout is swapped in tests
var stdout io.Writer = os.Stdout

// PrintHeader prints a boxed title followed by aligned key fields
func PrintHeader(title string, fields ...[2]string) {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, strings.Repeat("═", ruleWidth))
	fmt.Fprintf(stdout, "  %s\n", title)
	fmt.Fprintln(stdout, strings.Repeat("─", ruleWidth))
	if len(fields) == 0 {
		return
	}
	for _, f := range fields {
		fmt.Fprintf(stdout, "  %-10s: %s\n", f[0], f[1])
	}
	fmt.Fprintln(stdout, strings.Repeat("─", ruleWidth))
}

func PrintWarning(message string) {
	fmt.Fprintf(stdout, "\n⚠️  %s\n\n", message)
}

func PrintSuccess(message string) {
	fmt.Fprintf(stdout, "✅ %s\n", message)
}

func PrintError(message string) {
	fmt.Fprintf(stdout, "❌ %s\n", message)
}

// PrintKeyValue prints one indented "key : value" line
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(stdout, "   %-*s : %s\n", keyWidth, key, value)
}

// table aligns columns on flush; headers are underlined
type table struct {
	w *tabwriter.Writer
}

func newTable(columns ...string) *table {
	t := &table{w: tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)}
	t.row(columns...)
	rules := make([]string, len(columns))
	for i, c := range columns {
		rules[i] = strings.Repeat("─", len([]rune(c)))
	}
	t.row(rules...)
	return t
}

func (t *table) row(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *table) flush() {
	_ = t.w.Flush()
}

// PrintJSON writes v as indented JSON
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
