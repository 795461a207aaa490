package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/wonny/tradepulse/pkg/config"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestNewSetsGlobalLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&config.Config{Env: "development", LogLevel: tt.level}, &buf)
			if log == nil {
				t.Fatal("Expected logger to be created")
			}
			if zerolog.GlobalLevel() != tt.want {
				t.Errorf("Expected global level %v, got %v", tt.want, zerolog.GlobalLevel())
			}
		})
	}
}

func TestLevelMethods(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log := &Logger{zlog: zerolog.New(&buf)}

	tests := []struct {
		name      string
		logFunc   func()
		wantMsg   string
		wantLevel string
	}{
		{"debug", func() { log.Debug("prompt built") }, "prompt built", "debug"},
		{"info", func() { log.Info("run completed") }, "run completed", "info"},
		{"warnf", func() { log.Warnf("provider %s failed", "llm7") }, "provider llm7 failed", "warn"},
		{"errorf", func() { log.Errorf("store write: %s", "timeout") }, "store write: timeout", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()
			entry := decodeEntry(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("Expected level %q, got %q", tt.wantLevel, entry["level"])
			}
			if entry["message"] != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, entry["message"])
			}
		})
	}
}

func TestEnrichment(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log := &Logger{zlog: zerolog.New(&buf)}

	log.Component("analyzer").
		WithFields(map[string]interface{}{"symbol": "AAPL", "confidence": 0.8}).
		WithError(errors.New("provider timeout")).
		Warn("fallback analysis used")

	entry := decodeEntry(t, &buf)
	if entry["component"] != "analyzer" {
		t.Errorf("Expected component analyzer, got %v", entry["component"])
	}
	if entry["symbol"] != "AAPL" {
		t.Errorf("Expected symbol AAPL, got %v", entry["symbol"])
	}
	if entry["confidence"] != 0.8 {
		t.Errorf("Expected confidence 0.8, got %v", entry["confidence"])
	}
	if entry["error"] != "provider timeout" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRunAndSymbolTags(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "production", LogLevel: "info"}, &buf)

	log.WithRun("run-1", "2024-03-15").WithSymbol("TSLA").Info("analysis done")

	entry := decodeEntry(t, &buf)
	want := map[string]string{
		"service": ServiceName,
		"env":     "production",
		"run_id":  "run-1",
		"date":    "2024-03-15",
		"symbol":  "TSLA",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("Expected %s=%q, got %v", k, v, entry[k])
		}
	}
	if _, ok := entry["caller"]; ok {
		t.Error("Expected no caller field outside development")
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "info", LogFormat: "console"}, &buf)
	log.Info("daily report saved")

	if !strings.Contains(buf.String(), "daily report saved") {
		t.Errorf("Expected console output to contain message, got: %s", buf.String())
	}
}

func TestNopDiscards(t *testing.T) {
	// Must not panic and must not write anywhere
	NewNop().WithField("k", "v").Error("ignored")
}
