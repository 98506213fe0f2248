package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf, Component: ComponentLedger})
	l.WithComponent(ComponentSync).Info("queued", FieldRecordKind, "categories")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line[FieldRecordKind] != "categories" {
		t.Fatalf("missing record kind: %v", line)
	}
	if l.Component() != ComponentLedger {
		t.Fatalf("unexpected component %q", l.Component())
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})
	ctx := IntoContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("expected logger from context")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Level: slog.LevelDebug}))
	r := httptest.NewRequest("GET", "/api/ledger", nil)

	sl.LogHTTPEnd(context.Background(), r, 503, 12, "1.2.3.4")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("5xx should log at error: %q", buf.String())
	}
	buf.Reset()
	sl.LogHTTPEnd(context.Background(), r, 404, 1, "1.2.3.4")
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("4xx should log at warn: %q", buf.String())
	}
	buf.Reset()
	sl.LogError(context.Background(), "boom", errors.New("bad"), OpReload, nil)
	if !strings.Contains(buf.String(), "error=bad") || !strings.Contains(buf.String(), "operation=reload") {
		t.Fatalf("unexpected error log %q", buf.String())
	}
}
