package logger

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestTextHandlerOutput(t *testing.T) {
	var buf strings.Builder
	h := &textHandler{
		handler: slog.NewTextHandler(&buf, nil),
		writer:  &buf,
	}

	// Zero time keeps the timestamp off even in verbose mode.
	rec := slog.NewRecord(time.Time{}, slog.LevelInfo, "agent started", 0)
	rec.AddAttrs(slog.String("agent", "assistant"))

	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := buf.String()
	if want := "INFO agent started agent=assistant\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestTextHandlerLevelFilter(t *testing.T) {
	var buf strings.Builder
	h := &textHandler{
		handler: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		writer:  &buf,
	}

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should pass at warn level")
	}
}
