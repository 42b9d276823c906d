package logs

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLokiPushURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://loki:3100", "http://loki:3100/loki/api/v1/push"},
		{"http://loki:3100/", "http://loki:3100/loki/api/v1/push"},
		{"http://loki:3100/loki/api/v1/push", "http://loki:3100/loki/api/v1/push"},
	}
	for _, tt := range tests {
		if got := lokiPushURL(tt.in); got != tt.want {
			t.Errorf("lokiPushURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMultiHandlerRespectsLevels(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	log := slog.New(h).With("settlement", "s-1")

	log.Info("calculated")
	log.Warn("fallback withholding")

	if !strings.Contains(debugBuf.String(), "calculated") || !strings.Contains(debugBuf.String(), "fallback withholding") {
		t.Errorf("debug handler missing records: %q", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "calculated") {
		t.Errorf("warn handler received info record: %q", warnBuf.String())
	}
	if !strings.Contains(warnBuf.String(), "settlement=s-1") {
		t.Errorf("warn handler missing attrs: %q", warnBuf.String())
	}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("multiHandler should be enabled when any child is")
	}
}
