package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "period generated", "keys", 12)
	log.Info(ctx, "submissions loaded", "count", 40)
	log.Warn(ctx, "outside window", "abort", false)
	log.Error(ctx, "upload failed", "status", 500)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	want := []struct {
		level string
		attr  string
	}{
		{"DEBUG", "keys=12"},
		{"INFO", "count=40"},
		{"WARN", "abort=false"},
		{"ERROR", "status=500"},
	}
	for i, w := range want {
		assert.Contains(t, lines[i], "level="+w.level)
		assert.Contains(t, lines[i], w.attr)
	}
}

func TestSlogLogger_WithKeepsParentUnchanged(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	child := log.With("module", "federation-download", "origin", "JE")
	child.Info(ctx, "batch stored", "batchTag", "75b326f7")
	log.Info(ctx, "run finished")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "module=federation-download")
	assert.Contains(t, lines[0], "origin=JE")
	assert.Contains(t, lines[0], "batchTag=75b326f7")
	assert.NotContains(t, lines[1], "module=")
}

func TestNop(t *testing.T) {
	var l Logger = Nop{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		l.Info(ctx, "ignored", "k", "v")
		l.With("module", "x").Error(ctx, "ignored")
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewJSONLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, "warn")
	ctx := context.Background()

	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown", "path", "distribution/daily/2020071600.zip")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "distribution/daily/2020071600.zip", rec["path"])
}
