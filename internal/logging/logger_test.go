package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewWithLevelWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithLevel(&buf, "ares-setup", "info")

	logger.Debug("hidden")
	logger.Info("config saved", "path", "ares_config.json")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "config saved", entry["msg"])
	require.Equal(t, "ares-setup", entry["service"])
	require.Equal(t, "ares_config.json", entry["path"])
}

func TestNewReadsEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	var buf bytes.Buffer
	logger := New(&buf, "ares-mcp")

	logger.Warn("dropped")
	require.Zero(t, buf.Len())

	logger.Error("kept")
	require.Contains(t, buf.String(), `"msg":"kept"`)
}
