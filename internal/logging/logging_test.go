package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", FormatText, &buf)

	logger.Info("hello", "component", "reaper", "deleted", 3)

	got := strings.TrimSpace(buf.String())
	assert.Contains(t, got, "msg=hello")
	assert.Contains(t, got, "component=reaper")
	assert.Contains(t, got, "deleted=3")
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "JSON", &buf)

	logger.Debug("scan", "files", 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "scan", record["msg"])
	assert.Equal(t, float64(2), record["files"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", FormatText, &buf)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, expected := range tests {
		assert.Equal(t, expected, ParseLevel(in), in)
	}
}
