package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Info("server ready", "addr", ":3400")

	out := buf.String()
	assert.Contains(t, out, "server ready")
	assert.Contains(t, out, "addr=:3400")
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("server ready", "addr", ":3400")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "server ready", entry["msg"])
	assert.Equal(t, ":3400", entry["addr"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Debug("noise")
	logger.Info("more noise")
	logger.Warn("important")

	out := buf.String()
	assert.NotContains(t, out, "noise")
	assert.Contains(t, out, "important")
}

func TestNewNop_DiscardsOutput(t *testing.T) {
	// Must not panic and must accept all levels.
	logger := NewNop()
	logger.Debug("a")
	logger.Error("b")
}
