package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNew_ConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info"}, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("test started", zap.Int("n_back", 2))
	require.NoError(t, log.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "test started")
	assert.Contains(t, out, `"n_back": 2`)
}

func TestNew_FileCoreWritesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "nback.log")

	var console bytes.Buffer
	log, err := New(Config{Level: "error", File: path, MaxSize: 1}, &console)
	require.NoError(t, err)

	log.Debug("trial presented", zap.Int("trial", 3))
	require.NoError(t, log.Sync())
	assert.Empty(t, console.String(), "console is at error level")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "trial presented", entry["message"])
	assert.Equal(t, float64(3), entry["trial"])
}
