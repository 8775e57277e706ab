package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/config"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    slog.Level
	}{
		{"", false, slog.LevelInfo},
		{"debug", false, slog.LevelDebug},
		{"WARN", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"error", true, slog.LevelDebug},
	}
	for _, tt := range tests {
		got, err := Level(tt.name, tt.verbose)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := Level("chatty", false)
	assert.Error(t, err)
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.Logging{Level: "warn"}, &buf, false)
	require.NoError(t, err)
	defer l.Close()

	l.App.Info("hidden")
	l.Engine.Warn("shown", "record_type", "orders")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "record_type=orders")
}

func TestNew_SeparateFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "sheet-sync.log")
	l, err := New(config.Logging{Level: "info", File: path, SeparateFiles: true, MaxSizeMB: 1, MaxBackups: 30}, &buf, false)
	require.NoError(t, err)

	Component(l.Engine, "engine").Info("chunk processed", "records", 100)
	l.App.Info("console only")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=engine")
	assert.Contains(t, string(data), "records=100")
	assert.NotContains(t, string(data), "console only")
	assert.NotContains(t, buf.String(), "chunk processed")
}
