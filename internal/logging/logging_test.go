package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Run("json writer", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := DefaultConfig()
		cfg.Format = "json"
		cfg.Level = "warn"
		cfg.Writer = &buf

		logger, cleanup, err := Setup(cfg)
		require.NoError(t, err)
		defer cleanup()

		logger.Info("dropped")
		slog.Warn("learned model", "states", 3)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "learned model", rec["msg"])
		assert.Equal(t, float64(3), rec["states"])
	})

	t.Run("rotating file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "alergia.log")
		cfg := DefaultConfig()
		cfg.FilePath = path

		logger, cleanup, err := Setup(cfg)
		require.NoError(t, err)
		logger.Info("merge", "red", 0, "blue", 4)
		require.NoError(t, cleanup())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "msg=merge red=0 blue=4")
	})
}
