package bootstrap

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/coffee-ui/config"
)

func TestInitLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := InitLogger(slog.LevelWarn)
	assert.Same(t, logger, slog.Default())
	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	t.Setenv("BACKEND_BASE_URL", "http://backend.internal:8000/")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsDev)
	assert.Equal(t, config.SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, "http://backend.internal:8000", cfg.Backend.BaseURL)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		t.Setenv("BACKEND_TIMEOUT", "soon")
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
	t.Run("validate", func(t *testing.T) {
		t.Setenv("BACKEND_BASE_URL", "backend:8000")
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BACKEND_BASE_URL")
	})
}
