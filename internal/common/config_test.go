package common

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 45003, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.MaxWorkers)
	assert.Equal(t, "submission_results", cfg.Storage.ResultsDir)
	assert.False(t, cfg.Build.MockBuildHandler)
	assert.Equal(t, 7*24*3600*1e9, float64(cfg.Storage.GetTTL()))
}

func TestLoadConfig_MissingFileIsSkipped(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, 45003, cfg.Server.Port)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_WORKERS", "12")
	t.Setenv("RESULTS_DIR", "/tmp/results")
	t.Setenv("MOCK_BUILD_HANDLER", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Queue.MaxWorkers)
	assert.Equal(t, "/tmp/results", cfg.Storage.ResultsDir)
	assert.True(t, cfg.Build.MockBuildHandler)
}

func TestIsProduction(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.IsProduction())

	cfg.Environment = "production"
	assert.True(t, cfg.IsProduction())

	os.Unsetenv("CRAB_ENV")
}
