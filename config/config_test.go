package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutEnvFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Crowdqueue.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, DuplicatePolicyAllow, cfg.Crowdqueue.DuplicatePolicy)
	assert.False(t, cfg.RejectDuplicates())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DUPLICATE_POLICY", "reject")
	t.Setenv("RESOLVE_TIMEOUT_SECONDS", "2")
	t.Setenv("YOUTUBE_API_KEY", "abc123")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.True(t, cfg.RejectDuplicates())
	assert.Equal(t, 2*time.Second, cfg.GetResolveTimeout())
	assert.Equal(t, "abc123", cfg.YouTube.Token)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9090\nLOG_LEVEL=debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Crowdqueue.Port)
	assert.Equal(t, slog.LevelDebug, cfg.GetLogLevel())
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestValidate_RejectsUnknownPolicy(t *testing.T) {
	cfg := Default()
	cfg.Crowdqueue.DuplicatePolicy = "sometimes"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiresDSNForSQLStores(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "postgres"
	cfg.Store.DSN = ""
	assert.Error(t, cfg.Validate())

	cfg.Store.Driver = "memory"
	assert.NoError(t, cfg.Validate())
}

func TestGetAllowedOrigins(t *testing.T) {
	cfg := Default()
	cfg.Crowdqueue.AllowedOrigins = " https://a.example , ,https://b.example"
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.GetAllowedOrigins())
}

func TestGetLogLevel_UnknownDefaultsToInfo(t *testing.T) {
	cfg := Default()
	cfg.Crowdqueue.LogLevel = "loud"
	assert.Equal(t, slog.LevelInfo, cfg.GetLogLevel())
}
