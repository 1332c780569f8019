package tablenav

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	assert.Equal(t, 500, cfg.MaxPKCount)
	assert.Equal(t, time.Hour, cfg.SessionTimeout)
	assert.Equal(t, 50, cfg.ContextWindow)
	assert.Equal(t, 20, cfg.MaxContexts)
	assert.Equal(t, "bdt_nav_", cfg.SessionKeyPrefix)
	assert.Equal(t, "tablenav.db", cfg.DatabasePath)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Now)
}

func TestApplyDefaultsKeepsUnlimited(t *testing.T) {
	cfg := Config{MaxPKCount: Unlimited, MaxContexts: Unlimited}
	cfg.applyDefaults()

	assert.Equal(t, Unlimited, cfg.MaxPKCount)
	assert.Equal(t, Unlimited, cfg.MaxContexts)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.MaxPKCount, cfg.MaxPKCount)
	assert.Equal(t, defaults.SessionTimeout, cfg.SessionTimeout)
	assert.Equal(t, defaults.ContextWindow, cfg.ContextWindow)
	assert.Equal(t, defaults.MaxContexts, cfg.MaxContexts)
	assert.Equal(t, defaults.SessionKeyPrefix, cfg.SessionKeyPrefix)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
navigation:
  max_pk_count: 200
  session_timeout: 30m
  context_window: 20
  max_contexts: 5
  session_key_prefix: "nav_"
database:
  path: /tmp/nav.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TABLENAV_NAVIGATION_MAX_CONTEXTS", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.MaxPKCount)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 20, cfg.ContextWindow)
	assert.Equal(t, 7, cfg.MaxContexts, "environment should override the file")
	assert.Equal(t, "nav_", cfg.SessionKeyPrefix)
	assert.Equal(t, "/tmp/nav.db", cfg.DatabasePath)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestNewUsesSQLiteByDefault(t *testing.T) {
	n, err := New(Config{DatabasePath: filepath.Join(t.TempDir(), "nav.db")})
	require.NoError(t, err)
	defer n.Close()

	assert.Equal(t, 500, n.Config().MaxPKCount)
}

func TestApplyDefaultsNegativeWindow(t *testing.T) {
	cfg := Config{ContextWindow: -1}
	cfg.applyDefaults()

	assert.Equal(t, 0, cfg.ContextWindow)
}

func TestLoadConfigSessionTimeoutSeconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
navigation:
  session_timeout: 3600
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.SessionTimeout)
}

func TestLoadConfigSessionTimeoutFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"seconds", "3600", time.Hour},
		{"duration", "90m", 90 * time.Minute},
		{"padded seconds", " 120 ", 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TABLENAV_NAVIGATION_SESSION_TIMEOUT", tt.value)

			cfg, err := LoadConfig("")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.SessionTimeout)
		})
	}
}

func TestLoadConfigInvalidSessionTimeout(t *testing.T) {
	t.Setenv("TABLENAV_NAVIGATION_SESSION_TIMEOUT", "soon")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestContextKeptWithSecondsTimeout(t *testing.T) {
	t.Setenv("TABLENAV_NAVIGATION_SESSION_TIMEOUT", "3600")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	n, clock := newTestNavigator(t, cfg)
	ctx := context.Background()

	token, err := n.CreateContext(ctx, "owner1", Listing{IDs: seq(1, 3)})
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	navCtx, err := n.GetContext(ctx, "owner1", token)
	require.NoError(t, err)
	assert.NotNil(t, navCtx)
}
