package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_KEY", "test-key")
	t.Setenv("APP_PEPPER", "test-pepper")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 20, cfg.Notes.DefaultPageSize)
	require.Equal(t, 100, cfg.Notes.MaxPageSize)
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 5, cfg.RateLimit.MaxFails)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_KEY", "test-key")
	t.Setenv("APP_PEPPER", "test-pepper")
	t.Setenv("ADDR", ":9999")
	t.Setenv("NOTES_DEFAULT_PAGE_SIZE", "50")
	t.Setenv("ACCESS_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Server.Addr)
	require.Equal(t, 50, cfg.Notes.DefaultPageSize)
	require.Equal(t, time.Hour, cfg.Auth.AccessTTL)
}

func TestLoad_RequiredSecrets(t *testing.T) {
	t.Setenv("JWT_KEY", "")
	t.Setenv("APP_PEPPER", "p")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_KEY", "k")
	t.Setenv("APP_PEPPER", "")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("JWT_KEY", "k")
	t.Setenv("APP_PEPPER", "p")
	t.Setenv("ACCESS_TTL", "nope")
	_, err := Load()
	require.Error(t, err)
}
