package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()

	require.Error(t, err)
	require.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/gatherline")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()

	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/gatherline")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()

	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, time.Hour, cfg.Auth.JWTExpiry)
	require.Equal(t, "uploads", cfg.Uploads.Dir)
	require.Equal(t, int64(5<<20), cfg.Uploads.MaxBytes)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "development", cfg.Environment)
	require.False(t, cfg.Email.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/gatherline")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_EXPIRY_MINUTES", "15")
	t.Setenv("UPLOADS_DIR", "/var/lib/gatherline/uploads")
	t.Setenv("RATE_LIMIT_LOGIN", "3")

	cfg, err := Load()

	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWTExpiry)
	require.Equal(t, "/var/lib/gatherline/uploads", cfg.Uploads.Dir)
	require.Equal(t, 3, cfg.RateLimit.LoginPer15Minutes)
}

func TestLoadEmailRequiresFrom(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/gatherline")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("EMAIL_ENABLED", "true")
	t.Setenv("EMAIL_FROM", "")

	_, err := Load()

	require.Error(t, err)
	require.Contains(t, err.Error(), "EMAIL_FROM")
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("DATABASE_URL", "postgres://localhost/gatherline")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()

	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
}
