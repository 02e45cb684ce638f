package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 25, cfg.Database.MaxOpenConns)
	require.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, "uploads", cfg.Storage.Dir)
	require.Equal(t, "/static", cfg.Storage.PublicBaseURL)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9000
database:
  dsn: postgres://file-dsn
auth:
  jwt_secret: from-file
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("DATABASE_URL", "postgres://env-dsn")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	// Environment wins over the file; untouched file values survive.
	require.Equal(t, "postgres://env-dsn", cfg.Database.DSN)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "from-file", cfg.Auth.JWTSecret)
	require.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	require.Equal(t, "debug", cfg.Logging.Level)
}
