package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "localhost:8080", cfg.Server.Listen)
	require.Equal(t, "memory", cfg.Store.Kind)
	require.Equal(t, 5*time.Second, cfg.Trial.PollInterval)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  listen: ":9090"
  corsOrigins:
    - https://app.osteovet.fr
auth:
  secret: session-secret
store:
  kind: postgres
  postgres:
    url: postgres://localhost:5432/osteovet
billing:
  webhookSecret: whsec_test
mailer:
  baseURL: https://api.resend.com
  apiKey: re_test
trial:
  pollInterval: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.Listen)
	require.Equal(t, []string{"https://app.osteovet.fr"}, cfg.Server.CORSOrigins)
	require.Equal(t, "postgres", cfg.Store.Kind)
	require.Equal(t, "postgres://localhost:5432/osteovet", cfg.Store.Postgres.URL)
	require.Equal(t, "https://api.resend.com", cfg.Mailer.BaseURL)
	require.Equal(t, 30*time.Second, cfg.Trial.PollInterval)
	// defaults survive a partial file
	require.Equal(t, 10*time.Second, cfg.Server.GracefulTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OSTEOVET_LISTEN", ":7070")
	t.Setenv("OSTEOVET_AUTH_SECRET", "super-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":7070", cfg.Server.Listen)
	require.Equal(t, "super-secret", cfg.Auth.Secret)
}

func TestLoadValidation(t *testing.T) {
	t.Run("postgres without url", func(t *testing.T) {
		t.Setenv("OSTEOVET_STORE_KIND", "postgres")

		_, err := Load("")
		require.ErrorContains(t, err, "store.postgres.url")
	})

	t.Run("postgres without auth secret", func(t *testing.T) {
		t.Setenv("OSTEOVET_STORE_KIND", "postgres")
		t.Setenv("OSTEOVET_POSTGRES_URL", "postgres://localhost:5432/osteovet")
		t.Setenv("OSTEOVET_BILLING_WEBHOOK_SECRET", "whsec_test")

		_, err := Load("")
		require.ErrorContains(t, err, "auth.secret")
	})

	t.Run("postgres without webhook secret", func(t *testing.T) {
		t.Setenv("OSTEOVET_STORE_KIND", "postgres")
		t.Setenv("OSTEOVET_POSTGRES_URL", "postgres://localhost:5432/osteovet")
		t.Setenv("OSTEOVET_AUTH_SECRET", "session-secret")

		_, err := Load("")
		require.ErrorContains(t, err, "billing.webhookSecret")
	})

	t.Run("memory mode boots without secrets", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		require.Equal(t, "memory", cfg.Store.Kind)
	})

	t.Run("unknown store kind", func(t *testing.T) {
		t.Setenv("OSTEOVET_STORE_KIND", "sqlite")

		_, err := Load("")
		require.ErrorContains(t, err, "unknown store kind")
	})
}
