package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", "")
	for _, key := range []string{
		"SERVER_PORT", "SERVER_READ_TIMEOUT", "UPSTREAM_MODE", "UPSTREAM_BASE_URL",
		"UPSTREAM_RATE_PER_SEC", "UPSTREAM_BURST", "CARDS_DEFAULT_STRATEGY",
		"ENTITIES_FILE", "REDIS_ADDR", "PANEL_IDLE_TTL", "CONFIRMATION_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "fixtures", cfg.Upstream.Mode)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "refetch", cfg.Cards.DefaultStrategy)
	assert.Equal(t, 2*time.Minute, cfg.Cards.ConfirmationTTL)
	assert.Equal(t, []string{"wc", "cg", "vbc"}, cfg.Entities.Codes())
	assert.Equal(t, "Contract Genie", cfg.Entities.Name("cg"))
	assert.Equal(t, "zz", cfg.Entities.Name("zz"))
}

func TestLoadRequiresBaseURLForHTTPModes(t *testing.T) {
	isolateEnv(t)
	t.Setenv("UPSTREAM_MODE", "v1")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("UPSTREAM_BASE_URL", "https://billing.example.com/")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://billing.example.com", cfg.Upstream.BaseURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"UPSTREAM_MODE":          "v3",
		"CARDS_DEFAULT_STRATEGY": "eager",
		"SERVER_PORT":            "70000",
		"SERVER_READ_TIMEOUT":    "soon",
		"UPSTREAM_RATE_PER_SEC":  "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CARDS_DEFAULT_STRATEGY=optimistic\nQUICKPAY_TEST_ONLY=from-file\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("QUICKPAY_TEST_ONLY", "from-env")
	// Registered for cleanup, then removed so the file can provide it.
	t.Setenv("CARDS_DEFAULT_STRATEGY", "")
	require.NoError(t, os.Unsetenv("CARDS_DEFAULT_STRATEGY"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", os.Getenv("QUICKPAY_TEST_ONLY"))
	assert.Equal(t, "optimistic", cfg.Cards.DefaultStrategy)
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadEntitiesFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`entities:
  - code: wc
    name: WholeSale Communications
  - code: acme
    name: Acme Billing
`), 0o600))
	t.Setenv("ENTITIES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"wc", "acme"}, cfg.Entities.Codes())
	assert.Equal(t, "Acme Billing", cfg.Entities.Name("acme"))

	require.NoError(t, os.WriteFile(path, []byte("entities:\n  - code: wc\n  - code: wc\n"), 0o600))
	_, err = Load()
	assert.Error(t, err)
}
