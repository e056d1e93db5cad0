package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnovak/llmrelay/config"
	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/providers"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Store:       config.StoreConfig{Path: filepath.Join(dir, "llmrelay.db")},
		Credentials: config.CredentialConfig{KeyPath: filepath.Join(dir, "secret.key")},
		Providers: config.ProvidersConfig{
			domain.ProviderGroq: providers.Config{APIKey: "test-groq-key"},
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "console",
		},
	}
	return cfg
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	deps, err := New(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, deps)
	defer deps.Close()

	assert.NotNil(t, deps.Logger)
	assert.NotNil(t, deps.DB)
	assert.NotNil(t, deps.Credentials)
	assert.NotNil(t, deps.Catalog)
	assert.NotNil(t, deps.Health)
	assert.NotNil(t, deps.Usage)
	assert.NotNil(t, deps.Registry)
	assert.NotNil(t, deps.Router)
	assert.NotNil(t, deps.Refresher)
	assert.NotNil(t, deps.Handler)

	// Only Groq was configured with an API key.
	assert.Contains(t, deps.Registry.Configured(), domain.ProviderGroq)
}

func TestNew_cloudflareAndClarifaiNeverRegistered(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Providers[domain.ProviderCloudflare] = providers.Config{APIKey: "present-but-unwired"}
	cfg.Providers[domain.ProviderClarifai] = providers.Config{APIKey: "present-but-unwired"}

	deps, err := New(ctx, cfg)
	require.NoError(t, err)
	defer deps.Close()

	_, ok := deps.Registry.Get(domain.ProviderCloudflare)
	assert.False(t, ok)
	_, ok = deps.Registry.Get(domain.ProviderClarifai)
	assert.False(t, ok)
}

func TestNew_credentialStoreFallsBackWhenConfigHasNoKey(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	delete(cfg.Providers, domain.ProviderGroq)

	deps, err := New(ctx, cfg)
	require.NoError(t, err)
	defer deps.Close()

	_, ok := deps.Registry.Get(domain.ProviderGroq)
	assert.False(t, ok, "no config key and no stored credential means no adapter")

	require.NoError(t, deps.Credentials.Put(ctx, domain.ProviderGroq, "stored-key", ""))

	deps2, err := New(ctx, cfg)
	require.NoError(t, err)
	defer deps2.Close()

	_, ok = deps2.Registry.Get(domain.ProviderGroq)
	assert.True(t, ok, "stored credential should be picked up when config has none")
}

func TestClose_idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	deps, err := New(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, deps.Close())
	require.NoError(t, deps.Close())
}
