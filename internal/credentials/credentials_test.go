package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(context.Background(), filepath.Join(dir, "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := Open(db, filepath.Join(dir, "secret.key"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestLoadOrCreateKeyIsStableAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "secret.key")

	first, err := loadOrCreateKey(keyPath)
	require.NoError(t, err)
	assert.Len(t, first, keySize)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := loadOrCreateKey(keyPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("missing credential returns false", func(t *testing.T) {
		_, ok, err := s.Get(ctx, domain.ProviderGroq)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stored token round-trips", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, domain.ProviderGroq, "gsk_secret", ""))

		cred, ok, err := s.Get(ctx, domain.ProviderGroq)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "gsk_secret", cred.Token)
	})

	t.Run("upsert replaces the old token", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, domain.ProviderGroq, "first", ""))
		require.NoError(t, s.Put(ctx, domain.ProviderGroq, "second", ""))

		cred, ok, err := s.Get(ctx, domain.ProviderGroq)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "second", cred.Token)
	})
}

func TestRemoveHasAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, domain.ProviderOpenAI, "sk-1", ""))
	require.NoError(t, s.Put(ctx, domain.ProviderAnthropic, "sk-2", ""))

	has, err := s.Has(ctx, domain.ProviderOpenAI)
	require.NoError(t, err)
	assert.True(t, has)

	providers, err := s.StoredProviders(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Provider{domain.ProviderOpenAI, domain.ProviderAnthropic}, providers)

	removed, err := s.Remove(ctx, domain.ProviderOpenAI)
	require.NoError(t, err)
	assert.True(t, removed)

	has, err = s.Has(ctx, domain.ProviderOpenAI)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestResolveBaseURL(t *testing.T) {
	t.Run("huggingface defaults when unconfigured", func(t *testing.T) {
		assert.Equal(t, defaultHFURL, ResolveBaseURL(domain.ProviderHuggingFace, ""))
	})

	t.Run("configured override wins", func(t *testing.T) {
		assert.Equal(t, "https://custom", ResolveBaseURL(domain.ProviderHuggingFace, "https://custom"))
	})

	t.Run("other providers default to empty", func(t *testing.T) {
		assert.Equal(t, "", ResolveBaseURL(domain.ProviderGroq, ""))
	})
}
