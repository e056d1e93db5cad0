// Package credentials stores per-provider API tokens encrypted at rest.
// Grounded on original_source/src/credentials.rs for the operations and
// key-file bootstrap semantics, and on
// felipepmaragno-ai-gateway/internal/crypto/crypto.go for the stdlib
// AES-256-GCM implementation (the original's XChaCha20Poly1305 has no
// used equivalent anywhere in the reference pack — see DESIGN.md).
package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/store"
)

const (
	keyFilename  = "secret.key"
	keySize      = 32
	defaultHFURL = "https://api-inference.huggingface.co"
)

// Store is the encrypted credential store.
type Store struct {
	db     *store.DB
	gcm    cipher.AEAD
	logger *zap.Logger
}

// Open loads (creating on first run) the master key at keyPath and
// returns a Store bound to db.
func Open(db *store.DB, keyPath string, logger *zap.Logger) (*Store, error) {
	key, err := loadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, domain.WrapPersistence("failed to construct cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, domain.WrapPersistence("failed to construct GCM", err)
	}
	return &Store{db: db, gcm: gcm, logger: logger}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	if bytes, err := os.ReadFile(path); err == nil && len(bytes) == keySize {
		return bytes, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, domain.WrapPersistence("failed to create key directory", err)
		}
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, domain.WrapPersistence("failed to generate master key", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, domain.WrapPersistence("failed to write key file", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return nil, domain.WrapPersistence("failed to set key file permissions", err)
	}
	return key, nil
}

// DefaultKeyPath returns the XDG-style config path for the master key,
// e.g. $XDG_CONFIG_HOME/llmrelay/secret.key. No `dirs`-equivalent package
// is exercised anywhere in the reference pack, so this uses the standard
// library directly (see DESIGN.md).
func DefaultKeyPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", domain.WrapPersistence("failed to determine config directory", err)
	}
	return filepath.Join(dir, "llmrelay", keyFilename), nil
}

func (s *Store) encrypt(plaintext string) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, domain.WrapPersistence("failed to generate nonce", err)
	}
	ciphertext = s.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return nonce, ciphertext, nil
}

func (s *Store) decrypt(nonce, ciphertext []byte) (string, error) {
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", domain.ErrCredentialCorrupt.WithDetail("cause", err.Error())
	}
	return string(plaintext), nil
}

// Put encrypts and upserts the token for provider, along with an optional
// base URL override.
func (s *Store) Put(ctx context.Context, provider domain.Provider, token, baseURL string) error {
	nonce, ciphertext, err := s.encrypt(token)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := store.GetExecutor(ctx, s.db)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO provider_credentials (provider, nonce, ciphertext, base_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			nonce = excluded.nonce,
			ciphertext = excluded.ciphertext,
			base_url = excluded.base_url,
			updated_at = excluded.updated_at
	`, string(provider), nonce, ciphertext, nullableString(baseURL), now, now)
	if err != nil {
		return domain.WrapPersistence("failed to store credential", err)
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Get returns the decrypted credential for provider, or (Credential{},
// false, nil) if none is stored.
func (s *Store) Get(ctx context.Context, provider domain.Provider) (domain.Credential, bool, error) {
	exec := store.GetExecutor(ctx, s.db)
	row := exec.QueryRowContext(ctx, `
		SELECT nonce, ciphertext, base_url FROM provider_credentials WHERE provider = ?
	`, string(provider))

	var nonce, ciphertext []byte
	var baseURL sql.NullString
	if err := row.Scan(&nonce, &ciphertext, &baseURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Credential{}, false, nil
		}
		return domain.Credential{}, false, domain.WrapPersistence("failed to read credential", err)
	}

	token, err := s.decrypt(nonce, ciphertext)
	if err != nil {
		return domain.Credential{}, false, err
	}

	return domain.Credential{Provider: provider, Token: token, BaseURL: baseURL.String}, true, nil
}

// ResolveBaseURL returns the base URL to use for provider: the stored
// override if one exists, a provider-specific default (HuggingFace only,
// per original_source/src/credentials.rs), or "".
func ResolveBaseURL(provider domain.Provider, configured string) string {
	if configured != "" {
		return configured
	}
	if provider == domain.ProviderHuggingFace {
		return defaultHFURL
	}
	return ""
}

// Remove deletes the stored credential for provider, reporting whether a
// row was actually removed.
func (s *Store) Remove(ctx context.Context, provider domain.Provider) (bool, error) {
	exec := store.GetExecutor(ctx, s.db)
	res, err := exec.ExecContext(ctx, `DELETE FROM provider_credentials WHERE provider = ?`, string(provider))
	if err != nil {
		return false, domain.WrapPersistence("failed to remove credential", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.WrapPersistence("failed to read rows affected", err)
	}
	return n > 0, nil
}

// Has reports whether a credential is stored for provider.
func (s *Store) Has(ctx context.Context, provider domain.Provider) (bool, error) {
	exec := store.GetExecutor(ctx, s.db)
	row := exec.QueryRowContext(ctx, `SELECT 1 FROM provider_credentials WHERE provider = ? LIMIT 1`, string(provider))
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, domain.WrapPersistence("failed to check credential", err)
	}
	return true, nil
}

// StoredProviders lists every provider with a stored credential.
func (s *Store) StoredProviders(ctx context.Context) ([]domain.Provider, error) {
	exec := store.GetExecutor(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `SELECT provider FROM provider_credentials`)
	if err != nil {
		return nil, domain.WrapPersistence("failed to list credentials", err)
	}
	defer rows.Close()

	var providers []domain.Provider
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.WrapPersistence("failed to scan credential row", err)
		}
		if p, ok := domain.ProviderFromAlias(name); ok {
			providers = append(providers, p)
		}
	}
	return providers, rows.Err()
}
