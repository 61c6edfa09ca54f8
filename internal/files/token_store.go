package files

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tailtrail/internal/crypto"
)

// ErrTokenNotFound is returned when no token is stored for the service.
var ErrTokenNotFound = errors.New("token not found")

// TokenStoreConfig configures a TokenStore. Every field is required.
type TokenStoreConfig struct {
	Dir       string
	Service   string
	MasterKey []byte
}

// TokenStore keeps one auth token per service id, sealed on disk with a key
// derived from the master key and the service id.
type TokenStore struct {
	path string
	key  []byte
	mu   sync.Mutex
}

// NewTokenStore creates a TokenStore. Nothing touches the disk until Save.
func NewTokenStore(cfg TokenStoreConfig) (*TokenStore, error) {
	if cfg.Dir == "" || cfg.Service == "" {
		return nil, errors.New("token store: dir and service are required")
	}
	key, err := crypto.DeriveKey(cfg.MasterKey, []byte(cfg.Service))
	if err != nil {
		return nil, fmt.Errorf("token store: derive key: %w", err)
	}
	sum := sha256.Sum256([]byte(cfg.Service))
	return &TokenStore{
		path: filepath.Join(cfg.Dir, hex.EncodeToString(sum[:8])+".token"),
		key:  key,
	}, nil
}

// Save replaces the stored token.
func (s *TokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := crypto.Seal(s.key, []byte(token))
	if err != nil {
		return fmt.Errorf("token store: seal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Token returns the stored token or ErrTokenNotFound.
func (s *TokenStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	plain, err := crypto.Open(s.key, blob)
	if err != nil {
		return "", fmt.Errorf("token store: open: %w", err)
	}
	return string(plain), nil
}

// Delete removes the stored token. Deleting a missing token is not an error.
func (s *TokenStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// HasToken reports whether a readable token is stored.
func (s *TokenStore) HasToken() bool {
	_, err := s.Token()
	return err == nil
}
