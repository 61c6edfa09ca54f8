package files

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTokenStore(t *testing.T, dir, service string, key []byte) *TokenStore {
	t.Helper()
	s, err := NewTokenStore(TokenStoreConfig{Dir: dir, Service: service, MasterKey: key})
	require.NoError(t, err)
	return s
}

func TestTokenStoreLifecycle(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	s := newTestTokenStore(t, t.TempDir(), "com.tailtrail.authtoken", key)

	_, err := s.Token()
	require.ErrorIs(t, err, ErrTokenNotFound)
	require.False(t, s.HasToken())

	require.NoError(t, s.Save("first"))
	require.NoError(t, s.Save("second"))
	tok, err := s.Token()
	require.NoError(t, err)
	require.Equal(t, "second", tok)
	require.True(t, s.HasToken())

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())
	require.False(t, s.HasToken())
}

func TestTokenStoreSealsOnDisk(t *testing.T) {
	dir := t.TempDir()
	s := newTestTokenStore(t, dir, "svc", bytes.Repeat([]byte{1}, 32))
	require.NoError(t, s.Save("super-secret-token"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret-token")
}

func TestTokenStoreIsolation(t *testing.T) {
	dir := t.TempDir()
	key := bytes.Repeat([]byte{2}, 32)
	a := newTestTokenStore(t, dir, "service-a", key)
	b := newTestTokenStore(t, dir, "service-b", key)

	require.NoError(t, a.Save("token-a"))
	require.False(t, b.HasToken())

	other := newTestTokenStore(t, dir, "service-a", bytes.Repeat([]byte{3}, 32))
	_, err := other.Token()
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTokenNotFound)
}

func TestNewTokenStoreValidation(t *testing.T) {
	_, err := NewTokenStore(TokenStoreConfig{Dir: t.TempDir(), Service: "svc", MasterKey: []byte("short")})
	require.Error(t, err)
	_, err = NewTokenStore(TokenStoreConfig{Service: "svc", MasterKey: make([]byte, 32)})
	require.Error(t, err)
}

func TestMasterKey(t *testing.T) {
	t.Setenv(MasterKeyEnv, "")
	path := filepath.Join(t.TempDir(), "keys", "master.key")

	_, err := ReadMasterKey(path)
	require.Error(t, err)

	created, err := LoadOrCreateMasterKey(path)
	require.NoError(t, err)
	require.Len(t, created, 32)

	again, err := LoadOrCreateMasterKey(path)
	require.NoError(t, err)
	require.Equal(t, created, again)

	_, err = GenerateMasterKey(path)
	require.ErrorIs(t, err, ErrMasterKeyExists)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestMasterKeyFromEnv(t *testing.T) {
	t.Setenv(MasterKeyEnv, "  "+string(bytes.Repeat([]byte("ab"), 32))+"\n")
	key, err := ReadMasterKey(filepath.Join(t.TempDir(), "missing.key"))
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xab}, 32), key)

	t.Setenv(MasterKeyEnv, "abcd")
	_, err = ReadMasterKey("")
	require.Error(t, err)
}
