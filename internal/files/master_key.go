package files

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tailtrail/internal/crypto"
)

// MasterKeyEnv overrides the master key file when set.
const MasterKeyEnv = "TAILTRAIL_MASTER_KEY_HEX"

// ErrMasterKeyExists is returned when GenerateMasterKey would overwrite a key.
var ErrMasterKeyExists = errors.New("master key already exists")

// ReadMasterKey reads the hex master key from TAILTRAIL_MASTER_KEY_HEX or, if unset, from path.
func ReadMasterKey(path string) ([]byte, error) {
	h := os.Getenv(MasterKeyEnv)
	if h == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s not set and %s not readable: %w", MasterKeyEnv, path, err)
		}
		h = string(data)
	}
	b, err := hex.DecodeString(strings.TrimSpace(h))
	if err != nil {
		return nil, fmt.Errorf("master key hex decode error: %w", err)
	}
	if len(b) != crypto.KeySize {
		return nil, fmt.Errorf("master key length must be 32 bytes (hex 64 chars): %w", crypto.ErrInvalidKeyLength)
	}
	return b, nil
}

// GenerateMasterKey writes a new random master key to path. It refuses to
// overwrite an existing file.
func GenerateMasterKey(path string) ([]byte, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrMasterKeyExists)
	}
	key, err := crypto.RandomBytes(crypto.KeySize)
	if err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		f.Close()
		return nil, err
	}
	return key, f.Close()
}

// LoadOrCreateMasterKey reads the master key, creating the key file on first use.
func LoadOrCreateMasterKey(path string) ([]byte, error) {
	key, err := ReadMasterKey(path)
	if err == nil {
		return key, nil
	}
	if os.Getenv(MasterKeyEnv) != "" || !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return GenerateMasterKey(path)
}
