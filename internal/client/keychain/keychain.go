// Package keychain defines the secure-store collaborator supplying the
// symmetric key that backs the offline cache. The security properties of a
// concrete implementation (hardware-backed storage, OS keychain) are outside
// this package; the bundled implementation keeps keys in the local database
// and exists for tests and headless use.
package keychain

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/crypto"
)

// ErrKeyNotFound means no key is stored under the requested name.
var ErrKeyNotFound = errors.New("keychain: key not found")

// OfflineKeyName is the keychain slot holding the offline cache key.
const OfflineKeyName = "offlineCache"

// Keychain supplies named symmetric keys.
type Keychain interface {
	// GetKey retrieves the key stored under name.
	// Returns ErrKeyNotFound if no key exists.
	GetKey(ctx context.Context, name string) ([]byte, error)

	// SetKey stores a key under name, replacing any existing one.
	SetKey(ctx context.Context, name string, key []byte) error

	// DeleteKey removes the key stored under name.
	DeleteKey(ctx context.Context, name string) error
}

// EnsureKey returns the key stored under name, generating and persisting a
// fresh random 32-byte key on first use.
func EnsureKey(ctx context.Context, kc Keychain, name string) ([]byte, error) {
	key, err := kc.GetKey(ctx, name)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("keychain: failed to load key %q: %w", name, err)
	}

	key = make([]byte, crypto.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("keychain: failed to generate key: %w", err)
	}
	if err := kc.SetKey(ctx, name, key); err != nil {
		return nil, fmt.Errorf("keychain: failed to store key %q: %w", name, err)
	}
	return key, nil
}
