// Package keystore holds the decrypted client-side encryption keys for an
// unlocked session. A KeyStore is an immutable snapshot: key rotation
// installs a new snapshot instead of mutating keys in place, so concurrent
// readers never observe a partially updated map.
package keystore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/crypto"
)

var (
	// ErrKeyNotFound means the requested key id is not present in the store.
	ErrKeyNotFound = errors.New("keystore: key not found")
	// ErrNoCurrentKey means the store has no usable current key.
	ErrNoCurrentKey = errors.New("keystore: no current key")
)

// KeyStore maps key ids to raw 32-byte keys and tracks the current key to
// stamp on newly encrypted entries.
type KeyStore struct {
	keys    map[string][]byte
	current string
}

// New builds a KeyStore from a key map and the id of the current key.
// The current id must be present in the map and every key must be 32 bytes.
// The input map is copied; the caller may discard it afterwards.
func New(keys map[string][]byte, current string) (*KeyStore, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("keystore: keys cannot be empty")
	}
	if current == "" {
		return nil, ErrNoCurrentKey
	}
	copied := make(map[string][]byte, len(keys))
	for id, key := range keys {
		if len(key) != crypto.KeySize {
			return nil, fmt.Errorf("keystore: key %q must be %d bytes, got %d", id, crypto.KeySize, len(key))
		}
		k := make([]byte, len(key))
		copy(k, key)
		copied[id] = k
	}
	if _, ok := copied[current]; !ok {
		return nil, fmt.Errorf("keystore: current key %q not in key map: %w", current, ErrKeyNotFound)
	}
	return &KeyStore{keys: copied, current: current}, nil
}

// Key returns the raw key for the given id. Older entries resolve through
// the full map, not only the current key, so rotated keys keep decrypting.
func (s *KeyStore) Key(id string) ([]byte, error) {
	key, ok := s.keys[id]
	if !ok {
		return nil, fmt.Errorf("keystore: key %q: %w", id, ErrKeyNotFound)
	}
	return key, nil
}

// Current returns the id and raw bytes of the current key.
func (s *KeyStore) Current() (string, []byte, error) {
	key, ok := s.keys[s.current]
	if !ok {
		return "", nil, ErrNoCurrentKey
	}
	return s.current, key, nil
}

// CurrentID returns the id of the current key.
func (s *KeyStore) CurrentID() string {
	return s.current
}

// Len returns the number of keys in the store.
func (s *KeyStore) Len() int {
	return len(s.keys)
}

// keychainDocument is the JSON carried inside the encrypted keychain blob.
type keychainDocument struct {
	Keys    map[string]string `json:"keys"`
	Current string            `json:"current"`
}

// ParseKeychain decodes the decrypted keychain document into a KeyStore.
// Keys are hex-encoded in the document.
func ParseKeychain(plaintext []byte) (*KeyStore, error) {
	var doc keychainDocument
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, fmt.Errorf("keystore: failed to parse keychain: %w", err)
	}
	keys := make(map[string][]byte, len(doc.Keys))
	for id, hexKey := range doc.Keys {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("keystore: key %q is not valid hex: %w", id, err)
		}
		keys[id] = key
	}
	return New(keys, doc.Current)
}

// EncodeKeychain serializes a KeyStore back into the keychain document
// format. Used when the client rotates keys and re-uploads the keychain.
func (s *KeyStore) EncodeKeychain() ([]byte, error) {
	doc := keychainDocument{
		Keys:    make(map[string]string, len(s.keys)),
		Current: s.current,
	}
	for id, key := range s.keys {
		doc.Keys[id] = hex.EncodeToString(key)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to encode keychain: %w", err)
	}
	return data, nil
}

// WithKey returns a new snapshot containing all existing keys plus the given
// key, which becomes the current key. The receiver is left unchanged.
func (s *KeyStore) WithKey(id string, key []byte) (*KeyStore, error) {
	keys := make(map[string][]byte, len(s.keys)+1)
	for existingID, existing := range s.keys {
		keys[existingID] = existing
	}
	keys[id] = key
	return New(keys, id)
}
