package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/keychain"
)

// Compile-time check that Storage implements the keychain boundary.
var _ keychain.Keychain = (*Storage)(nil)

// GetKey retrieves a named key from the keychain bucket.
func (s *Storage) GetKey(ctx context.Context, name string) ([]byte, error) {
	var key []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketKeychain)
		if bucket == nil {
			return fmt.Errorf("keychain bucket not found")
		}
		data := bucket.Get([]byte(name))
		if data == nil {
			return keychain.ErrKeyNotFound
		}
		key = make([]byte, len(data))
		copy(key, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// SetKey stores a named key in the keychain bucket.
func (s *Storage) SetKey(ctx context.Context, name string, key []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketKeychain)
		if bucket == nil {
			return fmt.Errorf("keychain bucket not found")
		}
		if err := bucket.Put([]byte(name), key); err != nil {
			return fmt.Errorf("failed to save key: %w", err)
		}
		return nil
	})
}

// DeleteKey removes a named key from the keychain bucket.
func (s *Storage) DeleteKey(ctx context.Context, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketKeychain)
		if bucket == nil {
			return fmt.Errorf("keychain bucket not found")
		}
		if err := bucket.Delete([]byte(name)); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		return nil
	})
}
