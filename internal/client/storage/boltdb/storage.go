// Package boltdb implements the offline record store and the local keychain
// on a single BoltDB file.
package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketOffline  = []byte("offline")
	bucketKeychain = []byte("keychain")
)

// Storage is the BoltDB-backed client storage.
type Storage struct {
	db *bbolt.DB
}

// Compile-time check that Storage implements the record store boundary.
var _ storage.RecordStore = (*Storage)(nil)

// New opens (creating if needed) the BoltDB file at dbPath.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return s, nil
}

// Close closes the database file.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketOffline); err != nil {
			return fmt.Errorf("failed to create offline bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketKeychain); err != nil {
			return fmt.Errorf("failed to create keychain bucket: %w", err)
		}
		return nil
	})
}
