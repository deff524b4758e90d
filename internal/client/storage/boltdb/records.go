package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/storage"
)

// Put stores or replaces the offline record for the slot.
func (s *Storage) Put(ctx context.Context, slot string, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOffline)
		if bucket == nil {
			return fmt.Errorf("offline bucket not found")
		}
		if err := bucket.Put([]byte(slot), data); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
		return nil
	})
}

// Get retrieves the offline record for the slot.
func (s *Storage) Get(ctx context.Context, slot string) ([]byte, error) {
	var record []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOffline)
		if bucket == nil {
			return fmt.Errorf("offline bucket not found")
		}
		data := bucket.Get([]byte(slot))
		if data == nil {
			return storage.ErrRecordNotFound
		}
		// copy out: bbolt values are only valid inside the transaction
		record = make([]byte, len(data))
		copy(record, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes the offline record for the slot.
func (s *Storage) Delete(ctx context.Context, slot string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOffline)
		if bucket == nil {
			return fmt.Errorf("offline bucket not found")
		}
		if err := bucket.Delete([]byte(slot)); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		return nil
	})
}

// Slots lists all slot ids with a stored record.
func (s *Storage) Slots(ctx context.Context) ([]string, error) {
	var slots []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOffline)
		if bucket == nil {
			return fmt.Errorf("offline bucket not found")
		}
		return bucket.ForEach(func(k, v []byte) error {
			slots = append(slots, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// DeleteAll removes every offline record.
func (s *Storage) DeleteAll(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketOffline); err != nil {
			return fmt.Errorf("failed to delete offline bucket: %w", err)
		}
		if _, err := tx.CreateBucket(bucketOffline); err != nil {
			return fmt.Errorf("failed to recreate offline bucket: %w", err)
		}
		return nil
	})
}
