// Package storage defines the persistence boundary for opaque offline
// records. Implementations store encrypted blobs keyed by slot id and never
// interpret entity structure.
package storage

import (
	"context"
	"errors"
)

// ErrRecordNotFound means no record exists for the requested slot.
var ErrRecordNotFound = errors.New("storage: record not found")

// RecordStore persists opaque encrypted snapshots keyed by slot id.
type RecordStore interface {
	// Put stores or replaces the record for the slot.
	Put(ctx context.Context, slot string, data []byte) error

	// Get retrieves the record for the slot.
	// Returns ErrRecordNotFound if no record exists.
	Get(ctx context.Context, slot string) ([]byte, error)

	// Delete removes the record for the slot. Deleting a missing slot is
	// not an error.
	Delete(ctx context.Context, slot string) error

	// Slots lists all slot ids with a stored record.
	Slots(ctx context.Context) ([]string, error)

	// DeleteAll removes every record, used when offline storage is
	// disabled.
	DeleteAll(ctx context.Context) error
}
