// Package offline persists encrypted snapshots of entries so the app can
// function without connectivity. Snapshots are sealed with a locally held
// key obtained from the keychain collaborator; the record store only ever
// sees opaque bytes.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/keychain"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/storage"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/crypto"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/models"
)

// ErrNotAvailable means the requested entry has no usable offline record.
// Decryption and deserialization failures surface as this error: a record
// that cannot be opened is indistinguishable from one that was never
// written.
var ErrNotAvailable = errors.New("offline: record not available")

// record is the serialized wire form of one offline snapshot before
// encryption.
type record struct {
	OwnerType models.Kind     `json:"ownerType"`
	Payload   json.RawMessage `json:"payload"`
}

// Cache writes and reads encrypted offline snapshots. Only folders and
// passwords are cached; tags are rebuilt from server state.
type Cache struct {
	store  storage.RecordStore
	key    []byte
	logger *slog.Logger

	mu      sync.Mutex
	enabled bool
}

// NewCache builds a cache over the record store, obtaining (and on first use
// generating) the offline key from the keychain.
func NewCache(ctx context.Context, store storage.RecordStore, kc keychain.Keychain, enabled bool, logger *slog.Logger) (*Cache, error) {
	key, err := keychain.EnsureKey(ctx, kc, keychain.OfflineKeyName)
	if err != nil {
		return nil, fmt.Errorf("offline: failed to obtain cache key: %w", err)
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("offline: cache key must be %d bytes, got %d", crypto.KeySize, len(key))
	}
	return &Cache{store: store, key: key, logger: logger, enabled: enabled}, nil
}

// Enabled reports whether offline storage is currently on.
func (c *Cache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Slot returns the storage slot id for an entry.
func Slot(kind models.Kind, id string) string {
	return string(kind) + "/" + id
}

// cacheable reports whether the entry kind is snapshotted offline.
func cacheable(entry models.Entry) bool {
	switch entry.EntryKind() {
	case models.KindFolder, models.KindPassword:
		return true
	}
	return false
}

// Store encrypts and persists a snapshot of the entry. Entries without a
// server-confirmed revision are not cached; an entry whose revision was
// cleared gets its record removed instead.
func (c *Cache) Store(ctx context.Context, entry models.Entry) error {
	if !c.Enabled() || !cacheable(entry) {
		return nil
	}
	if entry.EntryRevision() == "" {
		return c.Remove(ctx, entry.EntryKind(), entry.EntryID())
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("offline: failed to serialize %s %s: %w", entry.EntryKind(), entry.EntryID(), err)
	}
	data, err := json.Marshal(record{OwnerType: entry.EntryKind(), Payload: payload})
	if err != nil {
		return fmt.Errorf("offline: failed to serialize record: %w", err)
	}

	sealed, err := crypto.Encrypt(data, c.key)
	if err != nil {
		return fmt.Errorf("offline: failed to encrypt record for %s %s: %w", entry.EntryKind(), entry.EntryID(), err)
	}

	if err := c.store.Put(ctx, Slot(entry.EntryKind(), entry.EntryID()), sealed); err != nil {
		return fmt.Errorf("offline: failed to persist record: %w", err)
	}
	return nil
}

// Load decrypts and deserializes the snapshot in the given slot. Any
// failure to open or decode the record is reported as ErrNotAvailable, never
// as default or empty entry data.
func (c *Cache) Load(ctx context.Context, slot string) (models.Entry, error) {
	sealed, err := c.store.Get(ctx, slot)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return nil, ErrNotAvailable
		}
		return nil, fmt.Errorf("offline: failed to read record %q: %w", slot, err)
	}

	data, err := crypto.Decrypt(sealed, c.key)
	if err != nil {
		c.logger.Warn("offline record failed to decrypt", "slot", slot)
		return nil, ErrNotAvailable
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("offline record failed to decode", "slot", slot)
		return nil, ErrNotAvailable
	}

	var entry models.Entry
	switch rec.OwnerType {
	case models.KindFolder:
		entry = &models.Folder{}
	case models.KindPassword:
		entry = &models.Password{}
	default:
		c.logger.Warn("offline record has unknown owner type", "slot", slot, "ownerType", rec.OwnerType)
		return nil, ErrNotAvailable
	}
	if err := json.Unmarshal(rec.Payload, entry); err != nil {
		c.logger.Warn("offline record payload failed to decode", "slot", slot)
		return nil, ErrNotAvailable
	}
	return entry, nil
}

// LoadAll returns every snapshot that can be opened. Unreadable records are
// skipped, not fatal: one corrupt record must not take down the offline
// data set.
func (c *Cache) LoadAll(ctx context.Context) ([]models.Entry, error) {
	slots, err := c.store.Slots(ctx)
	if err != nil {
		return nil, fmt.Errorf("offline: failed to list records: %w", err)
	}

	entries := make([]models.Entry, 0, len(slots))
	for _, slot := range slots {
		entry, err := c.Load(ctx, slot)
		if err != nil {
			if errors.Is(err, ErrNotAvailable) {
				continue
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Remove deletes the snapshot of an entry, invoked when the entry is
// deleted or its revision is cleared.
func (c *Cache) Remove(ctx context.Context, kind models.Kind, id string) error {
	if err := c.store.Delete(ctx, Slot(kind, id)); err != nil {
		return fmt.Errorf("offline: failed to delete record: %w", err)
	}
	return nil
}

// SetEnabled switches offline storage on or off. Switching is an immediate,
// synchronous re-materialization: enabling writes a snapshot of every given
// entry, disabling removes every record. Bulk rebuilds over large entry
// sets should be dispatched off any UI-responsible thread by the caller.
func (c *Cache) SetEnabled(ctx context.Context, enabled bool, entries []models.Entry) error {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()

	if !enabled {
		if err := c.store.DeleteAll(ctx); err != nil {
			return fmt.Errorf("offline: failed to tear down records: %w", err)
		}
		return nil
	}

	for _, entry := range entries {
		if err := c.Store(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
