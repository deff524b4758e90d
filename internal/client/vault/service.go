// Package vault coordinates the data flow between the entry codec, the
// session's key store, the reconciliation rule and the offline cache.
// Incoming wire entries are decoded, merged by revision and snapshotted;
// outgoing edits are validated, re-encrypted and handed back for
// transmission. The canonical entry collections live here, keyed by id;
// relations stay plain ids resolved through these maps.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/offline"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/session"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/cse"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/keystore"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/models"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/otp"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/reconcile"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/validation"
)

// ErrEntryNotFound means no entry with the requested id is held locally.
var ErrEntryNotFound = errors.New("vault: entry not found")

// ChangeEvent notifies observers that an entry changed. Events are emitted
// only after the entry and its offline record are consistent.
type ChangeEvent struct {
	Kind models.Kind
	ID   string
}

// Observer receives change events. Observers run synchronously on the
// mutating goroutine and must not block.
type Observer func(ChangeEvent)

// Service owns the in-memory entry collections and moves entries between
// the wire, the key store and the offline cache.
type Service struct {
	codec   *cse.Codec
	cache   *offline.Cache
	session *session.Session
	logger  *slog.Logger

	mu        sync.RWMutex
	folders   map[string]*models.Folder
	passwords map[string]*models.Password
	tags      map[string]*models.Tag
	observers []Observer
}

// NewService creates the vault service.
func NewService(codec *cse.Codec, cache *offline.Cache, sess *session.Session, logger *slog.Logger) *Service {
	return &Service{
		codec:     codec,
		cache:     cache,
		session:   sess,
		logger:    logger,
		folders:   make(map[string]*models.Folder),
		passwords: make(map[string]*models.Password),
		tags:      make(map[string]*models.Tag),
	}
}

// Observe registers a change observer.
func (s *Service) Observe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

func (s *Service) notify(event ChangeEvent) {
	s.mu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, obs := range observers {
		obs(event)
	}
}

// ApplyIncoming feeds a wire-form entry from the network or the offline
// cache into the local collection. The work needs the key store and is
// deferred until the session unlocks when necessary. A decryption failure
// degrades only this entry (its state becomes decryptionFailed); siblings
// in a batch are unaffected.
func (s *Service) ApplyIncoming(ctx context.Context, incoming models.Entry) error {
	return s.session.WhenUnlocked(ctx, func(ctx context.Context, ks *keystore.KeyStore) {
		s.applyIncoming(ctx, incoming, ks)
	})
}

func (s *Service) applyIncoming(ctx context.Context, incoming models.Entry, ks *keystore.KeyStore) {
	// snapshot the wire form before decode mutates the fields; the offline
	// cache stores entries exactly as the server confirmed them
	wire := cloneEntry(incoming)

	s.codec.Decode(incoming, ks)

	changed := s.upsert(incoming)
	if !changed {
		return
	}

	if err := s.cache.Store(ctx, wire); err != nil {
		s.logger.Warn("failed to persist offline record",
			"kind", incoming.EntryKind(), "id", incoming.EntryID(), "error", err)
	}
	s.notify(ChangeEvent{Kind: incoming.EntryKind(), ID: incoming.EntryID()})
}

// upsert inserts the entry or merges it onto the held one by the revision
// rule. Reports whether local state changed.
func (s *Service) upsert(incoming models.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := incoming.(type) {
	case *models.Folder:
		local, ok := s.folders[e.ID]
		if !ok {
			s.folders[e.ID] = e
			return true
		}
		return reconcile.Merge(local, e)
	case *models.Password:
		local, ok := s.passwords[e.ID]
		if !ok {
			s.passwords[e.ID] = e
			return true
		}
		return reconcile.Merge(local, e)
	case *models.Tag:
		local, ok := s.tags[e.ID]
		if !ok {
			s.tags[e.ID] = e
			return true
		}
		return reconcile.Merge(local, e)
	}
	return false
}

// EncodeForUpload validates and re-encrypts a copy of the entry for
// transmission. userEdit marks a user-initiated save, which upgrades
// plaintext entries to the current scheme. Requires an unlocked session;
// any failure aborts the save so partially plaintext data is never sent.
func (s *Service) EncodeForUpload(entry models.Entry, userEdit bool) (models.Entry, error) {
	if err := validateEntry(entry, userEdit); err != nil {
		return nil, err
	}
	ks, err := s.session.KeyStore()
	if err != nil {
		return nil, fmt.Errorf("vault: cannot encode for upload: %w", err)
	}
	wire := cloneEntry(entry)
	if err := s.codec.Encode(wire, ks, userEdit); err != nil {
		return nil, err
	}
	return wire, nil
}

func validateEntry(entry models.Entry, userEdit bool) error {
	if !userEdit {
		return nil
	}
	switch e := entry.(type) {
	case *models.Folder:
		return validation.ValidateFolder(e)
	case *models.Password:
		return validation.ValidatePassword(e)
	case *models.Tag:
		return validation.ValidateTag(e)
	}
	return fmt.Errorf("vault: unsupported entry type %T", entry)
}

// Delete removes an entry from the collection and its offline record.
func (s *Service) Delete(ctx context.Context, kind models.Kind, id string) error {
	s.mu.Lock()
	switch kind {
	case models.KindFolder:
		delete(s.folders, id)
	case models.KindPassword:
		delete(s.passwords, id)
	case models.KindTag:
		delete(s.tags, id)
	}
	s.mu.Unlock()

	if err := s.cache.Remove(ctx, kind, id); err != nil {
		return err
	}
	s.notify(ChangeEvent{Kind: kind, ID: id})
	return nil
}

// LoadOffline reads every available offline snapshot and feeds it through
// the normal incoming path, so decryption waits for the unlock like any
// network batch would.
func (s *Service) LoadOffline(ctx context.Context) error {
	entries, err := s.cache.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := s.ApplyIncoming(ctx, entry); err != nil {
			return err
		}
	}
	s.logger.Info("loaded offline snapshots", "count", len(entries))
	return nil
}

// SetOfflineEnabled toggles offline storage, synchronously rebuilding or
// tearing down every entry's record. The rebuild encodes current entries
// back to wire form with the current key; entries that cannot be encoded
// (decryptionFailed) keep no offline record.
func (s *Service) SetOfflineEnabled(ctx context.Context, enabled bool) error {
	if !enabled {
		return s.cache.SetEnabled(ctx, false, nil)
	}

	ks, err := s.session.KeyStore()
	if err != nil {
		return fmt.Errorf("vault: cannot rebuild offline records: %w", err)
	}

	s.mu.RLock()
	entries := make([]models.Entry, 0, len(s.folders)+len(s.passwords))
	for _, f := range s.folders {
		entries = append(entries, f)
	}
	for _, p := range s.passwords {
		entries = append(entries, p)
	}
	s.mu.RUnlock()

	wires := make([]models.Entry, 0, len(entries))
	for _, entry := range entries {
		wire := cloneEntry(entry)
		if err := s.codec.Encode(wire, ks, false); err != nil {
			s.logger.Warn("skipping offline record for unencodable entry",
				"kind", entry.EntryKind(), "id", entry.EntryID(), "error", err)
			continue
		}
		wires = append(wires, wire)
	}
	return s.cache.SetEnabled(ctx, true, wires)
}

// PasswordOTP extracts the OTP configuration embedded in a password's
// custom fields.
func (s *Service) PasswordOTP(id string) (otp.OTP, bool, error) {
	p, err := s.Password(id)
	if err != nil {
		return otp.OTP{}, false, err
	}
	fields, err := models.ParseCustomFields(p.CustomFields)
	if err != nil {
		return otp.OTP{}, false, fmt.Errorf("vault: password %s: %w", id, err)
	}
	return otp.FromCustomFields(fields)
}

// GenerateOTPCode computes the current one-time code for a password's
// embedded OTP. Consuming an hotp code advances its counter by one and
// persists the updated configuration.
func (s *Service) GenerateOTPCode(ctx context.Context, id string, now time.Time) (string, error) {
	o, ok, err := s.PasswordOTP(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("vault: password %s has no one-time password", id)
	}

	code := o.Code(now)

	if o.Type == otp.TypeHOTP {
		if err := s.setPasswordOTP(ctx, id, o.Next()); err != nil {
			return "", fmt.Errorf("vault: failed to advance hotp counter: %w", err)
		}
	}
	return code, nil
}

// SetPasswordOTP embeds (or replaces) the OTP configuration on a password.
func (s *Service) SetPasswordOTP(ctx context.Context, id string, o otp.OTP) error {
	return s.setPasswordOTP(ctx, id, o)
}

func (s *Service) setPasswordOTP(ctx context.Context, id string, o otp.OTP) error {
	s.mu.Lock()
	p, ok := s.passwords[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("vault: password %s: %w", id, ErrEntryNotFound)
	}
	fields, err := models.ParseCustomFields(p.CustomFields)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("vault: password %s: %w", id, err)
	}
	encoded, err := models.EncodeCustomFields(otp.EmbedInCustomFields(fields, o))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("vault: password %s: %w", id, err)
	}
	p.CustomFields = encoded
	updated := p.Clone()
	s.mu.Unlock()

	// keep the offline snapshot in step with the mutation when possible
	if ks, err := s.session.KeyStore(); err == nil {
		wire := updated
		if err := s.codec.Encode(wire, ks, false); err == nil {
			if err := s.cache.Store(ctx, wire); err != nil {
				s.logger.Warn("failed to refresh offline record", "id", id, "error", err)
			}
		}
	}

	s.notify(ChangeEvent{Kind: models.KindPassword, ID: id})
	return nil
}

// Folder returns a copy of the folder with the given id.
func (s *Service) Folder(id string) (*models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, fmt.Errorf("vault: folder %s: %w", id, ErrEntryNotFound)
	}
	return f.Clone(), nil
}

// Password returns a copy of the password with the given id.
func (s *Service) Password(id string) (*models.Password, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.passwords[id]
	if !ok {
		return nil, fmt.Errorf("vault: password %s: %w", id, ErrEntryNotFound)
	}
	return p.Clone(), nil
}

// Tag returns a copy of the tag with the given id.
func (s *Service) Tag(id string) (*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[id]
	if !ok {
		return nil, fmt.Errorf("vault: tag %s: %w", id, ErrEntryNotFound)
	}
	return t.Clone(), nil
}

// Passwords returns copies of all held passwords.
func (s *Service) Passwords() []*models.Password {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*models.Password, 0, len(s.passwords))
	for _, p := range s.passwords {
		result = append(result, p.Clone())
	}
	return result
}

// PasswordsInFolder returns copies of the passwords whose folder relation
// points at the given folder id.
func (s *Service) PasswordsInFolder(folderID string) []*models.Password {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Password
	for _, p := range s.passwords {
		if p.Folder == folderID {
			result = append(result, p.Clone())
		}
	}
	return result
}

// ChildFolders returns copies of the folders whose parent relation points
// at the given folder id.
func (s *Service) ChildFolders(parentID string) []*models.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Folder
	for _, f := range s.folders {
		if f.Parent == parentID {
			result = append(result, f.Clone())
		}
	}
	return result
}

func cloneEntry(entry models.Entry) models.Entry {
	switch e := entry.(type) {
	case *models.Folder:
		return e.Clone()
	case *models.Password:
		return e.Clone()
	case *models.Tag:
		return e.Clone()
	}
	return entry
}
