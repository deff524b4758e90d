package cse

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/keystore"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/models"
)

var (
	// ErrDecryptionFailedEntry means an entry whose fields never decrypted
	// was handed to Encode. Re-encrypting still-undecrypted ciphertext as if
	// it were plaintext would destroy the data, so encoding is refused.
	ErrDecryptionFailedEntry = errors.New("cse: refusing to encode entry in decryptionFailed state")
	// ErrNoKeyStore means an encode that requires encryption ran without an
	// unlocked key store.
	ErrNoKeyStore = errors.New("cse: no key store available")
)

// Codec applies the field envelope across the encryptable fields of each
// entry kind. Field order is fixed per kind; decode stops at the first
// failed field and marks the entry decryptionFailed instead of erroring.
type Codec struct {
	logger *slog.Logger
}

// NewCodec creates a Codec. logger must not be nil.
func NewCodec(logger *slog.Logger) *Codec {
	return &Codec{logger: logger}
}

// encryptableFields returns pointers to the entry's encryptable fields in
// their defined order.
func encryptableFields(entry models.Entry) []*string {
	switch e := entry.(type) {
	case *models.Folder:
		return []*string{&e.Label}
	case *models.Password:
		return []*string{&e.Label, &e.Username, &e.Password, &e.URL, &e.Notes, &e.CustomFields}
	case *models.Tag:
		return []*string{&e.Label, &e.Color}
	}
	return nil
}

// envelope returns pointers to the entry's cseType/cseKey wire fields and a
// setter for its state.
func envelope(entry models.Entry) (cseType, cseKey *string, setState func(models.State)) {
	switch e := entry.(type) {
	case *models.Folder:
		return &e.CSEType, &e.CSEKey, func(s models.State) { e.State = s }
	case *models.Password:
		return &e.CSEType, &e.CSEKey, func(s models.State) { e.State = s }
	case *models.Tag:
		return &e.CSEType, &e.CSEKey, func(s models.State) { e.State = s }
	}
	return nil, nil, nil
}

// Decode decrypts the entry's encryptable fields in place using the key
// identified by its cseKey. A missing key store, unknown scheme, missing key
// or failed field leaves the entry in decryptionFailed state; fields decoded
// before the failure keep their decrypted values and plain fields stay
// valid. Sibling entries in a batch are unaffected.
func (c *Codec) Decode(entry models.Entry, ks *keystore.KeyStore) {
	cseType, cseKey, setState := envelope(entry)
	if cseType == nil {
		return
	}

	scheme, err := ParseScheme(*cseType)
	if err != nil {
		c.logger.Warn("entry uses unknown encryption scheme",
			"kind", entry.EntryKind(), "id", entry.EntryID(), "cseType", *cseType)
		setState(models.StateDecryptionFailed)
		return
	}
	if scheme == SchemeNone {
		return
	}

	if ks == nil {
		c.logger.Warn("cannot decrypt entry without key store",
			"kind", entry.EntryKind(), "id", entry.EntryID())
		setState(models.StateDecryptionFailed)
		return
	}
	key, err := ks.Key(*cseKey)
	if err != nil {
		c.logger.Warn("encryption key missing from key store",
			"kind", entry.EntryKind(), "id", entry.EntryID(), "cseKey", *cseKey)
		setState(models.StateDecryptionFailed)
		return
	}

	for i, field := range encryptableFields(entry) {
		plain, err := scheme.DecryptField(*field, key)
		if err != nil {
			c.logger.Warn("field decryption failed",
				"kind", entry.EntryKind(), "id", entry.EntryID(), "field", i, "error", err)
			setState(models.StateDecryptionFailed)
			return
		}
		*field = plain
	}
}

// Encode encrypts the entry's encryptable fields in place for transmission.
// userEdit marks a user-initiated save: it upgrades plaintext entries to the
// latest scheme, while entries received as plaintext stay plaintext on
// non-user paths (server-side-only encryption). The current key id is always
// stamped so a later decode resolves through the full key map.
func (c *Codec) Encode(entry models.Entry, ks *keystore.KeyStore, userEdit bool) error {
	cseType, cseKey, _ := envelope(entry)
	if cseType == nil {
		return fmt.Errorf("cse: unsupported entry type %T", entry)
	}

	if entry.EntryState() == models.StateDecryptionFailed {
		return fmt.Errorf("%w: %s %s", ErrDecryptionFailedEntry, entry.EntryKind(), entry.EntryID())
	}

	scheme, err := ParseScheme(*cseType)
	if err != nil {
		return fmt.Errorf("cse: cannot encode %s %s: %w", entry.EntryKind(), entry.EntryID(), err)
	}

	if scheme == SchemeNone && !userEdit {
		*cseKey = ""
		return nil
	}

	if ks == nil {
		return fmt.Errorf("cse: cannot encode %s %s: %w", entry.EntryKind(), entry.EntryID(), ErrNoKeyStore)
	}
	keyID, key, err := ks.Current()
	if err != nil {
		return fmt.Errorf("cse: cannot encode %s %s: %w", entry.EntryKind(), entry.EntryID(), err)
	}

	if p, ok := entry.(*models.Password); ok && userEdit {
		p.Hash = passwordHash(p.Password)
	}

	// Seal into a scratch slice first so a failure leaves the entry
	// untouched instead of half plaintext, half ciphertext.
	target := LatestScheme()
	fields := encryptableFields(entry)
	sealed := make([]string, len(fields))
	for i, field := range fields {
		s, err := target.EncryptField(*field, key)
		if err != nil {
			return fmt.Errorf("cse: failed to encrypt field %d of %s %s: %w",
				i, entry.EntryKind(), entry.EntryID(), err)
		}
		sealed[i] = s
	}
	for i, field := range fields {
		*field = sealed[i]
	}

	*cseType = target.Tag()
	*cseKey = keyID
	return nil
}

// passwordHash is the lowercase hex SHA-1 of the plaintext password, the
// server's contract for breach status checks.
func passwordHash(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}
