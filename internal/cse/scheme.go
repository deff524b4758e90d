// Package cse implements the client-side encryption layer: the versioned
// field envelope and the entry codec that applies it across the encryptable
// fields of folders, passwords and tags.
package cse

import (
	"errors"
	"fmt"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/crypto"
)

// ErrUnknownScheme means an entry carried a cseType tag this client does not
// implement. Unknown tags are a hard decryption failure, never treated as
// plaintext.
var ErrUnknownScheme = errors.New("cse: unknown encryption scheme")

// Scheme identifies a field encryption scheme version.
type Scheme int

const (
	// SchemeNone is the identity transform: the field travels in clear,
	// e.g. for server-side-only encryption or unencrypted entries.
	SchemeNone Scheme = iota
	// SchemeCSEv1r1 is AES-256-GCM over the UTF-8 field value, base64
	// encoded, keyed by the entry's cseKey id.
	SchemeCSEv1r1
)

// schemeRecord boxes a scheme tag together with its field transforms.
type schemeRecord struct {
	tag     string
	encrypt func(plaintext string, key []byte) (string, error)
	decrypt func(ciphertext string, key []byte) (string, error)
}

// schemes lists all known schemes in version order. The last element is the
// latest scheme, stamped on newly encrypted entries. The list is fixed at
// startup and never mutated.
var schemes = []schemeRecord{
	SchemeNone: {
		tag:     "none",
		encrypt: identityTransform,
		decrypt: identityTransform,
	},
	SchemeCSEv1r1: {
		tag:     "CSEv1r1",
		encrypt: encryptFieldV1,
		decrypt: decryptFieldV1,
	},
}

// LatestScheme returns the scheme used for newly encrypted entries.
func LatestScheme() Scheme {
	return Scheme(len(schemes) - 1)
}

// ParseScheme resolves a cseType wire tag. Unrecognized tags fail with
// ErrUnknownScheme.
func ParseScheme(tag string) (Scheme, error) {
	for i, record := range schemes {
		if record.tag == tag {
			return Scheme(i), nil
		}
	}
	return SchemeNone, fmt.Errorf("%w: %q", ErrUnknownScheme, tag)
}

// Tag returns the wire tag of the scheme.
func (s Scheme) Tag() string {
	if int(s) < 0 || int(s) >= len(schemes) {
		return ""
	}
	return schemes[s].tag
}

// EncryptField seals a single field value under the scheme. The empty
// string is not a secret and passes through unchanged in both directions.
func (s Scheme) EncryptField(plaintext string, key []byte) (string, error) {
	if int(s) < 0 || int(s) >= len(schemes) {
		return "", ErrUnknownScheme
	}
	if plaintext == "" {
		return "", nil
	}
	return schemes[s].encrypt(plaintext, key)
}

// DecryptField opens a single field value under the scheme. A wrong key,
// tampered ciphertext or malformed encoding fails; callers must treat the
// failure as "cannot proceed", never as an empty value.
func (s Scheme) DecryptField(ciphertext string, key []byte) (string, error) {
	if int(s) < 0 || int(s) >= len(schemes) {
		return "", ErrUnknownScheme
	}
	if ciphertext == "" {
		return "", nil
	}
	return schemes[s].decrypt(ciphertext, key)
}

func identityTransform(value string, _ []byte) (string, error) {
	return value, nil
}

func encryptFieldV1(plaintext string, key []byte) (string, error) {
	return crypto.EncryptToBase64([]byte(plaintext), key)
}

func decryptFieldV1(ciphertext string, key []byte) (string, error) {
	plain, err := crypto.DecryptFromBase64(ciphertext, key)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
