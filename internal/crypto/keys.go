package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the unlock key from the challenge
// password. Fixed so that a given (password, salt) pair always derives the
// same key on every device.
const (
	Argon2Time    = 1
	Argon2Memory  = 64 * 1024
	Argon2Threads = 4
	Argon2KeyLen  = KeySize
	// SaltSize is the challenge salt size in bytes.
	SaltSize = 32
)

// GenerateSalt returns a cryptographically random challenge salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveUnlockKey derives the 32-byte key that opens the keychain blob from
// the user-supplied challenge password and the server-issued salt.
func DeriveUnlockKey(password string, salt []byte) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen), nil
}

// DeriveUnlockKeyFromBase64Salt derives the unlock key from a
// base64-encoded salt as carried in the challenge DTO.
func DeriveUnlockKeyFromBase64Salt(password, saltBase64 string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(saltBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	return DeriveUnlockKey(password, salt)
}
