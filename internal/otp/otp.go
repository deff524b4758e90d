// Package otp implements HOTP and TOTP one-time-password generation and the
// otpauth:// URI format used to import and export OTP secrets.
package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash"
	"strings"
	"time"
)

// Type selects the counter source: hotp counts consumptions, totp counts
// time steps.
type Type string

const (
	TypeHOTP Type = "hotp"
	TypeTOTP Type = "totp"
)

// Algorithm selects the HMAC hash.
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "SHA1"
	AlgorithmSHA256 Algorithm = "SHA256"
	AlgorithmSHA512 Algorithm = "SHA512"
)

// Defaults for absent otpauth parameters.
const (
	DefaultAlgorithm = AlgorithmSHA1
	DefaultDigits    = 6
	DefaultCounter   = 0
	DefaultPeriod    = 30

	minDigits = 6
	maxDigits = 8
)

// OTP is an immutable one-time-password configuration. Values are built
// only through the validated constructors; an OTP that exists is valid.
type OTP struct {
	Type        Type
	Algorithm   Algorithm
	Secret      string // base32, normalized to upper case without padding
	Digits      int
	Counter     uint64 // hotp only
	Period      int    // totp only
	Issuer      string
	AccountName string
}

// NewHOTP builds a counter-based OTP configuration.
func NewHOTP(algorithm Algorithm, secret string, digits int, counter uint64, issuer, accountName string) (OTP, error) {
	o := OTP{
		Type:        TypeHOTP,
		Algorithm:   algorithm,
		Secret:      secret,
		Digits:      digits,
		Counter:     counter,
		Issuer:      issuer,
		AccountName: accountName,
	}
	if err := o.validate(); err != nil {
		return OTP{}, err
	}
	o.Secret = normalizeSecret(secret)
	return o, nil
}

// NewTOTP builds a time-based OTP configuration.
func NewTOTP(algorithm Algorithm, secret string, digits, period int, issuer, accountName string) (OTP, error) {
	o := OTP{
		Type:        TypeTOTP,
		Algorithm:   algorithm,
		Secret:      secret,
		Digits:      digits,
		Period:      period,
		Issuer:      issuer,
		AccountName: accountName,
	}
	if err := o.validate(); err != nil {
		return OTP{}, err
	}
	o.Secret = normalizeSecret(secret)
	return o, nil
}

// validate rejects invalid combinations so no partially valid OTP value can
// exist.
func (o OTP) validate() error {
	switch o.Type {
	case TypeHOTP, TypeTOTP:
	default:
		return fmt.Errorf("otp: invalid type %q", o.Type)
	}
	switch o.Algorithm {
	case AlgorithmSHA1, AlgorithmSHA256, AlgorithmSHA512:
	default:
		return fmt.Errorf("otp: invalid algorithm %q", o.Algorithm)
	}
	if _, err := decodeSecret(o.Secret); err != nil {
		return fmt.Errorf("otp: secret is not valid base32: %w", err)
	}
	if o.Digits < minDigits || o.Digits > maxDigits {
		return fmt.Errorf("otp: digits must be %d..%d, got %d", minDigits, maxDigits, o.Digits)
	}
	if o.Type == TypeTOTP && o.Period <= 0 {
		return fmt.Errorf("otp: period must be positive, got %d", o.Period)
	}
	return nil
}

// Next returns the configuration to store after a code has been consumed.
// For hotp the counter advances by exactly one; for totp the counter is
// time-derived and Next returns the value unchanged.
func (o OTP) Next() OTP {
	if o.Type != TypeHOTP {
		return o
	}
	next := o
	next.Counter++
	return next
}

// Code computes the current code: for hotp from the stored counter, for
// totp from the time step containing now.
func (o OTP) Code(now time.Time) string {
	counter := o.Counter
	if o.Type == TypeTOTP {
		counter = uint64(now.Unix() / int64(o.Period))
	}
	return o.codeAt(counter)
}

// codeAt runs the standard computation: HMAC over the 8-byte big-endian
// counter, dynamic truncation, modulo 10^digits, zero padded.
func (o OTP) codeAt(counter uint64) string {
	secret, err := decodeSecret(o.Secret)
	if err != nil {
		// The constructor validated the secret; this cannot happen for a
		// value built through the factory paths.
		return strings.Repeat("0", o.Digits)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(o.hashFunc(), secret)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0F
	trunc := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7FFFFFFF

	mod := uint32(1)
	for i := 0; i < o.Digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", o.Digits, trunc%mod)
}

// Remaining returns the seconds left in the current totp period, used to
// drive the UI refresh countdown. Returns 0 for hotp.
func (o OTP) Remaining(now time.Time) int {
	if o.Type != TypeTOTP {
		return 0
	}
	return o.Period - int(now.Unix()%int64(o.Period))
}

func (o OTP) hashFunc() func() hash.Hash {
	switch o.Algorithm {
	case AlgorithmSHA256:
		return sha256.New
	case AlgorithmSHA512:
		return sha512.New
	default:
		return sha1.New
	}
}

func normalizeSecret(secret string) string {
	return strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
}

func decodeSecret(secret string) ([]byte, error) {
	secret = normalizeSecret(secret)
	if secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
}
