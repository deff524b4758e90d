package keystore

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/crypto"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, crypto.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestNew(t *testing.T) {
	k1 := randomKey(t)
	k2 := randomKey(t)

	tests := []struct {
		name    string
		keys    map[string][]byte
		current string
		wantErr bool
	}{
		{
			name:    "valid store",
			keys:    map[string][]byte{"K1": k1, "K2": k2},
			current: "K1",
		},
		{
			name:    "current not in keys",
			keys:    map[string][]byte{"K1": k1},
			current: "K2",
			wantErr: true,
		},
		{
			name:    "empty keys",
			keys:    map[string][]byte{},
			current: "K1",
			wantErr: true,
		},
		{
			name:    "empty current",
			keys:    map[string][]byte{"K1": k1},
			current: "",
			wantErr: true,
		},
		{
			name:    "wrong key size",
			keys:    map[string][]byte{"K1": make([]byte, 16)},
			current: "K1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ks, err := New(tt.keys, tt.current)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, ks)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.current, ks.CurrentID())
			assert.Equal(t, len(tt.keys), ks.Len())
		})
	}
}

func TestKeyLookup(t *testing.T) {
	k1 := randomKey(t)
	k2 := randomKey(t)
	ks, err := New(map[string][]byte{"K1": k1, "K2": k2}, "K2")
	require.NoError(t, err)

	// old keys stay resolvable after rotation, not only the current one
	got, err := ks.Key("K1")
	require.NoError(t, err)
	assert.Equal(t, k1, got)

	id, key, err := ks.Current()
	require.NoError(t, err)
	assert.Equal(t, "K2", id)
	assert.Equal(t, k2, key)

	_, err = ks.Key("K3")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestNewCopiesInput(t *testing.T) {
	k1 := randomKey(t)
	orig := make([]byte, crypto.KeySize)
	copy(orig, k1)

	input := map[string][]byte{"K1": k1}
	ks, err := New(input, "K1")
	require.NoError(t, err)

	// mutating the caller's map or key bytes must not affect the snapshot
	input["K2"] = randomKey(t)
	k1[0] ^= 0xFF

	assert.Equal(t, 1, ks.Len())
	got, err := ks.Key("K1")
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestKeychainRoundTrip(t *testing.T) {
	k1 := randomKey(t)
	k2 := randomKey(t)
	ks, err := New(map[string][]byte{"K1": k1, "K2": k2}, "K2")
	require.NoError(t, err)

	doc, err := ks.EncodeKeychain()
	require.NoError(t, err)

	parsed, err := ParseKeychain(doc)
	require.NoError(t, err)
	assert.Equal(t, "K2", parsed.CurrentID())
	assert.Equal(t, 2, parsed.Len())

	got, err := parsed.Key("K1")
	require.NoError(t, err)
	assert.Equal(t, k1, got)
}

func TestParseKeychainInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "garbage"},
		{name: "key not hex", doc: `{"keys":{"K1":"zzzz"},"current":"K1"}`},
		{name: "current missing", doc: `{"keys":{},"current":"K1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeychain([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestWithKey(t *testing.T) {
	k1 := randomKey(t)
	k2 := randomKey(t)
	ks, err := New(map[string][]byte{"K1": k1}, "K1")
	require.NoError(t, err)

	rotated, err := ks.WithKey("K2", k2)
	require.NoError(t, err)

	// new snapshot carries both keys with the new one current
	assert.Equal(t, "K2", rotated.CurrentID())
	assert.Equal(t, 2, rotated.Len())
	old, err := rotated.Key("K1")
	require.NoError(t, err)
	assert.Equal(t, k1, old)

	// the original snapshot is untouched
	assert.Equal(t, "K1", ks.CurrentID())
	assert.Equal(t, 1, ks.Len())
}
