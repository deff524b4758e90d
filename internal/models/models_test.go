package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "uuid", id: "b7f8c1c2-0d3e-4f5a-9b6c-7d8e9f0a1b2c", want: true},
		{name: "base sentinel", id: BaseID, want: true},
		{name: "fresh id", id: NewID(), want: true},
		{name: "empty", id: "", want: false},
		{name: "not a uuid", id: "not-a-uuid", want: false},
		{name: "truncated uuid", id: "b7f8c1c2-0d3e-4f5a-9b6c", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidID(tt.id))
		})
	}
}

func TestStateIsError(t *testing.T) {
	assert.False(t, StateSettled.IsError())
	assert.False(t, StateCreating.IsError())
	assert.False(t, StateUpdating.IsError())
	assert.False(t, StateDeleting.IsError())
	assert.True(t, StateCreationFailed.IsError())
	assert.True(t, StateUpdateFailed.IsError())
	assert.True(t, StateDeletionFailed.IsError())
	assert.True(t, StateDecryptionFailed.IsError())
}

func TestPasswordWireFormat(t *testing.T) {
	p := Password{
		ID:       "b7f8c1c2-0d3e-4f5a-9b6c-7d8e9f0a1b2c",
		Label:    "Mail",
		Revision: "rev-1",
		CSEType:  "CSEv1r1",
		CSEKey:   "K1",
		Edited:   1700000000,
		State:    StateDecryptionFailed,
	}

	data, err := json.Marshal(&p)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "CSEv1r1", wire["cseType"])
	assert.Equal(t, "K1", wire["cseKey"])
	assert.Equal(t, "rev-1", wire["revision"])
	assert.Equal(t, float64(1700000000), wire["edited"])
	assert.NotContains(t, wire, "State", "state is client-local")

	var decoded Password
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StateSettled, decoded.State)
}

func TestPasswordClone(t *testing.T) {
	p := &Password{
		ID:   "b7f8c1c2-0d3e-4f5a-9b6c-7d8e9f0a1b2c",
		Tags: []string{"t1", "t2"},
	}

	c := p.Clone()
	c.Label = "changed"
	c.Tags[0] = "other"

	assert.Equal(t, "", p.Label)
	assert.Equal(t, "t1", p.Tags[0], "tag slice is copied, not shared")
}

func TestParseCustomFields(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []CustomField
		wantErr bool
	}{
		{name: "empty string", input: "", want: nil},
		{
			name:  "single field",
			input: `[{"label":"PIN","type":"secret","value":"1234"}]`,
			want:  []CustomField{{Label: "PIN", Type: CustomFieldSecret, Value: "1234"}},
		},
		{
			name:  "mixed types",
			input: `[{"label":"Work","type":"email","value":"a@b.c"},{"label":"otp","type":"data","value":"otpauth://totp/a?secret=AAAA"}]`,
			want: []CustomField{
				{Label: "Work", Type: CustomFieldEmail, Value: "a@b.c"},
				{Label: "otp", Type: CustomFieldData, Value: "otpauth://totp/a?secret=AAAA"},
			},
		},
		{name: "not json", input: "{{", wantErr: true},
		{name: "unknown type", input: `[{"label":"x","type":"blob","value":"y"}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCustomFields(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomFieldsRoundTrip(t *testing.T) {
	fields := []CustomField{
		{Label: "PIN", Type: CustomFieldSecret, Value: "1234"},
		{Label: "Site", Type: CustomFieldURL, Value: "https://example.com"},
	}

	encoded, err := EncodeCustomFields(fields)
	require.NoError(t, err)

	decoded, err := ParseCustomFields(encoded)
	require.NoError(t, err)
	assert.Equal(t, fields, decoded)
}

func TestEncodeCustomFieldsEmpty(t *testing.T) {
	encoded, err := EncodeCustomFields(nil)
	require.NoError(t, err)
	assert.Equal(t, "", encoded)
}
