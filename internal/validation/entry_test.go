package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/models"
)

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantErr bool
	}{
		{name: "ok", label: "Mail"},
		{name: "at limit", label: strings.Repeat("a", MaxLabelLen)},
		{name: "empty", label: "", wantErr: true},
		{name: "over limit", label: strings.Repeat("a", MaxLabelLen+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel(tt.label)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(models.NewID()))
	assert.NoError(t, ValidateID(models.BaseID))
	assert.Error(t, ValidateID(""))
	assert.Error(t, ValidateID("not-a-uuid"))
}

func TestValidateColor(t *testing.T) {
	tests := []struct {
		name    string
		color   string
		wantErr bool
	}{
		{name: "lowercase", color: "#336699"},
		{name: "uppercase", color: "#AABBCC"},
		{name: "empty", color: "", wantErr: true},
		{name: "no hash", color: "336699", wantErr: true},
		{name: "short form", color: "#369", wantErr: true},
		{name: "not hex", color: "#33669g", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateColor(tt.color)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFolder(t *testing.T) {
	assert.NoError(t, ValidateFolder(&models.Folder{Label: "Work", Parent: models.BaseID}))
	assert.NoError(t, ValidateFolder(&models.Folder{Label: "Work"}))
	assert.Error(t, ValidateFolder(&models.Folder{Parent: models.BaseID}))
	assert.Error(t, ValidateFolder(&models.Folder{Label: "Work", Parent: "nope"}))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name    string
		entry   *models.Password
		wantErr bool
	}{
		{name: "minimal", entry: &models.Password{Label: "Mail"}},
		{
			name: "full",
			entry: &models.Password{
				Label:        "Mail",
				Username:     "alice",
				Folder:       models.BaseID,
				CustomFields: `[{"label":"PIN","type":"secret","value":"1234"}]`,
			},
		},
		{name: "missing label", entry: &models.Password{Username: "alice"}, wantErr: true},
		{
			name:    "username too long",
			entry:   &models.Password{Label: "Mail", Username: strings.Repeat("a", MaxFieldLen+1)},
			wantErr: true,
		},
		{
			name:    "notes too long",
			entry:   &models.Password{Label: "Mail", Notes: strings.Repeat("a", MaxNotesLen+1)},
			wantErr: true,
		},
		{name: "bad folder id", entry: &models.Password{Label: "Mail", Folder: "nope"}, wantErr: true},
		{
			name:    "malformed custom fields",
			entry:   &models.Password{Label: "Mail", CustomFields: "{{"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTag(t *testing.T) {
	assert.NoError(t, ValidateTag(&models.Tag{Label: "banking", Color: "#336699"}))
	assert.Error(t, ValidateTag(&models.Tag{Color: "#336699"}))
	assert.Error(t, ValidateTag(&models.Tag{Label: "banking"}))
}
