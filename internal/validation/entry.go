// Package validation rejects invalid entry input at construction time so no
// partially valid value ever reaches the codec or the server.
package validation

import (
	"fmt"
	"regexp"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/models"
)

const (
	// MaxLabelLen is the server-side limit for entry labels.
	MaxLabelLen = 64
	// MaxFieldLen is the server-side limit for text fields.
	MaxFieldLen = 256
	// MaxNotesLen is the server-side limit for notes.
	MaxNotesLen = 4096
)

// ColorPattern matches #rrggbb tag colors.
var ColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateLabel checks an entry label.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label cannot be empty")
	}
	if len(label) > MaxLabelLen {
		return fmt.Errorf("label must not exceed %d characters", MaxLabelLen)
	}
	return nil
}

// ValidateID checks an entry id reference.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if !models.ValidID(id) {
		return fmt.Errorf("id %q is not a UUID or the base sentinel", id)
	}
	return nil
}

// ValidateColor checks a tag color.
func ValidateColor(color string) error {
	if color == "" {
		return fmt.Errorf("color cannot be empty")
	}
	if !ColorPattern.MatchString(color) {
		return fmt.Errorf("color must be in #rrggbb format")
	}
	return nil
}

// ValidateFolder checks the user-settable fields of a folder.
func ValidateFolder(f *models.Folder) error {
	if err := ValidateLabel(f.Label); err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}
	if f.Parent != "" {
		if err := ValidateID(f.Parent); err != nil {
			return fmt.Errorf("invalid folder parent: %w", err)
		}
	}
	return nil
}

// ValidatePassword checks the user-settable fields of a password entry.
func ValidatePassword(p *models.Password) error {
	if err := ValidateLabel(p.Label); err != nil {
		return fmt.Errorf("invalid password entry: %w", err)
	}
	if len(p.Username) > MaxFieldLen {
		return fmt.Errorf("invalid password entry: username must not exceed %d characters", MaxFieldLen)
	}
	if len(p.URL) > MaxFieldLen*8 {
		return fmt.Errorf("invalid password entry: url too long")
	}
	if len(p.Notes) > MaxNotesLen {
		return fmt.Errorf("invalid password entry: notes must not exceed %d characters", MaxNotesLen)
	}
	if p.Folder != "" {
		if err := ValidateID(p.Folder); err != nil {
			return fmt.Errorf("invalid password folder: %w", err)
		}
	}
	if p.CustomFields != "" {
		if _, err := models.ParseCustomFields(p.CustomFields); err != nil {
			return fmt.Errorf("invalid password entry: %w", err)
		}
	}
	return nil
}

// ValidateTag checks the user-settable fields of a tag.
func ValidateTag(t *models.Tag) error {
	if err := ValidateLabel(t.Label); err != nil {
		return fmt.Errorf("invalid tag: %w", err)
	}
	if err := ValidateColor(t.Color); err != nil {
		return fmt.Errorf("invalid tag: %w", err)
	}
	return nil
}
