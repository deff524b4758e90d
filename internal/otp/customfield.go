package otp

import (
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/models"
)

// customFieldLabel names the hidden data field a password entry stores its
// OTP configuration in.
const customFieldLabel = "otp"

// FromCustomFields extracts an embedded OTP configuration from a password's
// custom fields. ok is false when no OTP field is present; a present but
// unparseable field returns an error so the caller can surface it instead of
// silently dropping the configuration.
func FromCustomFields(fields []models.CustomField) (o OTP, ok bool, err error) {
	for _, f := range fields {
		if f.Type != models.CustomFieldData || f.Label != customFieldLabel {
			continue
		}
		o, err = ParseURI(f.Value)
		if err != nil {
			return OTP{}, false, err
		}
		return o, true, nil
	}
	return OTP{}, false, nil
}

// EmbedInCustomFields returns fields with the OTP configuration stored in
// the hidden otp data field, replacing any existing one.
func EmbedInCustomFields(fields []models.CustomField, o OTP) []models.CustomField {
	otpField := models.CustomField{
		Label: customFieldLabel,
		Type:  models.CustomFieldData,
		Value: o.URI(),
	}
	result := make([]models.CustomField, 0, len(fields)+1)
	for _, f := range fields {
		if f.Type == models.CustomFieldData && f.Label == customFieldLabel {
			continue
		}
		result = append(result, f)
	}
	return append(result, otpField)
}

// RemoveFromCustomFields strips the embedded OTP configuration, used when
// the user deletes the one-time password from an entry.
func RemoveFromCustomFields(fields []models.CustomField) []models.CustomField {
	result := make([]models.CustomField, 0, len(fields))
	for _, f := range fields {
		if f.Type == models.CustomFieldData && f.Label == customFieldLabel {
			continue
		}
		result = append(result, f)
	}
	return result
}
