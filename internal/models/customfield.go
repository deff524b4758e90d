package models

import (
	"encoding/json"
	"fmt"
)

// CustomFieldType enumerates the value kinds a custom field can hold.
// Fields of type "data" are hidden from normal field listings and carry
// client-internal payloads such as the embedded OTP configuration.
type CustomFieldType string

const (
	CustomFieldText   CustomFieldType = "text"
	CustomFieldSecret CustomFieldType = "secret"
	CustomFieldEmail  CustomFieldType = "email"
	CustomFieldURL    CustomFieldType = "url"
	CustomFieldFile   CustomFieldType = "file"
	CustomFieldData   CustomFieldType = "data"
)

// valid reports whether the type is one of the known kinds.
func (t CustomFieldType) valid() bool {
	switch t {
	case CustomFieldText, CustomFieldSecret, CustomFieldEmail, CustomFieldURL, CustomFieldFile, CustomFieldData:
		return true
	}
	return false
}

// CustomField is a user- or client-defined extra field on a password entry.
type CustomField struct {
	Label string          `json:"label"`
	Type  CustomFieldType `json:"type"`
	Value string          `json:"value"`
}

// ParseCustomFields decodes the customFields JSON array string. An empty
// string decodes to no fields.
func ParseCustomFields(s string) ([]CustomField, error) {
	if s == "" {
		return nil, nil
	}
	var fields []CustomField
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse custom fields: %w", err)
	}
	for i, f := range fields {
		if !f.Type.valid() {
			return nil, fmt.Errorf("custom field %d has unknown type %q", i, f.Type)
		}
	}
	return fields, nil
}

// EncodeCustomFields serializes fields back into the wire string form.
// No fields encode to the empty string, matching what the server sends for
// entries without custom fields.
func EncodeCustomFields(fields []CustomField) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode custom fields: %w", err)
	}
	return string(data), nil
}
