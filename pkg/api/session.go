// Package api defines the wire DTOs exchanged with the password server's
// session endpoints. Entry payloads carry the field envelope inline as
// cseType/cseKey plus the (possibly ciphertext) field values; see the model
// types for the entry shapes themselves.
package api

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	SessionID string `json:"session_id"` // opaque session token (JWT)
	Server    string `json:"server"`     // canonical server URL
	User      string `json:"user"`       // user id on the server
	// Challenge is present when the server requires the client-side
	// encryption password to unlock the keychain.
	Challenge *Challenge `json:"challenge,omitempty"`
}

// Challenge carries what the client needs to unlock the key store: the salt
// for key derivation and the encrypted keychain blob. The blob opens only
// with the key derived from the correct password.
type Challenge struct {
	Salt     string `json:"salt"`     // base64 encoded salt (32 bytes)
	Keychain string `json:"keychain"` // base64 encoded encrypted keychain document
}

// ErrorResponse is the error body returned by the server.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
