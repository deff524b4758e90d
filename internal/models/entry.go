// Package models defines the entry types synchronized with the password
// server: folders, passwords and tags, unified by id and revision token.
package models

import "github.com/google/uuid"

// Kind classifies an entry.
type Kind string

const (
	KindFolder   Kind = "folder"
	KindPassword Kind = "password"
	KindTag      Kind = "tag"
)

// BaseID is the reserved all-zero id of the root folder sentinel.
const BaseID = "00000000-0000-0000-0000-000000000000"

// State describes an entry's processing or error condition. The zero value
// means "settled" (no operation in flight, no error).
type State string

const (
	StateSettled          State = ""
	StateCreating         State = "creating"
	StateUpdating         State = "updating"
	StateDeleting         State = "deleting"
	StateCreationFailed   State = "creationFailed"
	StateUpdateFailed     State = "updateFailed"
	StateDeletionFailed   State = "deletionFailed"
	StateDecryptionFailed State = "decryptionFailed"
)

// IsError reports whether the state is one of the failure states.
func (s State) IsError() bool {
	switch s {
	case StateCreationFailed, StateUpdateFailed, StateDeletionFailed, StateDecryptionFailed:
		return true
	}
	return false
}

// ValidID reports whether id is a UUID or the reserved base sentinel.
func ValidID(id string) bool {
	if id == BaseID {
		return true
	}
	return uuid.Validate(id) == nil
}

// NewID returns a fresh random entry id.
func NewID() string {
	return uuid.NewString()
}

// Entry is the common surface of the three entity kinds, used by the
// reconciliation engine and the vault service for dispatch. Relations
// between entries (folder parents, password folders, tags) are carried as
// plain ids; the owning collection resolves them through a lookup index.
type Entry interface {
	EntryKind() Kind
	EntryID() string
	EntryRevision() string
	EntryState() State
}
