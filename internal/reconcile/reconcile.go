// Package reconcile decides whether an incoming version of an entry
// overwrites the locally held one. Revisions are opaque tokens compared only
// for equality; there is no ordering between them.
package reconcile

import (
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/models"
)

// Merge applies incoming onto local in place and reports whether anything
// changed. It is a no-op when the ids differ or the revisions are equal, so
// applying the same server state twice never re-triggers offline-cache
// writes or observer notifications.
//
// All mutable fields including the processing state are overwritten; the
// revision is written last, so an observer reacting to the revision change
// sees already-consistent field values and any cache hook persists the fully
// updated entry.
func Merge(local, incoming models.Entry) bool {
	if local == nil || incoming == nil {
		return false
	}
	if local.EntryID() != incoming.EntryID() {
		return false
	}
	if local.EntryRevision() == incoming.EntryRevision() {
		return false
	}

	switch l := local.(type) {
	case *models.Folder:
		in, ok := incoming.(*models.Folder)
		if !ok {
			return false
		}
		mergeFolder(l, in)
	case *models.Password:
		in, ok := incoming.(*models.Password)
		if !ok {
			return false
		}
		mergePassword(l, in)
	case *models.Tag:
		in, ok := incoming.(*models.Tag)
		if !ok {
			return false
		}
		mergeTag(l, in)
	default:
		return false
	}
	return true
}

func mergeFolder(local, incoming *models.Folder) {
	local.Label = incoming.Label
	local.Parent = incoming.Parent
	local.CSEType = incoming.CSEType
	local.CSEKey = incoming.CSEKey
	local.SSEType = incoming.SSEType
	local.Client = incoming.Client
	local.Hidden = incoming.Hidden
	local.Trashed = incoming.Trashed
	local.Favorite = incoming.Favorite
	local.Edited = incoming.Edited
	local.Created = incoming.Created
	local.Updated = incoming.Updated
	local.State = incoming.State

	// revision last, see package comment
	local.Revision = incoming.Revision
}

func mergePassword(local, incoming *models.Password) {
	local.Label = incoming.Label
	local.Username = incoming.Username
	local.Password = incoming.Password
	local.URL = incoming.URL
	local.Notes = incoming.Notes
	local.CustomFields = incoming.CustomFields
	local.Hash = incoming.Hash
	local.Folder = incoming.Folder
	if incoming.Tags != nil {
		local.Tags = make([]string, len(incoming.Tags))
		copy(local.Tags, incoming.Tags)
	} else {
		local.Tags = nil
	}
	local.Status = incoming.Status
	local.StatusCode = incoming.StatusCode
	local.CSEType = incoming.CSEType
	local.CSEKey = incoming.CSEKey
	local.SSEType = incoming.SSEType
	local.Client = incoming.Client
	local.Hidden = incoming.Hidden
	local.Trashed = incoming.Trashed
	local.Favorite = incoming.Favorite
	local.Edited = incoming.Edited
	local.Created = incoming.Created
	local.Updated = incoming.Updated
	local.State = incoming.State

	// revision last, see package comment
	local.Revision = incoming.Revision
}

func mergeTag(local, incoming *models.Tag) {
	local.Label = incoming.Label
	local.Color = incoming.Color
	local.CSEType = incoming.CSEType
	local.CSEKey = incoming.CSEKey
	local.SSEType = incoming.SSEType
	local.Client = incoming.Client
	local.Hidden = incoming.Hidden
	local.Trashed = incoming.Trashed
	local.Favorite = incoming.Favorite
	local.Edited = incoming.Edited
	local.Created = incoming.Created
	local.Updated = incoming.Updated
	local.State = incoming.State

	// revision last, see package comment
	local.Revision = incoming.Revision
}
