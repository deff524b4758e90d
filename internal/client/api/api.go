// Package api declares the network boundary of the client core. The core
// never performs HTTP itself; a transport implementation satisfying these
// interfaces is injected by the application shell.
package api

import (
	"context"
	"errors"

	pkgapi "github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/pkg/api"
)

var (
	// ErrUnreachable means the server cannot be contacted. Login falls
	// back to the offline challenge when cached credentials exist.
	ErrUnreachable = errors.New("api: server unreachable")
	// ErrUnauthorized means the server rejected the supplied credentials.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrDeauthorized means a previously valid credential has been revoked
	// by the server; the session holding it must not be used further.
	ErrDeauthorized = errors.New("api: credential revoked")
)

// SessionAPI is what the session state machine requires from the transport:
// perform a login, confirm a solved challenge, and signal revocation of a
// previously valid credential via ErrDeauthorized from any call.
type SessionAPI interface {
	// Login authenticates with the server and returns the session
	// descriptor, including the unlock challenge when one is pending.
	Login(ctx context.Context, server, user, password string) (*pkgapi.LoginResponse, error)

	// ConfirmChallenge reports a locally solved challenge to the server so
	// it can mark the session unlocked. ErrUnauthorized means the solution
	// was not accepted.
	ConfirmChallenge(ctx context.Context, sessionID string) error

	// Logout invalidates the session on the server.
	Logout(ctx context.Context, sessionID string) error
}
