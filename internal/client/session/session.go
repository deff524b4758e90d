// Package session implements the state machine gating all encrypted
// operations behind possession of an unlocked key store. Operations
// submitted while locked are queued and drained in submission order once the
// challenge is solved; an invalidated session drops its queue and refuses
// further use.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/api"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/keychain"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/crypto"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/keystore"
	pkgapi "github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/pkg/api"
)

var (
	// ErrSessionInvalidated means the session was logged out or
	// deauthorized; a new session must be constructed to retry.
	ErrSessionInvalidated = errors.New("session: invalidated")
	// ErrChallengeFailed means the unlock password was wrong. The session
	// stays in its challenge state and the user is re-prompted.
	ErrChallengeFailed = errors.New("session: challenge failed")
	// ErrNotAuthenticated means an operation requiring a session ran
	// before login.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrLocked means the key store is not available yet.
	ErrLocked = errors.New("session: key store locked")
)

// State is the session's position in the authentication flow.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	// StateChallengeAvailable: authenticated online, key store locked
	// until the user supplies the challenge password.
	StateChallengeAvailable
	// StateOfflineChallengeAvailable: cached credentials exist but the
	// server is unreachable; the challenge is solved against the locally
	// cached keychain blob.
	StateOfflineChallengeAvailable
	StateUnlocked
)

// InvalidationReason distinguishes why a session became terminal.
type InvalidationReason int

const (
	ReasonNone InvalidationReason = iota
	ReasonLogout
	ReasonDeauthorization
)

// rememberedKeyName is the keychain slot for the derived unlock key when the
// user chose to be remembered.
const rememberedKeyName = "challengeUnlockKey"

// Operation is work deferred until the key store is available. Operations
// are fire-and-forget dispatches: the drain does not wait for asynchronous
// work an operation starts.
type Operation func(ctx context.Context, ks *keystore.KeyStore)

// Session owns the authentication state, the key store of an unlocked
// session and the pending-operation queue.
type Session struct {
	api      api.SessionAPI
	keychain keychain.Keychain
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	reason    InvalidationReason
	server    string
	user      string
	sessionID string
	challenge *pkgapi.Challenge
	keyStore  *keystore.KeyStore
	pending   []Operation
	draining  bool
}

// New creates an unauthenticated session. keychain may be nil when
// "remember" support is not wanted (tests).
func New(apiClient api.SessionAPI, kc keychain.Keychain, logger *slog.Logger) *Session {
	return &Session{
		api:      apiClient,
		keychain: kc,
		logger:   logger,
		state:    StateUnauthenticated,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Invalidated returns the invalidation reason, ReasonNone while the session
// is live.
func (s *Session) Invalidated() InvalidationReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// SessionID returns the opaque server session token.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Challenge returns the pending unlock challenge, nil once solved.
func (s *Session) Challenge() *pkgapi.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challenge
}

// Login authenticates against the server. cached, when non-nil, is the
// locally stored challenge from a previous session; it enables the offline
// challenge path if the server is unreachable.
func (s *Session) Login(ctx context.Context, server, user, password string, cached *pkgapi.Challenge) error {
	s.mu.Lock()
	if s.reason != ReasonNone {
		s.mu.Unlock()
		return ErrSessionInvalidated
	}
	if s.state != StateUnauthenticated {
		s.mu.Unlock()
		return fmt.Errorf("session: login from state %d not allowed", s.state)
	}
	s.state = StateAuthenticating
	s.mu.Unlock()

	resp, err := s.api.Login(ctx, server, user, password)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.server = resp.Server
		s.user = resp.User
		s.sessionID = resp.SessionID
		s.challenge = resp.Challenge
		s.state = StateChallengeAvailable
		s.logger.Info("login succeeded", "server", s.server, "user", s.user)
		return nil
	case errors.Is(err, api.ErrUnreachable) && cached != nil:
		s.server = server
		s.user = user
		s.challenge = cached
		s.state = StateOfflineChallengeAvailable
		s.logger.Info("server unreachable, offline challenge available", "server", server, "user", user)
		return nil
	default:
		s.state = StateUnauthenticated
		return fmt.Errorf("session: login failed: %w", err)
	}
}

// SolveChallenge derives the unlock key from the supplied password, opens
// the keychain blob and installs the key store. On success the session
// transitions to unlocked and drains the pending queue in FIFO order; on
// failure it stays in its challenge state with nothing changed.
//
// remember stores the derived unlock key in the local keychain so a later
// offline session can unlock without re-typing the password.
func (s *Session) SolveChallenge(ctx context.Context, password string, remember bool) error {
	s.mu.Lock()
	if s.reason != ReasonNone {
		s.mu.Unlock()
		return ErrSessionInvalidated
	}
	if s.state != StateChallengeAvailable && s.state != StateOfflineChallengeAvailable {
		s.mu.Unlock()
		return fmt.Errorf("session: no challenge to solve in state %d", s.state)
	}
	challenge := s.challenge
	online := s.state == StateChallengeAvailable
	sessionID := s.sessionID
	user := s.user
	s.mu.Unlock()

	ks, err := solveKeychain(challenge, password)
	if err != nil {
		s.logger.Warn("challenge solution rejected", "user", user)
		return fmt.Errorf("%w: %v", ErrChallengeFailed, err)
	}

	if online {
		if err := s.api.ConfirmChallenge(ctx, sessionID); err != nil {
			if errors.Is(err, api.ErrDeauthorized) {
				s.Invalidate(ReasonDeauthorization)
				return ErrSessionInvalidated
			}
			return fmt.Errorf("%w: %v", ErrChallengeFailed, err)
		}
	}

	if remember && s.keychain != nil {
		key, derr := crypto.DeriveUnlockKeyFromBase64Salt(password, challenge.Salt)
		if derr == nil {
			if serr := s.keychain.SetKey(ctx, rememberedKeyName, key); serr != nil {
				s.logger.Warn("failed to remember unlock key", "error", serr)
			}
		}
	}

	s.mu.Lock()
	if s.reason != ReasonNone {
		// invalidated while we were solving; the stale key store must not
		// be installed
		s.mu.Unlock()
		return ErrSessionInvalidated
	}
	s.keyStore = ks
	s.state = StateUnlocked
	s.challenge = nil
	// claim the drain before releasing the lock so operations submitted
	// from here on queue behind the ones deferred while locked
	s.draining = true
	s.logger.Info("session unlocked", "user", s.user, "keys", ks.Len())
	s.mu.Unlock()

	s.drain(ctx)
	return nil
}

// solveKeychain derives the unlock key and opens the keychain blob. A wrong
// password fails the AEAD open, so there is no separate verification step.
func solveKeychain(challenge *pkgapi.Challenge, password string) (*keystore.KeyStore, error) {
	if challenge == nil {
		return nil, fmt.Errorf("no challenge data")
	}
	unlockKey, err := crypto.DeriveUnlockKeyFromBase64Salt(password, challenge.Salt)
	if err != nil {
		return nil, err
	}
	blob, err := base64.StdEncoding.DecodeString(challenge.Keychain)
	if err != nil {
		return nil, fmt.Errorf("keychain blob is not valid base64: %w", err)
	}
	plain, err := crypto.Decrypt(blob, unlockKey)
	if err != nil {
		return nil, err
	}
	return keystore.ParseKeychain(plain)
}

// WhenUnlocked runs op immediately when the key store is available, and
// otherwise enqueues it in submission order for execution after the
// challenge is solved. Operations enqueued on a session that is invalidated
// before unlock never run.
func (s *Session) WhenUnlocked(ctx context.Context, op Operation) error {
	s.mu.Lock()
	if s.reason != ReasonNone {
		s.mu.Unlock()
		return ErrSessionInvalidated
	}
	switch s.state {
	case StateUnauthenticated, StateAuthenticating:
		s.mu.Unlock()
		return ErrNotAuthenticated
	case StateChallengeAvailable, StateOfflineChallengeAvailable:
		s.pending = append(s.pending, op)
		s.mu.Unlock()
		return nil
	}
	if s.draining {
		// keep FIFO order relative to operations queued before unlock
		s.pending = append(s.pending, op)
		s.mu.Unlock()
		return nil
	}
	ks := s.keyStore
	s.mu.Unlock()

	if err := s.checkTokenValidity(); err != nil {
		return err
	}
	op(ctx, ks)
	return nil
}

// drain executes pending operations in FIFO order. Appends that happen
// while draining land at the tail and are picked up by the same loop, so
// enqueue-while-draining can neither reorder nor drop operations.
func (s *Session) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.reason != ReasonNone || len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		op := s.pending[0]
		s.pending = s.pending[1:]
		ks := s.keyStore
		s.mu.Unlock()

		op(ctx, ks)
	}
}

// KeyStore returns the unlocked key store, failing fast on a locked or
// invalidated session so no caller can use stale keys.
func (s *Session) KeyStore() (*keystore.KeyStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reason != ReasonNone {
		return nil, ErrSessionInvalidated
	}
	if s.state != StateUnlocked || s.keyStore == nil {
		return nil, ErrLocked
	}
	return s.keyStore, nil
}

// Invalidate makes the session terminal. The key store is destroyed and
// pending operations are dropped without running.
func (s *Session) Invalidate(reason InvalidationReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reason != ReasonNone {
		return
	}
	s.reason = reason
	s.keyStore = nil
	s.pending = nil
	s.logger.Info("session invalidated", "user", s.user, "reason", reason)
}

// Logout signs the session out on the server (best effort) and invalidates
// it locally.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()

	if sessionID != "" {
		if err := s.api.Logout(ctx, sessionID); err != nil {
			s.logger.Warn("server logout failed", "error", err)
		}
	}
	s.Invalidate(ReasonLogout)
}

// HandleAPIError inspects an error from an in-flight authenticated
// operation and invalidates the session when the credential was revoked.
// Returns true when the session was invalidated.
func (s *Session) HandleAPIError(err error) bool {
	if errors.Is(err, api.ErrDeauthorized) {
		s.Invalidate(ReasonDeauthorization)
		return true
	}
	return false
}
