// Package cli implements the interactive commands of the client binary.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/keychain"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/session"
	pkgapi "github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/pkg/api"
)

// cachedChallengeName is the keychain slot holding the last seen challenge
// so a later start can unlock offline.
const cachedChallengeName = "cachedChallenge"

// ReadPassword prompts for a password without echoing it.
func ReadPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// ReadLine prompts for a line of input.
func ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// SaveChallenge persists the session's challenge for offline unlock.
func SaveChallenge(ctx context.Context, kc keychain.Keychain, challenge *pkgapi.Challenge) error {
	if challenge == nil {
		return nil
	}
	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to serialize challenge: %w", err)
	}
	return kc.SetKey(ctx, cachedChallengeName, data)
}

// LoadChallenge returns the cached challenge, or nil when none is stored.
func LoadChallenge(ctx context.Context, kc keychain.Keychain) *pkgapi.Challenge {
	data, err := kc.GetKey(ctx, cachedChallengeName)
	if err != nil {
		return nil
	}
	var challenge pkgapi.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil
	}
	return &challenge
}

// DeleteChallenge removes the cached challenge on logout.
func DeleteChallenge(ctx context.Context, kc keychain.Keychain) {
	_ = kc.DeleteKey(ctx, cachedChallengeName)
}

// StateName renders a session state for display.
func StateName(s session.State) string {
	switch s {
	case session.StateUnauthenticated:
		return "unauthenticated"
	case session.StateAuthenticating:
		return "authenticating"
	case session.StateChallengeAvailable:
		return "locked (challenge available)"
	case session.StateOfflineChallengeAvailable:
		return "locked (offline challenge available)"
	case session.StateUnlocked:
		return "unlocked"
	}
	return "unknown"
}

// ReasonName renders an invalidation reason for display.
func ReasonName(r session.InvalidationReason) string {
	switch r {
	case session.ReasonLogout:
		return "logout"
	case session.ReasonDeauthorization:
		return "deauthorization"
	}
	return "none"
}

// PrintUsage writes the command overview.
func PrintUsage() {
	fmt.Println(`Usage: client [flags] <command>

Commands:
  login     Authenticate with the server
  unlock    Solve the challenge and unlock the key store
  status    Show session and offline cache status
  otp       Print the current one-time code for a password entry
  offline   Enable or disable the offline cache (offline on|off)
  logout    Sign out and invalidate the session

Flags:
  -server   Server URL
  -db       Path to the local database
  -storage  Offline record backend: bolt or sqlite`)
}

// Errf prints an error to stderr.
func Errf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

var errUsage = errors.New("invalid usage")
