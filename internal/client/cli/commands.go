package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/keychain"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/session"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/vault"
)

// RunLogin authenticates and stores the challenge for later offline use.
func RunLogin(ctx context.Context, sess *session.Session, kc keychain.Keychain, server string) error {
	user, err := ReadLine("User: ")
	if err != nil {
		return err
	}
	password, err := ReadPassword("Password: ")
	if err != nil {
		return err
	}

	cached := LoadChallenge(ctx, kc)
	if err := sess.Login(ctx, server, user, password, cached); err != nil {
		return err
	}

	if challenge := sess.Challenge(); challenge != nil {
		if err := SaveChallenge(ctx, kc, challenge); err != nil {
			Errf("warning: could not cache challenge for offline use: %v", err)
		}
	}

	fmt.Printf("Logged in. Session state: %s\n", StateName(sess.State()))
	return nil
}

// RunUnlock solves the challenge with an interactively supplied password.
func RunUnlock(ctx context.Context, sess *session.Session) error {
	password, err := ReadPassword("Unlock password: ")
	if err != nil {
		return err
	}
	remember, err := ReadLine("Remember on this device? [y/N]: ")
	if err != nil {
		return err
	}

	if err := sess.SolveChallenge(ctx, password, remember == "y" || remember == "Y"); err != nil {
		return err
	}
	fmt.Println("Unlocked.")
	return nil
}

// RunStatus prints the session and offline cache state.
func RunStatus(ctx context.Context, sess *session.Session, svc *vault.Service, offlineEnabled bool) error {
	fmt.Printf("Session:  %s\n", StateName(sess.State()))
	fmt.Printf("Invalid:  %s\n", ReasonName(sess.Invalidated()))
	fmt.Printf("Offline:  %v\n", offlineEnabled)
	fmt.Printf("Entries:  %d passwords\n", len(svc.Passwords()))
	return nil
}

// RunOTP prints the current one-time code for a password entry, advancing
// hotp counters as codes are consumed.
func RunOTP(ctx context.Context, svc *vault.Service, args []string) error {
	if len(args) != 1 {
		Errf("usage: otp <password-id>")
		return errUsage
	}
	code, err := svc.GenerateOTPCode(ctx, args[0], time.Now())
	if err != nil {
		return err
	}
	fmt.Println(code)
	return nil
}

// RunOffline toggles the offline cache, rebuilding or tearing down all
// records synchronously.
func RunOffline(ctx context.Context, svc *vault.Service, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		Errf("usage: offline on|off")
		return errUsage
	}
	enabled := args[0] == "on"
	if err := svc.SetOfflineEnabled(ctx, enabled); err != nil {
		return err
	}
	if enabled {
		fmt.Println("Offline cache enabled, records rebuilt.")
	} else {
		fmt.Println("Offline cache disabled, records removed.")
	}
	return nil
}

// RunLogout signs out, invalidates the session and drops cached
// credentials.
func RunLogout(ctx context.Context, sess *session.Session, kc keychain.Keychain) error {
	sess.Logout(ctx)
	DeleteChallenge(ctx, kc)
	fmt.Println("Logged out.")
	return nil
}
