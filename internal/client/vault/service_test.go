package vault

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/offline"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/session"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/storage/boltdb"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/crypto"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/cse"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/keystore"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/models"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/otp"
	pkgapi "github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/pkg/api"
)

const unlockPassword = "vault password"

type fakeAPI struct {
	loginResp *pkgapi.LoginResponse
}

func (f *fakeAPI) Login(ctx context.Context, server, user, password string) (*pkgapi.LoginResponse, error) {
	return f.loginResp, nil
}

func (f *fakeAPI) ConfirmChallenge(ctx context.Context, sessionID string) error { return nil }

func (f *fakeAPI) Logout(ctx context.Context, sessionID string) error { return nil }

// harness wires a vault over real storage, cache, codec and session.
type harness struct {
	service *Service
	session *session.Session
	cache   *offline.Cache
	store   *boltdb.Storage
	codec   *cse.Codec
}

func buildChallenge(t *testing.T) *pkgapi.Challenge {
	t.Helper()

	salt, err := crypto.GenerateSalt()
	require.NoError(t, err)
	unlockKey, err := crypto.DeriveUnlockKey(unlockPassword, salt)
	require.NoError(t, err)

	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	ks, err := keystore.New(map[string][]byte{"K1": key}, "K1")
	require.NoError(t, err)
	doc, err := ks.EncodeKeychain()
	require.NoError(t, err)
	blob, err := crypto.Encrypt(doc, unlockKey)
	require.NoError(t, err)

	return &pkgapi.Challenge{
		Salt:     base64.StdEncoding.EncodeToString(salt),
		Keychain: base64.StdEncoding.EncodeToString(blob),
	}
}

func newHarness(t *testing.T, offlineEnabled bool) *harness {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cache, err := offline.NewCache(ctx, store, store, offlineEnabled, logger)
	require.NoError(t, err)

	transport := &fakeAPI{loginResp: &pkgapi.LoginResponse{
		SessionID: "session-token",
		Server:    "https://cloud.example.com",
		User:      "alice",
		Challenge: buildChallenge(t),
	}}
	sess := session.New(transport, store, logger)
	codec := cse.NewCodec(logger)

	return &harness{
		service: NewService(codec, cache, sess, logger),
		session: sess,
		cache:   cache,
		store:   store,
		codec:   codec,
	}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.session.Login(ctx, "https://cloud.example.com", "alice", "pw", nil))
}

func (h *harness) unlock(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.SolveChallenge(context.Background(), unlockPassword, false))
}

// wirePassword builds a server-confirmed, field-encrypted password entry.
func (h *harness) wirePassword(t *testing.T, id, label, secret, revision string) *models.Password {
	t.Helper()
	ks, err := h.session.KeyStore()
	require.NoError(t, err)

	p := &models.Password{
		ID:       id,
		Label:    label,
		Username: "alice",
		Password: secret,
		CSEType:  "none",
		Revision: revision,
	}
	require.NoError(t, h.codec.Encode(p, ks, true))
	return p
}

func TestApplyIncomingDecodesAndStores(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	wire := h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")
	require.NoError(t, h.service.ApplyIncoming(ctx, wire.Clone()))

	got, err := h.service.Password("p1")
	require.NoError(t, err)
	assert.Equal(t, "Mail", got.Label)
	assert.Equal(t, "hunter2", got.Password)
	assert.Equal(t, models.StateSettled, got.State)

	// the offline record holds the encrypted wire form, not the decoded one
	cached, err := h.cache.Load(ctx, offline.Slot(models.KindPassword, "p1"))
	require.NoError(t, err)
	cachedPassword := cached.(*models.Password)
	assert.Equal(t, "CSEv1r1", cachedPassword.CSEType)
	assert.NotEqual(t, "hunter2", cachedPassword.Password)
}

func TestApplyIncomingDefersUntilUnlock(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	wire := h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")

	// fresh harness sharing the same wire data, still locked
	locked := newHarness(t, false)
	locked.login(t)
	require.NoError(t, locked.service.ApplyIncoming(ctx, wire.Clone()))

	_, err := locked.service.Password("p1")
	assert.ErrorIs(t, err, ErrEntryNotFound, "entry is pending until unlock")

	locked.unlock(t)
	got, err := locked.service.Password("p1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Password)
}

func TestApplyIncomingIdempotent(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	var events []ChangeEvent
	h.service.Observe(func(e ChangeEvent) { events = append(events, e) })

	wire := h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")
	require.NoError(t, h.service.ApplyIncoming(ctx, wire.Clone()))
	require.NoError(t, h.service.ApplyIncoming(ctx, wire.Clone()))

	assert.Len(t, events, 1, "an unchanged revision re-notifies nothing")
}

func TestApplyIncomingMergesNewRevision(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "old", "rev-1")))
	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "new", "rev-2")))

	got, err := h.service.Password("p1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Password)
	assert.Equal(t, "rev-2", got.Revision)
}

func TestApplyIncomingContainsDecryptionFailure(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	good := h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")
	bad := h.wirePassword(t, "p2", "Bank", "secret", "rev-1")
	bad.CSEKey = "K9"

	require.NoError(t, h.service.ApplyIncoming(ctx, bad))
	require.NoError(t, h.service.ApplyIncoming(ctx, good))

	broken, err := h.service.Password("p2")
	require.NoError(t, err)
	assert.Equal(t, models.StateDecryptionFailed, broken.State)

	intact, err := h.service.Password("p1")
	require.NoError(t, err)
	assert.Equal(t, models.StateSettled, intact.State)
	assert.Equal(t, "hunter2", intact.Password)
}

func TestEncodeForUpload(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")))

	p, err := h.service.Password("p1")
	require.NoError(t, err)
	p.Password = "updated"

	wire, err := h.service.EncodeForUpload(p, true)
	require.NoError(t, err)

	uploaded := wire.(*models.Password)
	assert.Equal(t, "CSEv1r1", uploaded.CSEType)
	assert.NotEqual(t, "updated", uploaded.Password)
	assert.Equal(t, "updated", p.Password, "the local copy stays decoded")
}

func TestEncodeForUploadValidates(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	h.unlock(t)

	_, err := h.service.EncodeForUpload(&models.Password{ID: "p1", CSEType: "none"}, true)
	assert.Error(t, err, "a user edit without a label is rejected")
}

func TestEncodeForUploadRequiresUnlock(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)

	_, err := h.service.EncodeForUpload(&models.Password{ID: "p1", Label: "Mail", CSEType: "none"}, true)
	assert.ErrorIs(t, err, session.ErrLocked)
}

func TestEncodeForUploadRefusesDecryptionFailed(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	h.unlock(t)

	entry := &models.Password{ID: "p1", Label: "Mail", CSEType: "CSEv1r1", State: models.StateDecryptionFailed}
	_, err := h.service.EncodeForUpload(entry, true)
	assert.ErrorIs(t, err, cse.ErrDecryptionFailedEntry)
}

func TestDelete(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")))
	require.NoError(t, h.service.Delete(ctx, models.KindPassword, "p1"))

	_, err := h.service.Password("p1")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = h.cache.Load(ctx, offline.Slot(models.KindPassword, "p1"))
	assert.ErrorIs(t, err, offline.ErrNotAvailable)
}

func TestLoadOffline(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, true)
	h.login(t)
	h.unlock(t)
	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")))

	// a second service over the same storage starts empty and rebuilds from
	// the offline snapshots
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	restarted := NewService(h.codec, h.cache, h.session, logger)
	require.NoError(t, restarted.LoadOffline(ctx))

	got, err := restarted.Password("p1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Password)
	assert.Equal(t, models.StateSettled, got.State)
}

func TestSetOfflineEnabled(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")))

	slots, err := h.store.Slots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots, "nothing is written while disabled")

	require.NoError(t, h.service.SetOfflineEnabled(ctx, true))
	slots, err = h.store.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"password/p1"}, slots)

	require.NoError(t, h.service.SetOfflineEnabled(ctx, false))
	slots, err = h.store.Slots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func embedOTP(t *testing.T, h *harness, id string, o otp.OTP) {
	t.Helper()
	require.NoError(t, h.service.SetPasswordOTP(context.Background(), id, o))
}

func TestPasswordOTPLifecycle(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")))

	_, ok, err := h.service.PasswordOTP("p1")
	require.NoError(t, err)
	assert.False(t, ok)

	o, err := otp.NewTOTP(otp.AlgorithmSHA1, "JBSWY3DPEHPK3PXP", 6, 30, "Example", "alice")
	require.NoError(t, err)
	embedOTP(t, h, "p1", o)

	got, ok, err := h.service.PasswordOTP("p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, o, got)

	code, err := h.service.GenerateOTPCode(ctx, "p1", time.Unix(1234567890, 0))
	require.NoError(t, err)
	assert.Equal(t, "742275", code)
}

func TestGenerateOTPCodeAdvancesHOTPCounter(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")))

	o, err := otp.NewHOTP(otp.AlgorithmSHA1, "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", 6, 0, "", "alice")
	require.NoError(t, err)
	embedOTP(t, h, "p1", o)

	now := time.Now()
	first, err := h.service.GenerateOTPCode(ctx, "p1", now)
	require.NoError(t, err)
	second, err := h.service.GenerateOTPCode(ctx, "p1", now)
	require.NoError(t, err)

	// RFC 4226 appendix D, counters 0 and 1
	assert.Equal(t, "755224", first)
	assert.Equal(t, "287082", second)

	stored, ok, err := h.service.PasswordOTP("p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), stored.Counter)
}

func TestGenerateOTPCodeWithoutConfiguration(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")))

	_, err := h.service.GenerateOTPCode(ctx, "p1", time.Now())
	assert.Error(t, err)
}

func TestRelationQueries(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)
	ks, err := h.session.KeyStore()
	require.NoError(t, err)

	parent := &models.Folder{ID: "f1", Label: "Work", Parent: models.BaseID, CSEType: "none", Revision: "rev-1"}
	child := &models.Folder{ID: "f2", Label: "Projects", Parent: "f1", CSEType: "none", Revision: "rev-1"}
	require.NoError(t, h.codec.Encode(parent, ks, true))
	require.NoError(t, h.codec.Encode(child, ks, true))
	require.NoError(t, h.service.ApplyIncoming(ctx, parent))
	require.NoError(t, h.service.ApplyIncoming(ctx, child))

	inFolder := h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")
	inFolder.Folder = "f1"
	elsewhere := h.wirePassword(t, "p2", "Bank", "secret", "rev-1")
	elsewhere.Folder = "f2"
	require.NoError(t, h.service.ApplyIncoming(ctx, inFolder))
	require.NoError(t, h.service.ApplyIncoming(ctx, elsewhere))

	children := h.service.ChildFolders("f1")
	require.Len(t, children, 1)
	assert.Equal(t, "Projects", children[0].Label)

	passwords := h.service.PasswordsInFolder("f1")
	require.Len(t, passwords, 1)
	assert.Equal(t, "Mail", passwords[0].Label)

	all := h.service.Passwords()
	assert.Len(t, all, 2)
}

func TestAccessorsReturnCopies(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.login(t)
	h.unlock(t)

	require.NoError(t, h.service.ApplyIncoming(ctx, h.wirePassword(t, "p1", "Mail", "hunter2", "rev-1")))

	got, err := h.service.Password("p1")
	require.NoError(t, err)
	got.Label = "mutated"

	fresh, err := h.service.Password("p1")
	require.NoError(t, err)
	assert.Equal(t, "Mail", fresh.Label)
}
