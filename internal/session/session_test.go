// ABOUTME: Tests for the install session state machine.
// ABOUTME: Covers lazy expiry, terminal transitions, approval side effects, and key parsing.

package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/2389/hearth-gateway/internal/codec"
	"github.com/2389/hearth-gateway/internal/store"
)

// fakeSessionStore is an in-memory SessionStore.
type fakeSessionStore struct {
	sessions map[string]*store.InstallSession
	apps     []*store.App
	perms    []*store.Permission
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*store.InstallSession)}
}

func (f *fakeSessionStore) CreateInstallSession(_ context.Context, s *store.InstallSession) error {
	copied := *s
	f.sessions[s.Token] = &copied
	return nil
}

func (f *fakeSessionStore) GetInstallSession(_ context.Context, token string) (*store.InstallSession, error) {
	s, ok := f.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) UpdateInstallSession(_ context.Context, s *store.InstallSession) error {
	existing, ok := f.sessions[s.Token]
	if !ok {
		return store.ErrNotFound
	}
	// Same compare-and-swap semantics as the SQLite store: only a
	// stored PENDING session accepts a decision
	if existing.Status != store.SessionStatusPending {
		return store.ErrConflict
	}
	copied := *s
	f.sessions[s.Token] = &copied
	return nil
}

func (f *fakeSessionStore) ListInstallSessions(_ context.Context, status store.SessionStatus) ([]*store.InstallSession, error) {
	var out []*store.InstallSession
	for _, s := range f.sessions {
		if status == "" || s.Status == status {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) CreateApp(_ context.Context, app *store.App) error {
	if app.ID == "" {
		app.ID = "app-" + app.Name
	}
	f.apps = append(f.apps, app)
	return nil
}

func (f *fakeSessionStore) CreatePermission(_ context.Context, perm *store.Permission) error {
	f.perms = append(f.perms, perm)
	return nil
}

func (f *fakeSessionStore) DeleteAppCascade(_ context.Context, id string) error {
	apps := f.apps[:0]
	for _, a := range f.apps {
		if a.ID != id {
			apps = append(apps, a)
		}
	}
	f.apps = apps

	perms := f.perms[:0]
	for _, p := range f.perms {
		if p.AppID != id {
			perms = append(perms, p)
		}
	}
	f.perms = perms
	return nil
}

func testPublicKey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return codec.Base64Encode(pub)
}

func newTestService(f *fakeSessionStore, now time.Time) *Service {
	s := NewService(f, "https://gateway.example.com", 15*time.Minute)
	s.now = func() time.Time { return now }
	return s
}

func TestBegin_CreatesPendingSession(t *testing.T) {
	now := time.Unix(1700000000, 0)
	f := newFakeSessionStore()
	s := newTestService(f, now)

	session, err := s.Begin(context.Background(), "research-bot", testPublicKey(t), []store.ScopeRequest{
		{ResourceID: "llm:groq", Actions: []string{"chat.completions"}},
	})
	require.NoError(t, err)
	assert.Equal(t, store.SessionStatusPending, session.Status)
	assert.Len(t, session.Token, tokenBytes*2, "token is hex-encoded")
	assert.True(t, session.ExpiresAt.Equal(now.UTC().Add(15*time.Minute)))
	assert.Nil(t, session.AppID)
}

func TestBegin_UniqueTokens(t *testing.T) {
	f := newFakeSessionStore()
	s := newTestService(f, time.Unix(1700000000, 0))

	key := testPublicKey(t)
	first, err := s.Begin(context.Background(), "a", key, nil)
	require.NoError(t, err)
	second, err := s.Begin(context.Background(), "b", key, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestBegin_RejectsBadInputs(t *testing.T) {
	f := newFakeSessionStore()
	s := newTestService(f, time.Unix(1700000000, 0))

	_, err := s.Begin(context.Background(), "  ", testPublicKey(t), nil)
	assert.Error(t, err)

	_, err = s.Begin(context.Background(), "bot", "not-a-key", nil)
	assert.ErrorIs(t, err, ErrBadPublicKey)
}

func TestGet_NotFound(t *testing.T) {
	f := newFakeSessionStore()
	s := newTestService(f, time.Unix(1700000000, 0))

	_, err := s.Get(context.Background(), "unknown-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGet_LazyExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	f := newFakeSessionStore()
	s := newTestService(f, now)

	session, err := s.Begin(context.Background(), "bot", testPublicKey(t), nil)
	require.NoError(t, err)

	// Move the clock past the session expiry without any write
	s.now = func() time.Time { return now.Add(16 * time.Minute) }

	got, err := s.Get(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, store.SessionStatusExpired, got.Status)

	// The stored row still says PENDING; only observers see EXPIRED
	assert.Equal(t, store.SessionStatusPending, f.sessions[session.Token].Status)
}

func TestApprove_CreatesAppAndPermissions(t *testing.T) {
	now := time.Unix(1700000000, 0)
	f := newFakeSessionStore()
	s := newTestService(f, now)

	session, err := s.Begin(context.Background(), "research-bot", testPublicKey(t), []store.ScopeRequest{
		{ResourceID: "llm:groq", Actions: []string{"chat.completions"}, TTLSeconds: 3600},
		{ResourceID: "mail:resend"},
	})
	require.NoError(t, err)

	approval, err := s.Approve(context.Background(), session.Token)
	require.NoError(t, err)
	assert.NotEmpty(t, approval.AppID)
	assert.Equal(t, "https://gateway.example.com", approval.BaseURL)

	require.Len(t, f.apps, 1)
	assert.Equal(t, "research-bot", f.apps[0].Name)
	assert.Equal(t, store.AppStatusActive, f.apps[0].Status)

	require.Len(t, f.perms, 2)
	require.NotNil(t, f.perms[0].ExpiresAt)
	assert.True(t, f.perms[0].ExpiresAt.Equal(now.UTC().Add(time.Hour)))
	assert.Nil(t, f.perms[1].ExpiresAt, "zero TTL requests a non-expiring permission")

	got, err := s.Get(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, store.SessionStatusApproved, got.Status)
	require.NotNil(t, got.AppID)
	assert.Equal(t, approval.AppID, *got.AppID)
}

func TestApprove_TerminalStates(t *testing.T) {
	now := time.Unix(1700000000, 0)

	t.Run("approved session cannot be re-approved", func(t *testing.T) {
		f := newFakeSessionStore()
		s := newTestService(f, now)
		session, err := s.Begin(context.Background(), "bot", testPublicKey(t), nil)
		require.NoError(t, err)

		_, err = s.Approve(context.Background(), session.Token)
		require.NoError(t, err)
		_, err = s.Approve(context.Background(), session.Token)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("denied session cannot be approved", func(t *testing.T) {
		f := newFakeSessionStore()
		s := newTestService(f, now)
		session, err := s.Begin(context.Background(), "bot", testPublicKey(t), nil)
		require.NoError(t, err)

		require.NoError(t, s.Deny(context.Background(), session.Token))
		_, err = s.Approve(context.Background(), session.Token)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("lazily expired session cannot be approved", func(t *testing.T) {
		f := newFakeSessionStore()
		s := newTestService(f, now)
		session, err := s.Begin(context.Background(), "bot", testPublicKey(t), nil)
		require.NoError(t, err)

		s.now = func() time.Time { return now.Add(time.Hour) }
		_, err = s.Approve(context.Background(), session.Token)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Empty(t, f.apps, "no app may be created for an expired handshake")
	})
}

// staleReadStore serves PENDING reads regardless of the stored status,
// mimicking a caller whose status check raced ahead of another
// operator's decision.
type staleReadStore struct {
	*fakeSessionStore
}

func (s *staleReadStore) GetInstallSession(ctx context.Context, token string) (*store.InstallSession, error) {
	sess, err := s.fakeSessionStore.GetInstallSession(ctx, token)
	if err != nil {
		return nil, err
	}
	sess.Status = store.SessionStatusPending
	return sess, nil
}

func TestApprove_LostRaceLeavesNoApp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	f := newFakeSessionStore()
	s := newTestService(f, now)
	session, err := s.Begin(context.Background(), "bot", testPublicKey(t), nil)
	require.NoError(t, err)
	require.NoError(t, s.Deny(context.Background(), session.Token))

	// Second caller saw PENDING before the denial landed; the
	// conditional write must reject it and undo the app it created
	racer := NewService(&staleReadStore{f}, "https://gateway.example.com", 15*time.Minute)
	racer.now = func() time.Time { return now }

	_, err = racer.Approve(context.Background(), session.Token)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.apps, "losing approval must not leave an app behind")
	assert.Empty(t, f.perms)

	got, err := f.GetInstallSession(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, store.SessionStatusDenied, got.Status)
}

func TestDeny(t *testing.T) {
	now := time.Unix(1700000000, 0)
	f := newFakeSessionStore()
	s := newTestService(f, now)

	session, err := s.Begin(context.Background(), "bot", testPublicKey(t), nil)
	require.NoError(t, err)

	require.NoError(t, s.Deny(context.Background(), session.Token))

	got, err := s.Get(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, store.SessionStatusDenied, got.Status)

	// Terminal: cannot deny twice
	assert.ErrorIs(t, s.Deny(context.Background(), session.Token), ErrInvalidTransition)
}

func TestListPending_FiltersLazilyExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	f := newFakeSessionStore()
	s := newTestService(f, now)

	fresh, err := s.Begin(context.Background(), "fresh", testPublicKey(t), nil)
	require.NoError(t, err)
	stale, err := s.Begin(context.Background(), "stale", testPublicKey(t), nil)
	require.NoError(t, err)
	f.sessions[stale.Token].ExpiresAt = now.Add(-time.Minute)

	pending, err := s.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.Token, pending[0].Token)
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Unix(1700000000, 0)

	pending := &store.InstallSession{Status: store.SessionStatusPending, ExpiresAt: now.Add(time.Minute)}
	assert.Equal(t, store.SessionStatusPending, EffectiveStatus(pending, now))

	// Inclusive: a session expiring exactly now reads as expired
	atBoundary := &store.InstallSession{Status: store.SessionStatusPending, ExpiresAt: now}
	assert.Equal(t, store.SessionStatusExpired, EffectiveStatus(atBoundary, now))

	// Terminal statuses are untouched regardless of expiry
	approved := &store.InstallSession{Status: store.SessionStatusApproved, ExpiresAt: now.Add(-time.Hour)}
	assert.Equal(t, store.SessionStatusApproved, EffectiveStatus(approved, now))
}

func TestNormalizePublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	rawB64 := codec.Base64Encode(pub)

	t.Run("raw base64", func(t *testing.T) {
		got, err := NormalizePublicKey(rawB64)
		require.NoError(t, err)
		assert.Equal(t, rawB64, got)
	})

	t.Run("openssh format", func(t *testing.T) {
		sshKey, err := ssh.NewPublicKey(pub)
		require.NoError(t, err)
		authorized := string(ssh.MarshalAuthorizedKey(sshKey))

		got, err := NormalizePublicKey(authorized)
		require.NoError(t, err)
		assert.Equal(t, rawB64, got, "openssh form reduces to the same raw key")
	})

	t.Run("rejects wrong size", func(t *testing.T) {
		_, err := NormalizePublicKey(codec.Base64Encode([]byte("short")))
		assert.ErrorIs(t, err, ErrBadPublicKey)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := NormalizePublicKey("%%%")
		assert.ErrorIs(t, err, ErrBadPublicKey)
	})
}
