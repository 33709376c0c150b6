// ABOUTME: Tests for the PoP verifier.
// ABOUTME: Covers window boundaries, signature flips, replay, and app status checks.

package pop

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hearth-gateway/internal/codec"
	"github.com/2389/hearth-gateway/internal/store"
)

// fakeApps is an in-memory AppLookup.
type fakeApps map[string]*store.App

func (f fakeApps) GetApp(_ context.Context, id string) (*store.App, error) {
	app, ok := f[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return app, nil
}

// testIdentity bundles a registered app with its signing key.
type testIdentity struct {
	app  *store.App
	priv ed25519.PrivateKey
}

func newTestIdentity(t *testing.T, id string) *testIdentity {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &testIdentity{
		app: &store.App{
			ID:        id,
			Name:      "test-" + id,
			Status:    store.AppStatusActive,
			PublicKey: codec.Base64Encode(pub),
		},
		priv: priv,
	}
}

// signedRequest builds a valid Request signed at the given time.
func (ti *testIdentity) signedRequest(at time.Time, nonce string, body []byte) *Request {
	ts := strconv.FormatInt(at.Unix(), 10)
	return &Request{
		Method:        "POST",
		PathWithQuery: "/v1/llm/groq/chat",
		AppID:         ti.app.ID,
		Timestamp:     ts,
		Nonce:         nonce,
		Signature:     Sign(ti.priv, "POST", "/v1/llm/groq/chat", ti.app.ID, ts, nonce, body),
		Body:          body,
	}
}

func newTestVerifier(ti *testIdentity, now time.Time) *Verifier {
	v := NewVerifier(fakeApps{ti.app.ID: ti.app}, 90*time.Second)
	v.now = func() time.Time { return now }
	return v
}

func TestVerify_Accepts(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ti := newTestIdentity(t, "app-1")
	v := newTestVerifier(ti, now)
	defer v.Close()

	app, err := v.Verify(context.Background(), ti.signedRequest(now, "nonce-1", []byte(`{"model":"x"}`)))
	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID)
}

func TestVerify_WindowBoundary(t *testing.T) {
	now := time.Unix(1700000000, 0)

	cases := []struct {
		name   string
		age    time.Duration
		wantOK bool
	}{
		{"89s old accepted", 89 * time.Second, true},
		{"exactly 90s accepted (inclusive)", 90 * time.Second, true},
		{"91s old rejected", 91 * time.Second, false},
		{"89s in future accepted", -89 * time.Second, true},
		{"91s in future rejected", -91 * time.Second, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ti := newTestIdentity(t, "app-1")
			v := newTestVerifier(ti, now)
			defer v.Close()

			_, err := v.Verify(context.Background(), ti.signedRequest(now.Add(-tc.age), "n", nil))
			if tc.wantOK {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrBadTimestamp)
			}
		})
	}
}

func TestVerify_NonIntegerTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ti := newTestIdentity(t, "app-1")
	v := newTestVerifier(ti, now)
	defer v.Close()

	req := ti.signedRequest(now, "n", nil)
	req.Timestamp = "17e9"
	_, err := v.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrBadTimestamp)
}

func TestVerify_UnknownApp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ti := newTestIdentity(t, "app-1")
	v := newTestVerifier(ti, now)
	defer v.Close()

	req := ti.signedRequest(now, "n", nil)
	req.AppID = "ghost"
	_, err := v.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnknownApp)
}

func TestVerify_RevokedApp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ti := newTestIdentity(t, "app-1")
	ti.app.Status = store.AppStatusRevoked
	v := newTestVerifier(ti, now)
	defer v.Close()

	_, err := v.Verify(context.Background(), ti.signedRequest(now, "n", nil))
	assert.ErrorIs(t, err, ErrUnknownApp)
}

func TestVerify_SignatureFlips(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"model":"x"}`)

	t.Run("flipped signature byte", func(t *testing.T) {
		ti := newTestIdentity(t, "app-1")
		v := newTestVerifier(ti, now)
		defer v.Close()

		req := ti.signedRequest(now, "n", body)
		sig, err := codec.Base64Decode(req.Signature)
		require.NoError(t, err)
		sig[0] ^= 0x01
		req.Signature = codec.Base64Encode(sig)

		_, err = v.Verify(context.Background(), req)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		ti := newTestIdentity(t, "app-1")
		v := newTestVerifier(ti, now)
		defer v.Close()

		req := ti.signedRequest(now, "n", body)
		req.Body = []byte(`{"model":"y"}`)

		_, err := v.Verify(context.Background(), req)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("tampered path", func(t *testing.T) {
		ti := newTestIdentity(t, "app-1")
		v := newTestVerifier(ti, now)
		defer v.Close()

		req := ti.signedRequest(now, "n", body)
		req.PathWithQuery = "/v1/mail/resend/send"

		_, err := v.Verify(context.Background(), req)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("flipped public key byte", func(t *testing.T) {
		ti := newTestIdentity(t, "app-1")
		pub, err := codec.Base64Decode(ti.app.PublicKey)
		require.NoError(t, err)
		pub[0] ^= 0x01
		ti.app.PublicKey = codec.Base64Encode(pub)
		v := newTestVerifier(ti, now)
		defer v.Close()

		_, err = v.Verify(context.Background(), ti.signedRequest(now, "n", body))
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("malformed signature encoding", func(t *testing.T) {
		ti := newTestIdentity(t, "app-1")
		v := newTestVerifier(ti, now)
		defer v.Close()

		req := ti.signedRequest(now, "n", body)
		req.Signature = "!!not-base64!!"

		_, err := v.Verify(context.Background(), req)
		assert.ErrorIs(t, err, ErrBadSignature)
	})
}

func TestVerify_ReplayedNonce(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ti := newTestIdentity(t, "app-1")
	v := newTestVerifier(ti, now)
	defer v.Close()

	req := ti.signedRequest(now, "nonce-once", nil)
	_, err := v.Verify(context.Background(), req)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrReplayedNonce)
}

func TestVerify_ReplayRejectedThroughWholeWindow(t *testing.T) {
	// Timestamps are integer seconds, so a timestamp one window old is
	// still acceptable. The recorded nonce must survive at least that
	// long; a TTL of exactly the window would reopen a replay slot at
	// the tail of the window.
	now := time.Unix(1700000000, 0)
	ti := newTestIdentity(t, "app-1")
	v := NewVerifier(fakeApps{ti.app.ID: ti.app}, time.Second)
	v.now = func() time.Time { return now }
	defer v.Close()

	req := ti.signedRequest(now.Add(-time.Second), "nonce-tail", nil)
	_, err := v.Verify(context.Background(), req)
	require.NoError(t, err)

	// Past the window length in real time, but the timestamp skew is
	// still within the (inclusive) window
	time.Sleep(1050 * time.Millisecond)

	_, err = v.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrReplayedNonce)
}

func TestVerify_RejectedRequestDoesNotBurnNonce(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ti := newTestIdentity(t, "app-1")
	v := newTestVerifier(ti, now)
	defer v.Close()

	// A bad signature with nonce N must not consume N
	bad := ti.signedRequest(now, "n", nil)
	bad.Body = []byte("tampered")
	_, err := v.Verify(context.Background(), bad)
	require.ErrorIs(t, err, ErrBadSignature)

	_, err = v.Verify(context.Background(), ti.signedRequest(now, "n", nil))
	assert.NoError(t, err, "nonce from a rejected request is still usable")
}

func TestVerify_DistinctNoncesSameSecond(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ti := newTestIdentity(t, "app-1")
	v := newTestVerifier(ti, now)
	defer v.Close()

	for i := 0; i < 5; i++ {
		_, err := v.Verify(context.Background(), ti.signedRequest(now, fmt.Sprintf("n-%d", i), nil))
		require.NoError(t, err)
	}
}
