// ABOUTME: PoP signature verification for inbound app calls
// ABOUTME: Validates timestamp window, Ed25519 signature, and nonce replay status

package pop

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/2389/hearth-gateway/internal/codec"
	"github.com/2389/hearth-gateway/internal/nonce"
	"github.com/2389/hearth-gateway/internal/store"
)

// DefaultWindow is the maximum allowed clock skew between the signed
// timestamp and the gateway clock, inclusive on both ends.
const DefaultWindow = 90 * time.Second

// Verification errors. These are authentication failures and are
// surfaced to callers uniformly; the distinction exists for logs.
var (
	ErrBadTimestamp  = errors.New("timestamp outside allowed window")
	ErrUnknownApp    = errors.New("unknown or inactive app")
	ErrBadSignature  = errors.New("signature verification failed")
	ErrReplayedNonce = errors.New("nonce already used")
)

// Request carries the PoP fields of one inbound call.
type Request struct {
	Method        string
	PathWithQuery string // exactly as received, including the query string
	AppID         string
	Timestamp     string // unix seconds, decimal string
	Nonce         string
	Signature     string // base64 Ed25519 signature over the canonical string
	Body          []byte
}

// AppLookup resolves app ids to their registered verification keys.
type AppLookup interface {
	GetApp(ctx context.Context, id string) (*store.App, error)
}

// Verifier decides ACCEPT/REJECT for inbound PoP-signed requests.
type Verifier struct {
	apps   AppLookup
	nonces *nonce.Store
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewVerifier creates a Verifier with the given timestamp window.
// A zero window selects DefaultWindow. The nonce store TTL is the
// window plus one second: timestamps are integer seconds, so a
// timestamp stays acceptable until window+1s after it was issued, and
// the recorded nonce must outlive every request that could carry it.
func NewVerifier(apps AppLookup, window time.Duration) *Verifier {
	if window == 0 {
		window = DefaultWindow
	}
	return &Verifier{
		apps:   apps,
		nonces: nonce.NewStore(window+time.Second, nonce.DefaultMaxSize),
		window: window,
		now:    time.Now,
		logger: slog.Default().With("component", "pop"),
	}
}

// Verify checks a request's timestamp, signer identity, signature, and
// replay status, in that order. Returns the authenticated app on
// success. The nonce is recorded only after every other check passes so
// a rejected request does not burn its nonce.
func (v *Verifier) Verify(ctx context.Context, req *Request) (*store.App, error) {
	ts, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: non-integer timestamp", ErrBadTimestamp)
	}

	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	// Inclusive boundary: a timestamp exactly window seconds old is accepted
	if time.Duration(skew)*time.Second > v.window {
		return nil, fmt.Errorf("%w: skew %ds exceeds %s", ErrBadTimestamp, skew, v.window)
	}

	app, err := v.apps.GetApp(ctx, req.AppID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownApp
		}
		return nil, fmt.Errorf("looking up app: %w", err)
	}
	if app.Status != store.AppStatusActive {
		return nil, fmt.Errorf("%w: status %s", ErrUnknownApp, app.Status)
	}

	pubkeyBytes, err := codec.Base64Decode(app.PublicKey)
	if err != nil || len(pubkeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: malformed public key", ErrBadSignature)
	}
	sigBytes, err := codec.Base64Decode(req.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed signature encoding", ErrBadSignature)
	}

	message := CanonicalStringForBody(req.Method, req.PathWithQuery, req.AppID, req.Timestamp, req.Nonce, req.Body)
	if !ed25519.Verify(ed25519.PublicKey(pubkeyBytes), []byte(message), sigBytes) {
		return nil, ErrBadSignature
	}

	// Atomic check-and-record closes the replay gap the timestamp
	// window alone cannot: two requests within the same second are
	// otherwise indistinguishable.
	if v.nonces.Remember(req.AppID, req.Nonce) {
		v.logger.Warn("replayed nonce rejected", "app_id", req.AppID)
		return nil, ErrReplayedNonce
	}

	return app, nil
}

// Sign produces the PoP signature for a request. It is the client half
// of the protocol, used by the admin CLI and by tests.
func Sign(priv ed25519.PrivateKey, method, pathWithQuery, appID, timestamp, nonce string, body []byte) string {
	message := CanonicalStringForBody(method, pathWithQuery, appID, timestamp, nonce, body)
	return codec.Base64Encode(ed25519.Sign(priv, []byte(message)))
}

// Close releases the verifier's nonce store.
func (v *Verifier) Close() {
	v.nonces.Close()
}
