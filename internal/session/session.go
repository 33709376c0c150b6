// ABOUTME: Install session state machine for the app registration handshake
// ABOUTME: PENDING sessions expire lazily at read time; terminal states are absorbing

package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/2389/hearth-gateway/internal/codec"
	"github.com/2389/hearth-gateway/internal/store"
)

// DefaultTTL is how long a registration handshake stays approvable.
const DefaultTTL = 15 * time.Minute

// DeniedReason is the fixed reason reported for denied registrations.
const DeniedReason = "registration denied by administrator"

// tokenBytes is the entropy of a session token (hex-encoded on the wire).
const tokenBytes = 24

// Session-flow errors.
var (
	ErrSessionNotFound   = errors.New("install session not found")
	ErrInvalidTransition = errors.New("session is in a terminal status")
	ErrBadPublicKey      = errors.New("invalid app public key")
)

// SessionStore is the persistence surface the handshake needs: the
// sessions themselves plus app/permission creation at approval time.
type SessionStore interface {
	CreateInstallSession(ctx context.Context, session *store.InstallSession) error
	GetInstallSession(ctx context.Context, token string) (*store.InstallSession, error)
	UpdateInstallSession(ctx context.Context, session *store.InstallSession) error
	ListInstallSessions(ctx context.Context, status store.SessionStatus) ([]*store.InstallSession, error)
	CreateApp(ctx context.Context, app *store.App) error
	CreatePermission(ctx context.Context, perm *store.Permission) error
	DeleteAppCascade(ctx context.Context, id string) error
}

// Approval is the payload returned to an approved app: its identity
// and where to direct its first authenticated call.
type Approval struct {
	AppID   string
	BaseURL string
}

// Service drives the install session lifecycle.
type Service struct {
	store   SessionStore
	ttl     time.Duration
	baseURL string
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a session service. baseURL is the gateway's public
// base URL handed to approved apps. A zero ttl selects DefaultTTL.
func NewService(s SessionStore, baseURL string, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:   s,
		ttl:     ttl,
		baseURL: baseURL,
		now:     time.Now,
		logger:  slog.Default().With("component", "session"),
	}
}

// EffectiveStatus derives the status observers must act on: a PENDING
// session past its expiry reads as EXPIRED even though the stored row
// may still say PENDING until the next write.
func EffectiveStatus(session *store.InstallSession, now time.Time) store.SessionStatus {
	if session.Status == store.SessionStatusPending && !session.ExpiresAt.After(now) {
		return store.SessionStatusExpired
	}
	return session.Status
}

// Begin starts a registration handshake for a prospective app and
// returns the created PENDING session with its opaque token.
func (s *Service) Begin(ctx context.Context, name, publicKey string, scopes []store.ScopeRequest) (*store.InstallSession, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("app name is required")
	}
	normalizedKey, err := NormalizePublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	now := s.now().UTC()
	session := &store.InstallSession{
		Token:           token,
		Status:          store.SessionStatusPending,
		RequestedName:   strings.TrimSpace(name),
		PublicKey:       normalizedKey,
		RequestedScopes: scopes,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}
	if err := s.store.CreateInstallSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating install session: %w", err)
	}

	s.logger.Info("registration started", "requested_name", session.RequestedName)
	return session, nil
}

// Get returns a session by token with its effective status applied.
// Returns ErrSessionNotFound for unknown tokens.
func (s *Service) Get(ctx context.Context, token string) (*store.InstallSession, error) {
	session, err := s.store.GetInstallSession(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading install session: %w", err)
	}
	session.Status = EffectiveStatus(session, s.now())
	return session, nil
}

// Approve transitions a PENDING session to APPROVED, creating the App
// and its initial Permissions from the requested scopes. Approving a
// terminal (or lazily expired) session fails with ErrInvalidTransition.
func (s *Service) Approve(ctx context.Context, token string) (*Approval, error) {
	session, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Status != store.SessionStatusPending {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, session.Status)
	}

	app := &store.App{
		Name:      session.RequestedName,
		Status:    store.AppStatusActive,
		PublicKey: session.PublicKey,
	}
	if err := s.store.CreateApp(ctx, app); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	now := s.now().UTC()
	for _, scope := range session.RequestedScopes {
		perm := &store.Permission{
			AppID:      app.ID,
			ResourceID: scope.ResourceID,
			Actions:    scope.Actions,
		}
		if scope.TTLSeconds > 0 {
			expiry := now.Add(time.Duration(scope.TTLSeconds) * time.Second)
			perm.ExpiresAt = &expiry
		}
		if err := s.store.CreatePermission(ctx, perm); err != nil {
			return nil, fmt.Errorf("creating permission for %s: %w", scope.ResourceID, err)
		}
	}

	session.Status = store.SessionStatusApproved
	session.AppID = &app.ID
	if err := s.store.UpdateInstallSession(ctx, session); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// A concurrent decision landed first; undo the app we made
			if delErr := s.store.DeleteAppCascade(ctx, app.ID); delErr != nil {
				s.logger.Error("removing app after lost approval race",
					"app_id", app.ID, "error", delErr)
			}
			return nil, fmt.Errorf("%w: already decided", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("updating install session: %w", err)
	}

	s.logger.Info("registration approved", "app_id", app.ID, "name", app.Name)
	return &Approval{AppID: app.ID, BaseURL: s.baseURL}, nil
}

// BaseURL returns the gateway base URL handed to approved apps.
func (s *Service) BaseURL() string {
	return s.baseURL
}

// Deny transitions a PENDING session to DENIED.
// Denying a terminal (or lazily expired) session fails with ErrInvalidTransition.
func (s *Service) Deny(ctx context.Context, token string) error {
	session, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if session.Status != store.SessionStatusPending {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, session.Status)
	}

	session.Status = store.SessionStatusDenied
	if err := s.store.UpdateInstallSession(ctx, session); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("%w: already decided", ErrInvalidTransition)
		}
		return fmt.Errorf("updating install session: %w", err)
	}

	s.logger.Info("registration denied", "requested_name", session.RequestedName)
	return nil
}

// ListPending returns sessions whose effective status is still PENDING.
func (s *Service) ListPending(ctx context.Context) ([]*store.InstallSession, error) {
	sessions, err := s.store.ListInstallSessions(ctx, store.SessionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing install sessions: %w", err)
	}

	now := s.now()
	pending := make([]*store.InstallSession, 0, len(sessions))
	for _, session := range sessions {
		if EffectiveStatus(session, now) == store.SessionStatusPending {
			pending = append(pending, session)
		}
	}
	return pending, nil
}

// NormalizePublicKey accepts an app verification key either as base64
// raw Ed25519 bytes or in OpenSSH "ssh-ed25519 AAAA..." form, and
// returns the canonical base64 raw encoding stored on the App.
func NormalizePublicKey(publicKey string) (string, error) {
	trimmed := strings.TrimSpace(publicKey)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrBadPublicKey)
	}

	if strings.HasPrefix(trimmed, "ssh-ed25519 ") {
		parsed, _, _, _, err := ssh.ParseAuthorizedKey([]byte(trimmed))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadPublicKey, err)
		}
		cryptoKey, ok := parsed.(ssh.CryptoPublicKey)
		if !ok {
			return "", fmt.Errorf("%w: unsupported key type %s", ErrBadPublicKey, parsed.Type())
		}
		edKey, ok := cryptoKey.CryptoPublicKey().(ed25519.PublicKey)
		if !ok {
			return "", fmt.Errorf("%w: not an ed25519 key", ErrBadPublicKey)
		}
		return codec.Base64Encode(edKey), nil
	}

	raw, err := codec.Base64Decode(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPublicKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: got %d bytes, want %d", ErrBadPublicKey, len(raw), ed25519.PublicKeySize)
	}
	return codec.Base64Encode(raw), nil
}

// newToken generates an unguessable session token.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
