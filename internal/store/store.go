// ABOUTME: Store interface and data types for hearth-gateway persistence
// ABOUTME: Defines App, Permission, ResourceSecret, InstallSession and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateApp is returned when trying to create an app that already exists
var ErrDuplicateApp = errors.New("app already exists")

// ErrDuplicateSecret is returned when a resource secret already exists for the scope
var ErrDuplicateSecret = errors.New("resource secret already exists")

// ErrConflict is returned when a conditional write loses to a
// concurrent update, e.g. deciding an install session that another
// call already moved to a terminal status
var ErrConflict = errors.New("conflicting concurrent update")

// AppStatus constants for app lifecycle states
type AppStatus string

const (
	AppStatusActive  AppStatus = "ACTIVE"
	AppStatusRevoked AppStatus = "REVOKED"
)

// App represents a registered calling client. The public key verifies
// PoP signatures on every inbound call from the app.
type App struct {
	ID        string
	Name      string
	Status    AppStatus
	PublicKey string // base64-encoded raw Ed25519 verification key
	CreatedAt time.Time
}

// Permission is a scope grant: it lets an app invoke actions on one
// resource, optionally restricted to an action allow-list and an expiry.
// A nil ExpiresAt never expires. An empty Actions list allows every
// action the plugin advertises.
type Permission struct {
	ID         string
	AppID      string
	ResourceID string // "type:provider", e.g. "llm:groq"
	Actions    []string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// SecretStatus constants for resource secret states
type SecretStatus string

const (
	SecretStatusActive   SecretStatus = "ACTIVE"
	SecretStatusDisabled SecretStatus = "DISABLED"
)

// ResourceSecret is the vaulted credential for a resource. EncryptedKey
// and IV are produced by the vault; the plaintext never touches this
// package. If AppID is nil the secret is the provider-wide default;
// if set, it is an app-specific override resolved first at dispatch.
type ResourceSecret struct {
	ID           string
	ResourceID   string
	AppID        *string // nil = provider-wide default
	EncryptedKey []byte
	IV           []byte
	Name         string
	Status       SecretStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionStatus constants for the install handshake state machine
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "PENDING"
	SessionStatusApproved SessionStatus = "APPROVED"
	SessionStatusDenied   SessionStatus = "DENIED"
	SessionStatusExpired  SessionStatus = "EXPIRED"
)

// ScopeRequest is one resource scope a prospective app asks for during
// registration. TTLSeconds of zero requests a non-expiring permission.
type ScopeRequest struct {
	ResourceID string   `json:"resource_id"`
	Actions    []string `json:"actions,omitempty"`
	TTLSeconds int64    `json:"ttl_seconds,omitempty"`
}

// InstallSession is an ephemeral registration handshake. The requested
// name, public key, and scopes are held on the session until an
// administrator approves it, at which point the App and its initial
// Permissions are created and AppID is set.
type InstallSession struct {
	Token           string
	AppID           *string // nil until approved
	Status          SessionStatus
	RequestedName   string
	PublicKey       string
	RequestedScopes []ScopeRequest
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Store defines the persistence operations consumed by the gateway core.
type Store interface {
	// Apps
	CreateApp(ctx context.Context, app *App) error
	GetApp(ctx context.Context, id string) (*App, error)
	ListApps(ctx context.Context, status AppStatus) ([]*App, error)
	UpdateAppStatus(ctx context.Context, id string, status AppStatus) error
	// DeleteAppCascade removes the app together with its permissions
	// and app-scoped secrets in one transaction.
	DeleteAppCascade(ctx context.Context, id string) error

	// Permissions
	CreatePermission(ctx context.Context, perm *Permission) error
	GetPermission(ctx context.Context, id string) (*Permission, error)
	ListPermissionsByApp(ctx context.Context, appID string) ([]*Permission, error)
	UpdatePermissionExpiry(ctx context.Context, id string, expiresAt *time.Time) error
	DeletePermission(ctx context.Context, id string) error

	// Resource secrets
	CreateResourceSecret(ctx context.Context, secret *ResourceSecret) error
	GetResourceSecret(ctx context.Context, resourceID string, appID *string) (*ResourceSecret, error)
	// ResolveResourceSecret returns the app-scoped secret for the
	// resource if one exists, falling back to the provider-wide default.
	ResolveResourceSecret(ctx context.Context, resourceID, appID string) (*ResourceSecret, error)
	UpdateResourceSecret(ctx context.Context, secret *ResourceSecret) error
	SetResourceSecretStatus(ctx context.Context, id string, status SecretStatus) error
	ListResourceSecrets(ctx context.Context) ([]*ResourceSecret, error)

	// Install sessions
	CreateInstallSession(ctx context.Context, session *InstallSession) error
	GetInstallSession(ctx context.Context, token string) (*InstallSession, error)
	UpdateInstallSession(ctx context.Context, session *InstallSession) error
	ListInstallSessions(ctx context.Context, status SessionStatus) ([]*InstallSession, error)

	// Close releases any resources held by the store
	Close() error
}
