// ABOUTME: Action router dispatching verified, authorized calls to provider plugins
// ABOUTME: Enforcement runs before the credential is decrypted; handlers get a bounded timeout

package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/hearth-gateway/internal/store"
	"github.com/2389/hearth-gateway/internal/vault"
)

// Dispatch errors, ordered by pipeline stage.
var (
	ErrUnknownResource       = errors.New("unknown resource")
	ErrUnsupportedAction     = errors.New("unsupported action")
	ErrForbidden             = errors.New("app lacks permission for this action")
	ErrCredentialUnavailable = errors.New("resource credential unavailable")
)

// DefaultTimeout bounds a single provider handler invocation.
const DefaultTimeout = 30 * time.Second

// Authorizer answers whether an app may invoke an action on a resource.
type Authorizer interface {
	IsAuthorized(ctx context.Context, appID, resourceID, action string) (bool, error)
}

// SecretSource resolves the stored (encrypted) credential for a dispatch.
type SecretSource interface {
	ResolveResourceSecret(ctx context.Context, resourceID, appID string) (*store.ResourceSecret, error)
}

// Decrypter opens vaulted credential bytes. Satisfied by *vault.Vault.
type Decrypter interface {
	Decrypt(ciphertext, iv []byte) ([]byte, error)
}

// Router resolves a verified request to a plugin action and invokes it.
type Router struct {
	registry *Registry
	ledger   Authorizer
	secrets  SecretSource
	vault    Decrypter
	timeout  time.Duration
	logger   *slog.Logger
}

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Registry *Registry
	Ledger   Authorizer
	Secrets  SecretSource
	Vault    Decrypter
	Timeout  time.Duration
	Logger   *slog.Logger
}

// NewRouter creates a Router with the given configuration.
func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		secrets:  cfg.Secrets,
		vault:    cfg.Vault,
		timeout:  timeout,
		logger:   logger.With("component", "router"),
	}
}

// Dispatch runs the full pipeline for one verified call: resolve the
// plugin, check the action, authorize the app, enforce payload
// constraints, decrypt the credential, and invoke the handler. The
// credential plaintext exists only for the duration of the handler call.
func (r *Router) Dispatch(ctx context.Context, appID, resourceID, action string, payload json.RawMessage) (*ProviderResult, error) {
	plugin := r.registry.Get(resourceID)
	if plugin == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resourceID)
	}

	if !plugin.SupportsAction(action) {
		return nil, fmt.Errorf("%w: %s does not support %q", ErrUnsupportedAction, resourceID, action)
	}

	authorized, err := r.ledger.IsAuthorized(ctx, appID, resourceID, action)
	if err != nil {
		return nil, fmt.Errorf("checking authorization: %w", err)
	}
	if !authorized {
		return nil, fmt.Errorf("%w: %s on %s", ErrForbidden, action, resourceID)
	}

	// Constraints are checked before any credential is touched
	if err := plugin.Enforcement.Check(payload); err != nil {
		return nil, err
	}

	credential, err := r.decryptCredential(ctx, resourceID, appID)
	if err != nil {
		return nil, err
	}

	handlerCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Info("dispatching action",
		"app_id", appID,
		"resource_id", resourceID,
		"action", action,
	)

	result, err := plugin.Handler(handlerCtx, credential, action, payload)
	if err != nil {
		var provErr *ProviderError
		if !errors.As(err, &provErr) {
			provErr = &ProviderError{Message: err.Error()}
		}
		if provErr.Provider == "" {
			provErr.Provider = resourceID
		}
		r.logger.Warn("provider call failed",
			"app_id", appID,
			"resource_id", resourceID,
			"action", action,
			"provider_status", provErr.Status,
		)
		return nil, provErr
	}

	r.logger.Info("provider responded",
		"app_id", appID,
		"resource_id", resourceID,
		"action", action,
		"provider_status", result.Status,
	)
	return result, nil
}

// decryptCredential resolves and opens the resource credential.
// All failure modes collapse into ErrCredentialUnavailable for callers;
// a master key mismatch stays distinguishable for diagnostics.
func (r *Router) decryptCredential(ctx context.Context, resourceID, appID string) (string, error) {
	secret, err := r.secrets.ResolveResourceSecret(ctx, resourceID, appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: no secret seeded for %s", ErrCredentialUnavailable, resourceID)
		}
		return "", fmt.Errorf("resolving secret: %w", err)
	}
	if secret.Status != store.SecretStatusActive {
		return "", fmt.Errorf("%w: secret for %s is %s", ErrCredentialUnavailable, resourceID, secret.Status)
	}

	plaintext, err := r.vault.Decrypt(secret.EncryptedKey, secret.IV)
	if err != nil {
		if errors.Is(err, vault.ErrKeyMismatch) {
			r.logger.Error("vault master key mismatch; secret must be re-seeded",
				"resource_id", resourceID,
				"secret_id", secret.ID,
			)
		}
		return "", fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}

	return string(plaintext), nil
}
