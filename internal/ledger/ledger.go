// ABOUTME: Permission ledger computing per-app scope authorization and expiry
// ABOUTME: Includes the administrative sweep that cascade-deletes fully expired apps

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/hearth-gateway/internal/store"
)

// PermissionStore is the slice of the record store the ledger reads,
// plus the cascade delete used by the sweep.
type PermissionStore interface {
	ListPermissionsByApp(ctx context.Context, appID string) ([]*store.Permission, error)
	ListApps(ctx context.Context, status store.AppStatus) ([]*store.App, error)
	DeleteAppCascade(ctx context.Context, id string) error
}

// Ledger answers authorization and expiry questions about app scopes.
// All hot-path operations are read-only; the sweep is the only writer.
type Ledger struct {
	store  PermissionStore
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Ledger over the given store.
func New(s PermissionStore) *Ledger {
	return &Ledger{
		store:  s,
		now:    time.Now,
		logger: slog.Default().With("component", "ledger"),
	}
}

// IsAuthorized reports whether the app holds a matching, non-expired
// permission for the exact resource id and, when the permission
// restricts actions, whether the requested action is allow-listed.
func (l *Ledger) IsAuthorized(ctx context.Context, appID, resourceID, action string) (bool, error) {
	perms, err := l.store.ListPermissionsByApp(ctx, appID)
	if err != nil {
		return false, fmt.Errorf("listing permissions: %w", err)
	}

	now := l.now()
	for _, perm := range perms {
		if perm.ResourceID != resourceID {
			continue
		}
		if perm.ExpiresAt != nil && !perm.ExpiresAt.After(now) {
			continue
		}
		if len(perm.Actions) == 0 {
			return true, nil
		}
		for _, allowed := range perm.Actions {
			if allowed == action {
				return true, nil
			}
		}
	}
	return false, nil
}

// IsAppExpired reports whether the app is fully expired: it has zero
// permissions, or every permission carries an expiry and all of them
// are in the past. A single non-expiring permission keeps the app
// alive indefinitely.
func (l *Ledger) IsAppExpired(ctx context.Context, appID string) (bool, error) {
	perms, err := l.store.ListPermissionsByApp(ctx, appID)
	if err != nil {
		return false, fmt.Errorf("listing permissions: %w", err)
	}
	if len(perms) == 0 {
		return true, nil
	}

	now := l.now()
	for _, perm := range perms {
		if perm.ExpiresAt == nil {
			return false, nil
		}
		if perm.ExpiresAt.After(now) {
			return false, nil
		}
	}
	return true, nil
}

// Sweep scans ACTIVE apps and cascade-deletes each fully expired one
// together with its permissions and app-scoped credentials. It is an
// idempotent batch job, never invoked on the authenticated hot path.
// Returns the number of apps removed.
func (l *Ledger) Sweep(ctx context.Context) (int, error) {
	apps, err := l.store.ListApps(ctx, store.AppStatusActive)
	if err != nil {
		return 0, fmt.Errorf("listing apps: %w", err)
	}

	removed := 0
	for _, app := range apps {
		expired, err := l.IsAppExpired(ctx, app.ID)
		if err != nil {
			return removed, err
		}
		if !expired {
			continue
		}

		if err := l.store.DeleteAppCascade(ctx, app.ID); err != nil {
			// A concurrent sweep or revoke may have beaten us here
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return removed, fmt.Errorf("deleting expired app %s: %w", app.ID, err)
		}

		l.logger.Info("swept expired app", "app_id", app.ID, "name", app.Name)
		removed++
	}

	return removed, nil
}
