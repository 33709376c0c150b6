// ABOUTME: Permission store methods for per-app, per-resource scope grants
// ABOUTME: Actions are stored as a JSON array; a NULL expiry never expires

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreatePermission creates a new scope grant for an app.
func (s *SQLiteStore) CreatePermission(ctx context.Context, perm *Permission) error {
	if perm.ID == "" {
		perm.ID = uuid.New().String()
	}
	if perm.CreatedAt.IsZero() {
		perm.CreatedAt = time.Now().UTC()
	}

	actionsJSON, err := marshalActions(perm.Actions)
	if err != nil {
		return fmt.Errorf("encoding actions: %w", err)
	}

	query := `
		INSERT INTO permissions (id, app_id, resource_id, actions, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		perm.ID,
		perm.AppID,
		perm.ResourceID,
		actionsJSON,
		nullableTime(perm.ExpiresAt),
		perm.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting permission: %w", err)
	}

	s.logger.Debug("created permission",
		"id", perm.ID, "app_id", perm.AppID, "resource_id", perm.ResourceID)
	return nil
}

// GetPermission retrieves a permission by ID.
// Returns ErrNotFound if the permission doesn't exist.
func (s *SQLiteStore) GetPermission(ctx context.Context, id string) (*Permission, error) {
	query := `
		SELECT id, app_id, resource_id, actions, expires_at, created_at
		FROM permissions
		WHERE id = ?
	`

	perm, err := scanPermission(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying permission: %w", err)
	}
	return perm, nil
}

// ListPermissionsByApp returns all permissions granted to an app.
func (s *SQLiteStore) ListPermissionsByApp(ctx context.Context, appID string) ([]*Permission, error) {
	query := `
		SELECT id, app_id, resource_id, actions, expires_at, created_at
		FROM permissions
		WHERE app_id = ?
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("querying permissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var perms []*Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning permission row: %w", err)
		}
		perms = append(perms, perm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permission rows: %w", err)
	}

	return perms, nil
}

// UpdatePermissionExpiry extends or clears a permission's expiry.
// A nil expiresAt makes the permission non-expiring.
// Returns ErrNotFound if the permission doesn't exist.
func (s *SQLiteStore) UpdatePermissionExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE permissions SET expires_at = ? WHERE id = ?`,
		nullableTime(expiresAt), id,
	)
	if err != nil {
		return fmt.Errorf("updating permission expiry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("updated permission expiry", "id", id)
	return nil
}

// DeletePermission removes a permission by ID.
// Returns ErrNotFound if the permission doesn't exist.
func (s *SQLiteStore) DeletePermission(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting permission: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("deleted permission", "id", id)
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPermission scans a permission row in column order.
func scanPermission(row rowScanner) (*Permission, error) {
	var perm Permission
	var actionsJSON sql.NullString
	var expiresAt sql.NullString
	var createdAt string

	if err := row.Scan(
		&perm.ID,
		&perm.AppID,
		&perm.ResourceID,
		&actionsJSON,
		&expiresAt,
		&createdAt,
	); err != nil {
		return nil, err
	}

	if actionsJSON.Valid && actionsJSON.String != "" {
		if err := json.Unmarshal([]byte(actionsJSON.String), &perm.Actions); err != nil {
			return nil, fmt.Errorf("decoding actions for permission %s: %w", perm.ID, err)
		}
	}
	if expiresAt.Valid {
		t := parseTime("expires_at", perm.ID, expiresAt.String)
		perm.ExpiresAt = &t
	}
	perm.CreatedAt = parseTime("created_at", perm.ID, createdAt)

	return &perm, nil
}

// marshalActions encodes an action allow-list as JSON, mapping an
// empty list to NULL (all advertised actions allowed).
func marshalActions(actions []string) (any, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// nullableTime formats an optional time as RFC3339 or NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
