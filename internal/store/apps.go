// ABOUTME: App store methods for registered calling clients
// ABOUTME: Includes the transactional cascade delete used by the expiry sweep

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateApp creates a new app record.
func (s *SQLiteStore) CreateApp(ctx context.Context, app *App) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.Status == "" {
		app.Status = AppStatusActive
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO apps (id, name, status, public_key, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		app.ID,
		app.Name,
		string(app.Status),
		app.PublicKey,
		app.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateApp
		}
		return fmt.Errorf("inserting app: %w", err)
	}

	s.logger.Info("created app", "id", app.ID, "name", app.Name)
	return nil
}

// GetApp retrieves an app by ID.
// Returns ErrNotFound if the app doesn't exist.
func (s *SQLiteStore) GetApp(ctx context.Context, id string) (*App, error) {
	query := `
		SELECT id, name, status, public_key, created_at
		FROM apps
		WHERE id = ?
	`

	var app App
	var status, createdAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&app.ID,
		&app.Name,
		&status,
		&app.PublicKey,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying app: %w", err)
	}

	app.Status = AppStatus(status)
	app.CreatedAt = parseTime("created_at", app.ID, createdAt)

	return &app, nil
}

// ListApps returns apps, optionally filtered by status.
// An empty status returns all apps.
func (s *SQLiteStore) ListApps(ctx context.Context, status AppStatus) ([]*App, error) {
	query := `
		SELECT id, name, status, public_key, created_at
		FROM apps
	`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying apps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var apps []*App
	for rows.Next() {
		var app App
		var rowStatus, createdAt string
		if err := rows.Scan(&app.ID, &app.Name, &rowStatus, &app.PublicKey, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning app row: %w", err)
		}
		app.Status = AppStatus(rowStatus)
		app.CreatedAt = parseTime("created_at", app.ID, createdAt)
		apps = append(apps, &app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating app rows: %w", err)
	}

	return apps, nil
}

// UpdateAppStatus sets an app's status.
// Returns ErrNotFound if the app doesn't exist.
func (s *SQLiteStore) UpdateAppStatus(ctx context.Context, id string, status AppStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE apps SET status = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("updating app status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("updated app status", "id", id, "status", status)
	return nil
}

// DeleteAppCascade removes an app together with its permissions and
// app-scoped secrets in a single transaction. Provider-wide default
// secrets (app_id NULL) are left in place.
// Returns ErrNotFound if the app doesn't exist.
func (s *SQLiteStore) DeleteAppCascade(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE app_id = ?`, id); err != nil {
		return fmt.Errorf("deleting permissions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resource_secrets WHERE app_id = ?`, id); err != nil {
		return fmt.Errorf("deleting app-scoped secrets: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM apps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting app: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Info("deleted app with cascade", "id", id)
	return nil
}
