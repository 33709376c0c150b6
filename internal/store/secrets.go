// ABOUTME: Resource secret store methods for vaulted provider credentials
// ABOUTME: Supports provider-wide defaults with optional per-app overrides

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateResourceSecret stores an encrypted provider credential.
// Returns ErrDuplicateSecret if a secret already exists for the same
// resource and scope.
func (s *SQLiteStore) CreateResourceSecret(ctx context.Context, secret *ResourceSecret) error {
	if secret.ID == "" {
		secret.ID = uuid.New().String()
	}
	if secret.Status == "" {
		secret.Status = SecretStatusActive
	}
	now := time.Now().UTC()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = now
	}
	if secret.UpdatedAt.IsZero() {
		secret.UpdatedAt = now
	}

	query := `
		INSERT INTO resource_secrets (id, resource_id, app_id, encrypted_key, iv, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		secret.ID,
		secret.ResourceID,
		nullString(ptrToString(secret.AppID)),
		secret.EncryptedKey,
		secret.IV,
		secret.Name,
		string(secret.Status),
		secret.CreatedAt.Format(time.RFC3339),
		secret.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: resource %q", ErrDuplicateSecret, secret.ResourceID)
		}
		return fmt.Errorf("inserting resource secret: %w", err)
	}

	s.logger.Info("created resource secret",
		"id", secret.ID, "resource_id", secret.ResourceID, "app_id", secret.AppID)
	return nil
}

// GetResourceSecret retrieves the secret for an exact (resource, scope) pair.
// Returns ErrNotFound if no secret exists for that scope.
func (s *SQLiteStore) GetResourceSecret(ctx context.Context, resourceID string, appID *string) (*ResourceSecret, error) {
	query := `
		SELECT id, resource_id, app_id, encrypted_key, iv, name, status, created_at, updated_at
		FROM resource_secrets
		WHERE resource_id = ? AND ifnull(app_id, '') = ?
	`

	secret, err := scanResourceSecret(s.db.QueryRowContext(ctx, query, resourceID, ptrToString(appID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying resource secret: %w", err)
	}
	return secret, nil
}

// ResolveResourceSecret returns the secret the router should use for a
// dispatch: the app-scoped override if present, else the provider-wide
// default. Returns ErrNotFound when neither exists.
func (s *SQLiteStore) ResolveResourceSecret(ctx context.Context, resourceID, appID string) (*ResourceSecret, error) {
	query := `
		SELECT id, resource_id, app_id, encrypted_key, iv, name, status, created_at, updated_at
		FROM resource_secrets
		WHERE resource_id = ? AND (app_id = ? OR app_id IS NULL)
		ORDER BY app_id IS NULL
		LIMIT 1
	`

	secret, err := scanResourceSecret(s.db.QueryRowContext(ctx, query, resourceID, appID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving resource secret: %w", err)
	}
	return secret, nil
}

// UpdateResourceSecret replaces a secret's ciphertext and IV (rotation).
// Returns ErrNotFound if the secret doesn't exist.
func (s *SQLiteStore) UpdateResourceSecret(ctx context.Context, secret *ResourceSecret) error {
	secret.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE resource_secrets
		SET encrypted_key = ?, iv = ?, name = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		secret.EncryptedKey,
		secret.IV,
		secret.Name,
		secret.UpdatedAt.Format(time.RFC3339),
		secret.ID,
	)
	if err != nil {
		return fmt.Errorf("updating resource secret: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("rotated resource secret", "id", secret.ID, "resource_id", secret.ResourceID)
	return nil
}

// SetResourceSecretStatus enables or disables a secret.
// Returns ErrNotFound if the secret doesn't exist.
func (s *SQLiteStore) SetResourceSecretStatus(ctx context.Context, id string, status SecretStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE resource_secrets SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating resource secret status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("updated resource secret status", "id", id, "status", status)
	return nil
}

// ListResourceSecrets returns all secrets ordered by resource, defaults first.
// Callers must never log decrypted values; ciphertext only leaves this
// store for the vault's decrypt at dispatch time.
func (s *SQLiteStore) ListResourceSecrets(ctx context.Context) ([]*ResourceSecret, error) {
	query := `
		SELECT id, resource_id, app_id, encrypted_key, iv, name, status, created_at, updated_at
		FROM resource_secrets
		ORDER BY resource_id, app_id NULLS FIRST
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying resource secrets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var secrets []*ResourceSecret
	for rows.Next() {
		secret, err := scanResourceSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resource secret row: %w", err)
		}
		secrets = append(secrets, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resource secret rows: %w", err)
	}

	return secrets, nil
}

// scanResourceSecret scans a resource secret row in column order.
func scanResourceSecret(row rowScanner) (*ResourceSecret, error) {
	var secret ResourceSecret
	var appID sql.NullString
	var status, createdAt, updatedAt string

	if err := row.Scan(
		&secret.ID,
		&secret.ResourceID,
		&appID,
		&secret.EncryptedKey,
		&secret.IV,
		&secret.Name,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if appID.Valid {
		secret.AppID = &appID.String
	}
	secret.Status = SecretStatus(status)
	secret.CreatedAt = parseTime("created_at", secret.ID, createdAt)
	secret.UpdatedAt = parseTime("updated_at", secret.ID, updatedAt)

	return &secret, nil
}
