// ABOUTME: Install session store methods for the app registration handshake
// ABOUTME: Requested scopes are stored as a JSON array alongside the pending key

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateInstallSession stores a new registration handshake.
// The token must already be set by the caller (it is the identity of
// the handshake and must be unguessable).
func (s *SQLiteStore) CreateInstallSession(ctx context.Context, session *InstallSession) error {
	if session.Token == "" {
		return errors.New("install session token is required")
	}
	if session.Status == "" {
		session.Status = SessionStatusPending
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	scopesJSON, err := marshalScopes(session.RequestedScopes)
	if err != nil {
		return fmt.Errorf("encoding requested scopes: %w", err)
	}

	query := `
		INSERT INTO install_sessions (token, app_id, status, requested_name, public_key, requested_scopes, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		session.Token,
		nullString(ptrToString(session.AppID)),
		string(session.Status),
		session.RequestedName,
		session.PublicKey,
		scopesJSON,
		session.CreatedAt.Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting install session: %w", err)
	}

	s.logger.Info("created install session",
		"requested_name", session.RequestedName, "expires_at", session.ExpiresAt)
	return nil
}

// GetInstallSession retrieves a session by its token.
// Returns ErrNotFound if the token is unknown.
func (s *SQLiteStore) GetInstallSession(ctx context.Context, token string) (*InstallSession, error) {
	query := `
		SELECT token, app_id, status, requested_name, public_key, requested_scopes, created_at, expires_at
		FROM install_sessions
		WHERE token = ?
	`

	session, err := scanInstallSession(s.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying install session: %w", err)
	}
	return session, nil
}

// UpdateInstallSession persists a session's terminal status and app
// binding. The write is conditional on the stored status still being
// PENDING, so two racing operator decisions cannot both land: the
// loser gets ErrConflict and the stored terminal status is untouched.
// Returns ErrNotFound if the token is unknown.
func (s *SQLiteStore) UpdateInstallSession(ctx context.Context, session *InstallSession) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE install_sessions SET status = ?, app_id = ? WHERE token = ? AND status = ?`,
		string(session.Status),
		nullString(ptrToString(session.AppID)),
		session.Token,
		string(SessionStatusPending),
	)
	if err != nil {
		return fmt.Errorf("updating install session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := s.GetInstallSession(ctx, session.Token); err != nil {
			return err
		}
		return ErrConflict
	}

	s.logger.Info("updated install session", "status", session.Status)
	return nil
}

// ListInstallSessions returns sessions, optionally filtered by stored status.
// Note the stored status of a stale PENDING session may lag its
// effective status; callers derive expiry at read time.
func (s *SQLiteStore) ListInstallSessions(ctx context.Context, status SessionStatus) ([]*InstallSession, error) {
	query := `
		SELECT token, app_id, status, requested_name, public_key, requested_scopes, created_at, expires_at
		FROM install_sessions
	`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying install sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*InstallSession
	for rows.Next() {
		session, err := scanInstallSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning install session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating install session rows: %w", err)
	}

	return sessions, nil
}

// scanInstallSession scans an install session row in column order.
func scanInstallSession(row rowScanner) (*InstallSession, error) {
	var session InstallSession
	var appID, scopesJSON sql.NullString
	var status, createdAt, expiresAt string

	if err := row.Scan(
		&session.Token,
		&appID,
		&status,
		&session.RequestedName,
		&session.PublicKey,
		&scopesJSON,
		&createdAt,
		&expiresAt,
	); err != nil {
		return nil, err
	}

	if appID.Valid {
		session.AppID = &appID.String
	}
	if scopesJSON.Valid && scopesJSON.String != "" {
		if err := json.Unmarshal([]byte(scopesJSON.String), &session.RequestedScopes); err != nil {
			return nil, fmt.Errorf("decoding requested scopes: %w", err)
		}
	}
	session.Status = SessionStatus(status)
	session.CreatedAt = parseTime("created_at", session.Token, createdAt)
	session.ExpiresAt = parseTime("expires_at", session.Token, expiresAt)

	return &session, nil
}

// marshalScopes encodes requested scopes as JSON, mapping none to NULL.
func marshalScopes(scopes []ScopeRequest) (any, error) {
	if len(scopes) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(scopes)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
