// ABOUTME: Operator admin handlers: sessions, apps, secrets, permissions, sweep.
// ABOUTME: All routes sit behind JWT bearer auth; secret values are only ever returned masked.

package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/2389/hearth-gateway/internal/session"
	"github.com/2389/hearth-gateway/internal/store"
	"github.com/2389/hearth-gateway/internal/vault"
)

// SessionSummary is one entry in the admin session listing.
type SessionSummary struct {
	Token           string               `json:"token"`
	Status          string               `json:"status"`
	RequestedName   string               `json:"requested_name"`
	RequestedScopes []store.ScopeRequest `json:"requested_scopes,omitempty"`
	CreatedAt       string               `json:"created_at"`
	ExpiresAt       string               `json:"expires_at"`
}

// handleAdminListSessions handles GET /admin/sessions requests.
func (s *Server) handleAdminListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListPending(r.Context())
	if err != nil {
		s.logger.Error("listing pending sessions", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionSummary{
			Token:           sess.Token,
			Status:          string(sess.Status),
			RequestedName:   sess.RequestedName,
			RequestedScopes: sess.RequestedScopes,
			CreatedAt:       sess.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt:       sess.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// ApproveSessionResponse is the JSON response for session approval.
type ApproveSessionResponse struct {
	AppID   string `json:"app_id"`
	BaseURL string `json:"base_url"`
}

// handleAdminApproveSession handles POST /admin/sessions/{token}/approve.
func (s *Server) handleAdminApproveSession(w http.ResponseWriter, r *http.Request) {
	approval, err := s.sessions.Approve(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, ApproveSessionResponse{
		AppID:   approval.AppID,
		BaseURL: approval.BaseURL,
	})
}

// handleAdminDenySession handles POST /admin/sessions/{token}/deny.
func (s *Server) handleAdminDenySession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Deny(r.Context(), r.PathValue("token")); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": string(store.SessionStatusDenied)})
}

// writeSessionError maps session state machine errors to HTTP statuses.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		s.sendJSONError(w, http.StatusNotFound, "install session not found")
	case errors.Is(err, session.ErrInvalidTransition):
		s.sendJSONError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("session operation failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// AppSummary is one entry in the admin app listing.
type AppSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// handleAdminListApps handles GET /admin/apps requests. An optional
// ?status=ACTIVE|REVOKED query filters the listing.
func (s *Server) handleAdminListApps(w http.ResponseWriter, r *http.Request) {
	status := store.AppStatus(r.URL.Query().Get("status"))
	apps, err := s.store.ListApps(r.Context(), status)
	if err != nil {
		s.logger.Error("listing apps", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]AppSummary, 0, len(apps))
	for _, app := range apps {
		out = append(out, AppSummary{
			ID:        app.ID,
			Name:      app.Name,
			Status:    string(app.Status),
			CreatedAt: app.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"apps": out})
}

// handleAdminRevokeApp handles POST /admin/apps/{id}/revoke. A revoked
// app keeps its records but fails PoP verification immediately.
func (s *Server) handleAdminRevokeApp(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.UpdateAppStatus(r.Context(), id, store.AppStatusRevoked); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "app not found")
			return
		}
		s.logger.Error("revoking app", "app_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.logger.Info("app revoked", "app_id", id)
	s.sendJSON(w, http.StatusOK, map[string]string{"status": string(store.AppStatusRevoked)})
}

// handleAdminDeleteApp handles DELETE /admin/apps/{id}. Removes the app
// with its permissions and app-scoped secrets.
func (s *Server) handleAdminDeleteApp(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteAppCascade(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "app not found")
			return
		}
		s.logger.Error("deleting app", "app_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.logger.Info("app deleted", "app_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SecretSummary is one entry in the admin secret listing. The value is
// always a masked preview.
type SecretSummary struct {
	ID         string  `json:"id"`
	ResourceID string  `json:"resource_id"`
	AppID      *string `json:"app_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Status     string  `json:"status"`
	Preview    string  `json:"preview"`
	UpdatedAt  string  `json:"updated_at"`
}

// handleAdminListSecrets handles GET /admin/secrets requests.
func (s *Server) handleAdminListSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.store.ListResourceSecrets(r.Context())
	if err != nil {
		s.logger.Error("listing secrets", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]SecretSummary, 0, len(secrets))
	for _, secret := range secrets {
		preview := "(undecryptable)"
		if plaintext, err := s.vault.Decrypt(secret.EncryptedKey, secret.IV); err == nil {
			preview = vault.Mask(string(plaintext))
		}
		out = append(out, SecretSummary{
			ID:         secret.ID,
			ResourceID: secret.ResourceID,
			AppID:      secret.AppID,
			Name:       secret.Name,
			Status:     string(secret.Status),
			Preview:    preview,
			UpdatedAt:  secret.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"secrets": out})
}

// SeedSecretRequest is the JSON request body for POST /admin/secrets.
// Key carries the plaintext credential; it is vaulted immediately and
// never logged or echoed back.
type SeedSecretRequest struct {
	ResourceID string  `json:"resource_id"`
	AppID      *string `json:"app_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Key        string  `json:"key"`
}

// handleAdminSeedSecret handles POST /admin/secrets requests.
func (s *Server) handleAdminSeedSecret(w http.ResponseWriter, r *http.Request) {
	var req SeedSecretRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ResourceID == "" || req.Key == "" {
		s.sendJSONError(w, http.StatusBadRequest, "resource_id and key are required")
		return
	}

	ciphertext, iv, err := s.vault.Encrypt([]byte(req.Key))
	if err != nil {
		s.logger.Error("encrypting secret", "resource_id", req.ResourceID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	secret := &store.ResourceSecret{
		ResourceID:   req.ResourceID,
		AppID:        req.AppID,
		EncryptedKey: ciphertext,
		IV:           iv,
		Name:         req.Name,
		Status:       store.SecretStatusActive,
	}
	if err := s.store.CreateResourceSecret(r.Context(), secret); err != nil {
		if errors.Is(err, store.ErrDuplicateSecret) {
			s.sendJSONError(w, http.StatusConflict, "secret already seeded for this scope")
			return
		}
		s.logger.Error("storing secret", "resource_id", req.ResourceID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("secret seeded",
		"resource_id", req.ResourceID,
		"preview", vault.Mask(req.Key),
	)
	s.sendJSON(w, http.StatusCreated, map[string]string{"id": secret.ID})
}

// RotateSecretRequest is the JSON request body for PUT /admin/secrets.
type RotateSecretRequest struct {
	ResourceID string  `json:"resource_id"`
	AppID      *string `json:"app_id,omitempty"`
	Key        string  `json:"key"`
}

// handleAdminRotateSecret handles PUT /admin/secrets requests. The
// existing row for the scope is re-encrypted in place under a fresh IV.
func (s *Server) handleAdminRotateSecret(w http.ResponseWriter, r *http.Request) {
	var req RotateSecretRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ResourceID == "" || req.Key == "" {
		s.sendJSONError(w, http.StatusBadRequest, "resource_id and key are required")
		return
	}

	secret, err := s.store.GetResourceSecret(r.Context(), req.ResourceID, req.AppID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "no secret seeded for this scope")
			return
		}
		s.logger.Error("loading secret", "resource_id", req.ResourceID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ciphertext, iv, err := s.vault.Encrypt([]byte(req.Key))
	if err != nil {
		s.logger.Error("encrypting secret", "resource_id", req.ResourceID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	secret.EncryptedKey = ciphertext
	secret.IV = iv
	if err := s.store.UpdateResourceSecret(r.Context(), secret); err != nil {
		s.logger.Error("rotating secret", "resource_id", req.ResourceID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("secret rotated",
		"resource_id", req.ResourceID,
		"preview", vault.Mask(req.Key),
	)
	s.sendJSON(w, http.StatusOK, map[string]string{"id": secret.ID})
}

// handleAdminDisableSecret handles POST /admin/secrets/{id}/disable.
func (s *Server) handleAdminDisableSecret(w http.ResponseWriter, r *http.Request) {
	s.setSecretStatus(w, r, store.SecretStatusDisabled)
}

// handleAdminEnableSecret handles POST /admin/secrets/{id}/enable.
func (s *Server) handleAdminEnableSecret(w http.ResponseWriter, r *http.Request) {
	s.setSecretStatus(w, r, store.SecretStatusActive)
}

func (s *Server) setSecretStatus(w http.ResponseWriter, r *http.Request, status store.SecretStatus) {
	id := r.PathValue("id")
	if err := s.store.SetResourceSecretStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "secret not found")
			return
		}
		s.logger.Error("updating secret status", "secret_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.logger.Info("secret status updated", "secret_id", id, "status", status)
	s.sendJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// GrantPermissionRequest is the JSON request body for POST /admin/permissions.
// A zero TTL grants a non-expiring permission.
type GrantPermissionRequest struct {
	AppID      string   `json:"app_id"`
	ResourceID string   `json:"resource_id"`
	Actions    []string `json:"actions,omitempty"`
	TTLSeconds int64    `json:"ttl_seconds,omitempty"`
}

// handleAdminGrantPermission handles POST /admin/permissions requests.
func (s *Server) handleAdminGrantPermission(w http.ResponseWriter, r *http.Request) {
	var req GrantPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AppID == "" || req.ResourceID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "app_id and resource_id are required")
		return
	}
	if _, err := s.store.GetApp(r.Context(), req.AppID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "app not found")
			return
		}
		s.logger.Error("loading app", "app_id", req.AppID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	perm := &store.Permission{
		AppID:      req.AppID,
		ResourceID: req.ResourceID,
		Actions:    req.Actions,
	}
	if req.TTLSeconds > 0 {
		expires := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		perm.ExpiresAt = &expires
	}
	if err := s.store.CreatePermission(r.Context(), perm); err != nil {
		s.logger.Error("creating permission", "app_id", req.AppID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("permission granted",
		"app_id", req.AppID,
		"resource_id", req.ResourceID,
		"permission_id", perm.ID,
	)
	s.sendJSON(w, http.StatusCreated, map[string]string{"id": perm.ID})
}

// PermissionSummary is one entry in the per-app permission listing.
type PermissionSummary struct {
	ID         string   `json:"id"`
	ResourceID string   `json:"resource_id"`
	Actions    []string `json:"actions,omitempty"`
	ExpiresAt  *string  `json:"expires_at,omitempty"`
}

// handleAdminListPermissions handles GET /admin/apps/{id}/permissions.
func (s *Server) handleAdminListPermissions(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("id")
	perms, err := s.store.ListPermissionsByApp(r.Context(), appID)
	if err != nil {
		s.logger.Error("listing permissions", "app_id", appID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]PermissionSummary, 0, len(perms))
	for _, perm := range perms {
		entry := PermissionSummary{
			ID:         perm.ID,
			ResourceID: perm.ResourceID,
			Actions:    perm.Actions,
		}
		if perm.ExpiresAt != nil {
			formatted := perm.ExpiresAt.UTC().Format(time.RFC3339)
			entry.ExpiresAt = &formatted
		}
		out = append(out, entry)
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"permissions": out})
}

// UpdateExpiryRequest is the JSON request body for permission expiry
// updates. A zero TTL clears the expiry, making the grant permanent.
type UpdateExpiryRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

// handleAdminUpdatePermissionExpiry handles PUT /admin/permissions/{id}/expiry.
func (s *Server) handleAdminUpdatePermissionExpiry(w http.ResponseWriter, r *http.Request) {
	var req UpdateExpiryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var expiresAt *time.Time
	if req.TTLSeconds > 0 {
		expires := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		expiresAt = &expires
	}

	id := r.PathValue("id")
	if err := s.store.UpdatePermissionExpiry(r.Context(), id, expiresAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "permission not found")
			return
		}
		s.logger.Error("updating permission expiry", "permission_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"id": id})
}

// handleAdminRevokePermission handles DELETE /admin/permissions/{id}.
func (s *Server) handleAdminRevokePermission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeletePermission(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "permission not found")
			return
		}
		s.logger.Error("revoking permission", "permission_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.logger.Info("permission revoked", "permission_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminSweep handles POST /admin/sweep requests: removes ACTIVE
// apps whose every permission has expired.
func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ledger.Sweep(r.Context())
	if err != nil {
		s.logger.Error("sweeping expired apps", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
