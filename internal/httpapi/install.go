// ABOUTME: HTTP handlers for the app install handshake.
// ABOUTME: Provides POST /v1/install and GET /v1/install/{token}.

package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/2389/hearth-gateway/internal/session"
	"github.com/2389/hearth-gateway/internal/store"
)

// InstallRequest is the JSON request body for POST /v1/install.
type InstallRequest struct {
	Name      string               `json:"name"`
	PublicKey string               `json:"public_key"`
	Scopes    []store.ScopeRequest `json:"scopes,omitempty"`
}

// InstallResponse is the JSON response for POST /v1/install.
type InstallResponse struct {
	Token     string `json:"token"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

// InstallStatusResponse is the JSON response for GET /v1/install/{token}.
// AppID and BaseURL are present only once the session is approved;
// Reason only when it is denied.
type InstallStatusResponse struct {
	Status  string  `json:"status"`
	AppID   *string `json:"app_id,omitempty"`
	BaseURL string  `json:"base_url,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// handleInstallBegin handles POST /v1/install requests.
func (s *Server) handleInstallBegin(w http.ResponseWriter, r *http.Request) {
	var req InstallRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.sessions.Begin(r.Context(), req.Name, req.PublicKey, req.Scopes)
	if err != nil {
		if errors.Is(err, session.ErrBadPublicKey) {
			s.sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("beginning install session", "error", err)
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.sendJSON(w, http.StatusCreated, InstallResponse{
		Token:     sess.Token,
		Status:    string(sess.Status),
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// handleInstallStatus handles GET /v1/install/{token} requests.
// Apps poll this endpoint while the operator decides.
func (s *Server) handleInstallStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("token"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "install session not found")
			return
		}
		s.logger.Error("loading install session", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := InstallStatusResponse{Status: string(sess.Status)}
	switch sess.Status {
	case store.SessionStatusApproved:
		resp.AppID = sess.AppID
		resp.BaseURL = s.sessions.BaseURL()
	case store.SessionStatusDenied:
		resp.Reason = session.DeniedReason
	}
	s.sendJSON(w, http.StatusOK, resp)
}
