// ABOUTME: HTTP handler for PoP-authenticated plugin action dispatch.
// ABOUTME: Maps router sentinel errors to their HTTP statuses.

package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/2389/hearth-gateway/internal/auth"
	"github.com/2389/hearth-gateway/internal/plugins"
)

// handleDispatch handles POST /v1/{type}/{provider}/{action} requests.
// The PoP middleware has already authenticated the caller and verified
// the signature covers the body this handler reads.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	resourceID := r.PathValue("type") + ":" + r.PathValue("provider")
	action := r.PathValue("action")

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "reading request body")
		return
	}

	result, err := s.router.Dispatch(r.Context(), authCtx.AppID, resourceID, action, payload)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Body)
}

// ProviderErrorResponse is the JSON body returned when an upstream
// provider call fails.
type ProviderErrorResponse struct {
	Error          string `json:"error"`
	Provider       string `json:"provider"`
	ProviderStatus int    `json:"provider_status,omitempty"`
}

// writeDispatchError translates router errors into HTTP responses.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	var provErr *plugins.ProviderError
	switch {
	case errors.Is(err, plugins.ErrUnknownResource):
		s.sendJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, plugins.ErrUnsupportedAction):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, plugins.ErrForbidden):
		s.sendJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, plugins.ErrEnforcement):
		s.sendJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, plugins.ErrCredentialUnavailable):
		// Never echo vault detail to the caller
		s.sendJSONError(w, http.StatusServiceUnavailable, "credential unavailable for resource")
	case errors.As(err, &provErr):
		s.sendJSON(w, http.StatusBadGateway, ProviderErrorResponse{
			Error:          provErr.Message,
			Provider:       provErr.Provider,
			ProviderStatus: provErr.Status,
		})
	default:
		s.logger.Error("dispatch failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
