// ABOUTME: HTTP server assembly for the gateway's public and admin surfaces
// ABOUTME: Wires middleware and handlers onto a ServeMux and manages lifecycle

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/hearth-gateway/internal/auth"
	"github.com/2389/hearth-gateway/internal/ledger"
	"github.com/2389/hearth-gateway/internal/plugins"
	"github.com/2389/hearth-gateway/internal/pop"
	"github.com/2389/hearth-gateway/internal/session"
	"github.com/2389/hearth-gateway/internal/store"
	"github.com/2389/hearth-gateway/internal/vault"
)

// Server hosts the app-facing API and the operator admin surface.
type Server struct {
	store    store.Store
	vault    *vault.Vault
	verifier *pop.Verifier
	ledger   *ledger.Ledger
	sessions *session.Service
	registry *plugins.Registry
	router   *plugins.Router
	tokens   auth.TokenVerifier
	logger   *slog.Logger

	httpServer *http.Server
}

// Config carries the assembled components the server routes to.
type Config struct {
	Addr     string
	Store    store.Store
	Vault    *vault.Vault
	Verifier *pop.Verifier
	Ledger   *ledger.Ledger
	Sessions *session.Service
	Registry *plugins.Registry
	Router   *plugins.Router
	Tokens   auth.TokenVerifier
	Logger   *slog.Logger
}

// NewServer assembles the HTTP server. Call Start to begin serving.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    cfg.Store,
		vault:    cfg.Vault,
		verifier: cfg.Verifier,
		ledger:   cfg.Ledger,
		sessions: cfg.Sessions,
		registry: cfg.Registry,
		router:   cfg.Router,
		tokens:   cfg.Tokens,
		logger:   logger.With("component", "httpapi"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed separately so tests can drive
// the full middleware stack without a listening socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Public install handshake. Unauthenticated: the app has no
	// identity yet.
	mux.HandleFunc("POST /v1/install", s.handleInstallBegin)
	mux.HandleFunc("GET /v1/install/{token}", s.handleInstallStatus)

	// Discovery is a pure registry projection with no secret material;
	// apps read it to self-configure before their first signed call.
	mux.HandleFunc("GET /v1/discovery", s.handleDiscovery)

	// App-facing routes behind PoP verification.
	popAuth := auth.PoPMiddleware(s.verifier, s.logger)
	mux.Handle("POST /v1/{type}/{provider}/{action}", popAuth(http.HandlerFunc(s.handleDispatch)))

	// Operator surface behind JWT bearer auth.
	adminAuth := auth.AdminMiddleware(s.tokens, s.logger)
	requireAdmin := auth.RequireAdmin()
	admin := func(h http.HandlerFunc) http.Handler {
		return adminAuth(requireAdmin(h))
	}
	mux.Handle("GET /admin/sessions", admin(s.handleAdminListSessions))
	mux.Handle("POST /admin/sessions/{token}/approve", admin(s.handleAdminApproveSession))
	mux.Handle("POST /admin/sessions/{token}/deny", admin(s.handleAdminDenySession))

	mux.Handle("GET /admin/apps", admin(s.handleAdminListApps))
	mux.Handle("GET /admin/apps/{id}/permissions", admin(s.handleAdminListPermissions))
	mux.Handle("POST /admin/apps/{id}/revoke", admin(s.handleAdminRevokeApp))
	mux.Handle("DELETE /admin/apps/{id}", admin(s.handleAdminDeleteApp))

	mux.Handle("GET /admin/secrets", admin(s.handleAdminListSecrets))
	mux.Handle("POST /admin/secrets", admin(s.handleAdminSeedSecret))
	mux.Handle("PUT /admin/secrets", admin(s.handleAdminRotateSecret))
	mux.Handle("POST /admin/secrets/{id}/disable", admin(s.handleAdminDisableSecret))
	mux.Handle("POST /admin/secrets/{id}/enable", admin(s.handleAdminEnableSecret))

	mux.Handle("POST /admin/permissions", admin(s.handleAdminGrantPermission))
	mux.Handle("PUT /admin/permissions/{id}/expiry", admin(s.handleAdminUpdatePermissionExpiry))
	mux.Handle("DELETE /admin/permissions/{id}", admin(s.handleAdminRevokePermission))

	mux.Handle("POST /admin/sweep", admin(s.handleAdminSweep))

	return mux
}

// Start begins serving and blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sendJSON writes a JSON response body with the given status.
func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// sendJSONError writes an error response in the {"error": ...} envelope.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// decodeJSON reads a request body into dst, failing on unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
