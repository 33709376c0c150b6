// ABOUTME: HTTP middleware for PoP-signed app requests and JWT admin requests
// ABOUTME: Verified identity is added to the request context via WithAuth

package auth

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/hearth-gateway/internal/pop"
)

// maxRequestBody caps how much of a signed request body is buffered for
// hashing. Provider-level size limits are enforced separately.
const maxRequestBody = 4 << 20

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// writeUnauthorized sends the uniform rejection for failed authentication.
// Callers never learn which check failed; the detail goes to the log only.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication failed"}`))
}

// PoPMiddleware verifies the proof-of-possession signature on every
// request it wraps. The request body is buffered for hashing and
// restored for the downstream handler. On success the app id is
// attached to the request context.
func PoPMiddleware(verifier *pop.Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(pop.HeaderVersion) != pop.ProtocolVersion {
				logger.Warn("rejected request with missing or unknown pop version",
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
				)
				writeUnauthorized(w)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
			if err != nil {
				logger.Warn("rejected request with unreadable body", "path", r.URL.Path, "error", err)
				writeUnauthorized(w)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			req := &pop.Request{
				Method:        r.Method,
				PathWithQuery: r.URL.RequestURI(),
				AppID:         r.Header.Get(pop.HeaderAppID),
				Timestamp:     r.Header.Get(pop.HeaderTimestamp),
				Nonce:         r.Header.Get(pop.HeaderNonce),
				Signature:     r.Header.Get(pop.HeaderSignature),
				Body:          body,
			}

			app, err := verifier.Verify(r.Context(), req)
			if err != nil {
				logger.Warn("pop verification failed",
					"app_id", req.AppID,
					"path", r.URL.Path,
					"error", err,
				)
				writeUnauthorized(w)
				return
			}

			authCtx := &AuthContext{AppID: app.ID}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// AdminMiddleware authenticates operator requests with a bearer JWT.
func AdminMiddleware(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				logger.Warn("admin request rejected", "path", r.URL.Path, "reason", errMsg)
				writeUnauthorized(w)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("admin token rejected", "path", r.URL.Path, "error", err)
				writeUnauthorized(w)
				return
			}

			authCtx := &AuthContext{AppID: subject, Admin: true}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// RequireAdmin rejects requests whose context lacks an admin identity.
// Must be used after AdminMiddleware.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				writeUnauthorized(w)
				return
			}
			if !authCtx.Admin {
				http.Error(w, `{"error":"admin token required"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
