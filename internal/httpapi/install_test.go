// ABOUTME: Tests for the install handshake routes and their admin decisions.
// ABOUTME: Walks the register -> poll -> approve/deny flow end to end.

package httpapi

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/2389/hearth-gateway/internal/codec"
	"github.com/2389/hearth-gateway/internal/store"
)

func beginInstall(t *testing.T, env *testEnv, name string) (token string) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	body, _ := json.Marshal(InstallRequest{
		Name:      name,
		PublicKey: codec.Base64Encode(pub),
		Scopes: []store.ScopeRequest{
			{ResourceID: "llm:groq", Actions: []string{"chat.completions"}, TTLSeconds: 3600},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/install", bytes.NewReader(body))
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp InstallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(store.SessionStatusPending), resp.Status)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func installStatus(t *testing.T, env *testEnv, token string) InstallStatusResponse {
	t.Helper()
	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/install/"+token, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp InstallStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestInstall_ApproveFlow(t *testing.T) {
	env := newTestEnv(t)
	token := beginInstall(t, env, "my assistant")

	// Pending while the operator decides
	assert.Equal(t, string(store.SessionStatusPending), installStatus(t, env, token).Status)

	// Operator approves
	rec := env.do(adminRequest(http.MethodPost, "/admin/sessions/"+token+"/approve", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approval ApproveSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approval))
	assert.NotEmpty(t, approval.AppID)
	assert.Equal(t, testBaseURL, approval.BaseURL)

	// The app polls and receives its identity
	status := installStatus(t, env, token)
	assert.Equal(t, string(store.SessionStatusApproved), status.Status)
	require.NotNil(t, status.AppID)
	assert.Equal(t, approval.AppID, *status.AppID)
	assert.Equal(t, testBaseURL, status.BaseURL)

	// Requested scopes became real permissions
	rec = env.do(adminRequest(http.MethodGet, "/admin/apps/"+approval.AppID+"/permissions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "llm:groq")
}

func TestInstall_DenyFlow(t *testing.T) {
	env := newTestEnv(t)
	token := beginInstall(t, env, "suspicious app")

	rec := env.do(adminRequest(http.MethodPost, "/admin/sessions/"+token+"/deny", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	status := installStatus(t, env, token)
	assert.Equal(t, string(store.SessionStatusDenied), status.Status)
	assert.NotEmpty(t, status.Reason)
	assert.Nil(t, status.AppID)
}

func TestInstall_TerminalTransitionConflicts(t *testing.T) {
	env := newTestEnv(t)
	token := beginInstall(t, env, "app")

	require.Equal(t, http.StatusOK,
		env.do(adminRequest(http.MethodPost, "/admin/sessions/"+token+"/deny", nil)).Code)

	// Denied is terminal: approving now conflicts
	rec := env.do(adminRequest(http.MethodPost, "/admin/sessions/"+token+"/approve", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// As does denying again
	rec = env.do(adminRequest(http.MethodPost, "/admin/sessions/"+token+"/deny", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInstall_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"missing name", `{"public_key":"AAAA"}`},
		{"bad public key", `{"name":"app","public_key":"not-a-key"}`},
		{"unknown field", `{"name":"app","public_key":"AAAA","extra":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/install", strings.NewReader(tt.body))
			rec := env.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestInstall_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/v1/install/doesnotexist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(adminRequest(http.MethodPost, "/admin/sessions/doesnotexist/approve", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstall_OpenSSHKeyAccepted(t *testing.T) {
	env := newTestEnv(t)

	// An OpenSSH-format ed25519 key normalizes to the same raw key
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	body, _ := json.Marshal(InstallRequest{
		Name:      "cli app",
		PublicKey: string(ssh.MarshalAuthorizedKey(sshPub)),
	})
	rec := env.do(httptest.NewRequest(http.MethodPost, "/v1/install", bytes.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/admin/sessions"},
		{http.MethodGet, "/admin/apps"},
		{http.MethodGet, "/admin/secrets"},
		{http.MethodPost, "/admin/sweep"},
	}
	for _, route := range routes {
		t.Run(route.method+" "+route.target, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(route.method, route.target, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"authentication failed"}`, rec.Body.String())
		})
	}
}
