// ABOUTME: Shared test harness for the HTTP API: real store, vault, and plugins.
// ABOUTME: Provides a fully wired server plus helpers for signed app requests.

package httpapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/hearth-gateway/internal/auth"
	"github.com/2389/hearth-gateway/internal/codec"
	"github.com/2389/hearth-gateway/internal/ledger"
	"github.com/2389/hearth-gateway/internal/plugins"
	"github.com/2389/hearth-gateway/internal/pop"
	"github.com/2389/hearth-gateway/internal/session"
	"github.com/2389/hearth-gateway/internal/store"
	"github.com/2389/hearth-gateway/internal/vault"
)

const testBaseURL = "https://gateway.test"

// adminToken is a static bearer accepted by the test token verifier.
const adminToken = "test-admin-token"

type testTokenVerifier struct{}

func (testTokenVerifier) Verify(token string) (string, error) {
	if token != adminToken {
		return "", auth.ErrInvalidToken
	}
	return "operator", nil
}

// testEnv bundles the wired server with handles the tests drive directly.
type testEnv struct {
	server   *Server
	handler  http.Handler
	store    store.Store
	vault    *vault.Vault
	provider *httptest.Server

	// providerStatus and providerBody control the fake provider reply.
	providerStatus int
	providerBody   string
	// lastProviderAuth records the Authorization header the provider saw.
	lastProviderAuth string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		providerStatus: http.StatusOK,
		providerBody:   `{"choices":[]}`,
	}

	env.provider = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.lastProviderAuth = r.Header.Get("Authorization")
		w.WriteHeader(env.providerStatus)
		_, _ = w.Write([]byte(env.providerBody))
	}))
	t.Cleanup(env.provider.Close)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	env.store = st

	masterKey := make([]byte, vault.MasterKeySize)
	_, err = rand.Read(masterKey)
	require.NoError(t, err)
	env.vault, err = vault.New(masterKey)
	require.NoError(t, err)

	manifest := &plugins.Manifest{Plugins: []plugins.ManifestEntry{
		{
			ID:            "llm:groq",
			Name:          "Groq",
			Actions:       []string{"chat.completions", "models.list"},
			DefaultModels: []string{"llama-3.3-70b-versatile"},
			BaseURL:       env.provider.URL,
		},
		{
			ID:      "mail:resend",
			Name:    "Resend",
			Actions: []string{"emails.send"},
			BaseURL: env.provider.URL,
			Enforcement: &plugins.Enforcement{
				AllowedDomains: []string{"example.com"},
			},
		},
	}}
	registry, err := plugins.BuildRegistry(manifest, nil)
	require.NoError(t, err)

	ldg := ledger.New(st)
	verifier := pop.NewVerifier(st, 0)
	t.Cleanup(verifier.Close)

	router := plugins.NewRouter(plugins.RouterConfig{
		Registry: registry,
		Ledger:   ldg,
		Secrets:  st,
		Vault:    env.vault,
		Timeout:  10 * time.Second,
	})

	env.server = NewServer(Config{
		Addr:     "127.0.0.1:0",
		Store:    st,
		Vault:    env.vault,
		Verifier: verifier,
		Ledger:   ldg,
		Sessions: session.NewService(st, testBaseURL, 15*time.Minute),
		Registry: registry,
		Router:   router,
		Tokens:   testTokenVerifier{},
	})
	env.handler = env.server.Handler()
	return env
}

// do drives one request through the full middleware stack.
func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

// adminRequest builds a request carrying the admin bearer token.
func adminRequest(method, target string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	return req
}

// testApp is an installed app with its signing key.
type testApp struct {
	id   string
	priv ed25519.PrivateKey
}

// installApp registers an app directly through the store and grants it
// the given permissions.
func (env *testEnv) installApp(t *testing.T, perms ...*store.Permission) *testApp {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	app := &store.App{
		Name:      "test app",
		Status:    store.AppStatusActive,
		PublicKey: codec.Base64Encode(pub),
	}
	require.NoError(t, env.store.CreateApp(context.Background(), app))

	for _, perm := range perms {
		perm.AppID = app.ID
		require.NoError(t, env.store.CreatePermission(context.Background(), perm))
	}
	return &testApp{id: app.ID, priv: priv}
}

// seedSecret vaults a credential for a resource.
func (env *testEnv) seedSecret(t *testing.T, resourceID, key string) *store.ResourceSecret {
	t.Helper()
	ciphertext, iv, err := env.vault.Encrypt([]byte(key))
	require.NoError(t, err)
	secret := &store.ResourceSecret{
		ResourceID:   resourceID,
		EncryptedKey: ciphertext,
		IV:           iv,
		Status:       store.SecretStatusActive,
	}
	require.NoError(t, env.store.CreateResourceSecret(context.Background(), secret))
	return secret
}

// signedRequest builds a PoP-signed request for the app.
func (app *testApp) signedRequest(method, target, nonce string, body []byte) *http.Request {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set(pop.HeaderVersion, pop.ProtocolVersion)
	req.Header.Set(pop.HeaderAppID, app.id)
	req.Header.Set(pop.HeaderTimestamp, ts)
	req.Header.Set(pop.HeaderNonce, nonce)
	req.Header.Set(pop.HeaderSignature,
		pop.Sign(app.priv, method, req.URL.RequestURI(), app.id, ts, nonce, body))
	return req
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
