// ABOUTME: Tests for the action router dispatch pipeline.
// ABOUTME: Covers each rejection stage, credential handling, and provider error wrapping.

package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hearth-gateway/internal/store"
	"github.com/2389/hearth-gateway/internal/vault"
)

// fakeAuthorizer grants a fixed decision.
type fakeAuthorizer struct {
	allow bool
	err   error
}

func (f *fakeAuthorizer) IsAuthorized(_ context.Context, _, _, _ string) (bool, error) {
	return f.allow, f.err
}

// fakeSecrets serves one secret per resource id.
type fakeSecrets map[string]*store.ResourceSecret

func (f fakeSecrets) ResolveResourceSecret(_ context.Context, resourceID, _ string) (*store.ResourceSecret, error) {
	secret, ok := f[resourceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return secret, nil
}

// fakeVault returns fixed plaintext or an error.
type fakeVault struct {
	plaintext []byte
	err       error
}

func (f *fakeVault) Decrypt(_, _ []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.plaintext, nil
}

// capturingHandler records the credential and payload it was invoked with.
type capturingHandler struct {
	credential string
	payload    json.RawMessage
	result     *ProviderResult
	err        error
}

func (c *capturingHandler) handle(_ context.Context, credential, _ string, payload json.RawMessage) (*ProviderResult, error) {
	c.credential = credential
	c.payload = payload
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

// testRouter wires a router around a single plugin and fakes.
func testRouter(t *testing.T, plugin *Plugin, auth *fakeAuthorizer, secrets fakeSecrets, v Decrypter) *Router {
	t.Helper()
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(plugin))
	return NewRouter(RouterConfig{
		Registry: registry,
		Ledger:   auth,
		Secrets:  secrets,
		Vault:    v,
		Timeout:  5 * time.Second,
	})
}

func activeSecret() *store.ResourceSecret {
	return &store.ResourceSecret{
		ID:           "sec-1",
		ResourceID:   "llm:groq",
		EncryptedKey: []byte{0x01},
		IV:           []byte{0x02},
		Status:       store.SecretStatusActive,
	}
}

func TestDispatch_Success(t *testing.T) {
	handler := &capturingHandler{result: &ProviderResult{Status: 200, Body: json.RawMessage(`{"ok":true}`)}}
	plugin := &Plugin{ID: "llm:groq", Actions: []string{"chat.completions"}, Handler: handler.handle}
	router := testRouter(t, plugin,
		&fakeAuthorizer{allow: true},
		fakeSecrets{"llm:groq": activeSecret()},
		&fakeVault{plaintext: []byte("gsk_secret")},
	)

	payload := json.RawMessage(`{"model":"x"}`)
	result, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "chat.completions", payload)
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.JSONEq(t, `{"ok":true}`, string(result.Body))
	assert.Equal(t, "gsk_secret", handler.credential, "handler receives the decrypted credential")
	assert.Equal(t, payload, handler.payload)
}

func TestDispatch_UnknownResource(t *testing.T) {
	plugin := &Plugin{ID: "llm:groq", Actions: []string{"chat.completions"}, Handler: noopHandler}
	router := testRouter(t, plugin, &fakeAuthorizer{allow: true}, fakeSecrets{}, &fakeVault{})

	_, err := router.Dispatch(context.Background(), "app-1", "llm:openai", "chat.completions", nil)
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestDispatch_UnsupportedAction(t *testing.T) {
	plugin := &Plugin{ID: "llm:groq", Actions: []string{"chat.completions"}, Handler: noopHandler}
	router := testRouter(t, plugin, &fakeAuthorizer{allow: true}, fakeSecrets{}, &fakeVault{})

	_, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "emails.send", nil)
	assert.ErrorIs(t, err, ErrUnsupportedAction)
}

func TestDispatch_Forbidden(t *testing.T) {
	handler := &capturingHandler{}
	plugin := &Plugin{ID: "llm:groq", Actions: []string{"chat.completions"}, Handler: handler.handle}
	router := testRouter(t, plugin, &fakeAuthorizer{allow: false},
		fakeSecrets{"llm:groq": activeSecret()}, &fakeVault{plaintext: []byte("s")})

	_, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "chat.completions", nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, handler.credential, "handler must not run for a forbidden call")
}

func TestDispatch_EnforcementBeforeCredential(t *testing.T) {
	handler := &capturingHandler{}
	plugin := &Plugin{
		ID:          "llm:groq",
		Actions:     []string{"chat.completions"},
		Enforcement: &Enforcement{AllowedModels: []string{"m1"}},
		Handler:     handler.handle,
	}
	secrets := fakeSecrets{} // no secret seeded at all
	router := testRouter(t, plugin, &fakeAuthorizer{allow: true}, secrets, &fakeVault{})

	// Enforcement fires before credential resolution, so the missing
	// secret is never observed
	_, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "chat.completions",
		json.RawMessage(`{"model":"m2"}`))
	assert.ErrorIs(t, err, ErrEnforcement)
	assert.NotErrorIs(t, err, ErrCredentialUnavailable)
}

func TestDispatch_CredentialUnavailable(t *testing.T) {
	plugin := &Plugin{ID: "llm:groq", Actions: []string{"chat.completions"}, Handler: noopHandler}

	t.Run("missing secret", func(t *testing.T) {
		router := testRouter(t, plugin, &fakeAuthorizer{allow: true}, fakeSecrets{}, &fakeVault{})
		_, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "chat.completions", nil)
		assert.ErrorIs(t, err, ErrCredentialUnavailable)
	})

	t.Run("disabled secret", func(t *testing.T) {
		secret := activeSecret()
		secret.Status = store.SecretStatusDisabled
		router := testRouter(t, plugin, &fakeAuthorizer{allow: true},
			fakeSecrets{"llm:groq": secret}, &fakeVault{plaintext: []byte("s")})
		_, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "chat.completions", nil)
		assert.ErrorIs(t, err, ErrCredentialUnavailable)
	})

	t.Run("vault key mismatch stays distinguishable", func(t *testing.T) {
		router := testRouter(t, plugin, &fakeAuthorizer{allow: true},
			fakeSecrets{"llm:groq": activeSecret()}, &fakeVault{err: vault.ErrKeyMismatch})
		_, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "chat.completions", nil)
		assert.ErrorIs(t, err, ErrCredentialUnavailable)
		assert.ErrorIs(t, err, vault.ErrKeyMismatch)
	})
}

func TestDispatch_WrapsHandlerFailure(t *testing.T) {
	handler := &capturingHandler{err: errors.New("connection refused")}
	plugin := &Plugin{ID: "llm:groq", Actions: []string{"chat.completions"}, Handler: handler.handle}
	router := testRouter(t, plugin, &fakeAuthorizer{allow: true},
		fakeSecrets{"llm:groq": activeSecret()}, &fakeVault{plaintext: []byte("s")})

	_, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "chat.completions", nil)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "llm:groq", provErr.Provider)
	assert.Contains(t, provErr.Message, "connection refused")
}

func TestDispatch_PreservesProviderError(t *testing.T) {
	handler := &capturingHandler{err: &ProviderError{Status: 429, Message: "rate limited"}}
	plugin := &Plugin{ID: "llm:groq", Actions: []string{"chat.completions"}, Handler: handler.handle}
	router := testRouter(t, plugin, &fakeAuthorizer{allow: true},
		fakeSecrets{"llm:groq": activeSecret()}, &fakeVault{plaintext: []byte("s")})

	_, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "chat.completions", nil)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 429, provErr.Status)
	assert.Equal(t, "rate limited", provErr.Message)
	assert.Equal(t, "llm:groq", provErr.Provider, "router fills in the provider id")
}

func TestDispatch_HandlerTimeout(t *testing.T) {
	slow := func(ctx context.Context, _, _ string, _ json.RawMessage) (*ProviderResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	plugin := &Plugin{ID: "llm:groq", Actions: []string{"chat.completions"}, Handler: slow}

	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(plugin))
	router := NewRouter(RouterConfig{
		Registry: registry,
		Ledger:   &fakeAuthorizer{allow: true},
		Secrets:  fakeSecrets{"llm:groq": activeSecret()},
		Vault:    &fakeVault{plaintext: []byte("s")},
		Timeout:  10 * time.Millisecond,
	})

	_, err := router.Dispatch(context.Background(), "app-1", "llm:groq", "chat.completions", nil)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Contains(t, provErr.Message, "context deadline exceeded")
}
