// ABOUTME: Builtin provider handlers for LLM and mail resource types
// ABOUTME: Thin HTTP clients; the credential lives only for the single call

package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBodyBytes caps how much of a provider error body is preserved.
const maxErrorBodyBytes = 2048

// httpClient is shared by all builtin handlers. Per-call deadlines come
// from the router's context, not from here.
var httpClient = &http.Client{
	Timeout: 5 * time.Minute,
}

// builtinHandler returns the handler implementation for a resource type.
func builtinHandler(resourceType, baseURL string) (Handler, error) {
	switch resourceType {
	case "llm":
		return newLLMHandler(baseURL), nil
	case "mail":
		return newMailHandler(baseURL), nil
	default:
		return nil, fmt.Errorf("no builtin handler for resource type %q", resourceType)
	}
}

// newLLMHandler serves OpenAI-compatible LLM providers.
func newLLMHandler(baseURL string) Handler {
	return func(ctx context.Context, credential, action string, payload json.RawMessage) (*ProviderResult, error) {
		switch action {
		case "chat.completions":
			return callProvider(ctx, http.MethodPost, baseURL+"/chat/completions", credential, payload)
		case "models.list":
			return callProvider(ctx, http.MethodGet, baseURL+"/models", credential, nil)
		default:
			return nil, &ProviderError{Message: fmt.Sprintf("llm handler has no action %q", action)}
		}
	}
}

// newMailHandler serves JSON mail-send providers.
func newMailHandler(baseURL string) Handler {
	return func(ctx context.Context, credential, action string, payload json.RawMessage) (*ProviderResult, error) {
		switch action {
		case "emails.send":
			return callProvider(ctx, http.MethodPost, baseURL+"/emails", credential, payload)
		default:
			return nil, &ProviderError{Message: fmt.Sprintf("mail handler has no action %q", action)}
		}
	}
}

// callProvider performs one authenticated provider call. The credential
// is written to the Authorization header and nowhere else.
func callProvider(ctx context.Context, method, url, credential string, payload json.RawMessage) (*ProviderResult, error) {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &ProviderError{Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Message: fmt.Sprintf("calling provider: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Status: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Status:  resp.StatusCode,
			Message: extractProviderMessage(respBody),
		}
	}

	return &ProviderResult{Status: resp.StatusCode, Body: respBody}, nil
}

// extractProviderMessage pulls a human-readable message from a provider
// error body, falling back to the truncated raw body.
func extractProviderMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return string(body)
}
