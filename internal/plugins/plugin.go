// ABOUTME: Plugin descriptor and provider handler contract for resource integrations
// ABOUTME: A plugin binds one "type:provider" resource id to its actions and enforcement

package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Handler invokes one provider action. credential is the decrypted
// provider secret for the single call; implementations must not retain
// or log it. payload has already passed enforcement checks.
type Handler func(ctx context.Context, credential, action string, payload json.RawMessage) (*ProviderResult, error)

// ProviderResult is the provider's successful response, passed back to
// the calling app unmodified.
type ProviderResult struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// ProviderError preserves a downstream provider failure with enough
// detail for the caller to retry or report. It never carries the
// credential.
type ProviderError struct {
	Provider string // resource id, e.g. "llm:groq"
	Status   int    // provider HTTP status, 0 if the call never completed
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s returned %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s failed: %s", e.Provider, e.Message)
}

// Plugin describes a registered provider integration. Plugins are
// built once at process start from the static manifest and are
// immutable at runtime.
type Plugin struct {
	ID            string // "type:provider", e.g. "llm:groq"
	Name          string
	ResourceType  string // "llm", "mail", ...
	Provider      string
	Actions       []string
	DefaultModels []string // for LLM-type resources
	BaseURL       string   // provider API base URL
	Enforcement   *Enforcement
	Handler       Handler
}

// SupportsAction reports whether the plugin advertises the action.
func (p *Plugin) SupportsAction(action string) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// SplitResourceID splits a "type:provider" resource id.
func SplitResourceID(resourceID string) (resourceType, provider string, ok bool) {
	resourceType, provider, ok = strings.Cut(resourceID, ":")
	if !ok || resourceType == "" || provider == "" {
		return "", "", false
	}
	return resourceType, provider, true
}
