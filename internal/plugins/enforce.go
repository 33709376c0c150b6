// ABOUTME: Enforcement schema evaluation for provider-specific payload constraints
// ABOUTME: Runs before any credential is decrypted; violations never reach a provider

package plugins

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEnforcement is returned when a payload violates the plugin's
// declared constraints.
var ErrEnforcement = errors.New("payload violates enforcement constraints")

// Enforcement declares the provider-specific constraints applied to a
// request payload before the credential is touched. Unset fields are
// unconstrained.
type Enforcement struct {
	// AllowedModels restricts the payload "model" field (LLM resources).
	AllowedModels []string `toml:"allowed_models" json:"allowed_models,omitempty"`
	// AllowedDomains restricts every recipient in "to"/"cc"/"bcc" to
	// the listed domains (mail resources).
	AllowedDomains []string `toml:"allowed_domains" json:"allowed_domains,omitempty"`
	// MaxBodyBytes caps the raw payload size.
	MaxBodyBytes int64 `toml:"max_body_bytes" json:"max_body_bytes,omitempty"`
}

// enforcedPayload is the subset of payload fields enforcement inspects.
type enforcedPayload struct {
	Model string          `json:"model"`
	To    recipientList   `json:"to"`
	CC    recipientList   `json:"cc"`
	BCC   recipientList   `json:"bcc"`
	Raw   json.RawMessage `json:"-"`
}

// recipientList accepts either a single address or an array of addresses.
type recipientList []string

func (r *recipientList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = recipientList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*r = recipientList(many)
	return nil
}

// Check evaluates the payload against the constraints.
// A nil Enforcement allows everything.
func (e *Enforcement) Check(payload []byte) error {
	if e == nil {
		return nil
	}

	if e.MaxBodyBytes > 0 && int64(len(payload)) > e.MaxBodyBytes {
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrEnforcement, len(payload), e.MaxBodyBytes)
	}

	if len(e.AllowedModels) == 0 && len(e.AllowedDomains) == 0 {
		return nil
	}

	var parsed enforcedPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return fmt.Errorf("%w: payload is not valid JSON: %v", ErrEnforcement, err)
		}
	}

	if len(e.AllowedModels) > 0 {
		if parsed.Model == "" {
			return fmt.Errorf("%w: model field is required", ErrEnforcement)
		}
		if !contains(e.AllowedModels, parsed.Model) {
			return fmt.Errorf("%w: model %q is not allowed", ErrEnforcement, parsed.Model)
		}
	}

	if len(e.AllowedDomains) > 0 {
		recipients := append(append(append(recipientList{}, parsed.To...), parsed.CC...), parsed.BCC...)
		if len(recipients) == 0 {
			return fmt.Errorf("%w: at least one recipient is required", ErrEnforcement)
		}
		for _, addr := range recipients {
			if !domainAllowed(addr, e.AllowedDomains) {
				return fmt.Errorf("%w: recipient %q is outside the allowed domains", ErrEnforcement, addr)
			}
		}
	}

	return nil
}

// domainAllowed checks an email address against the domain allow-list.
func domainAllowed(address string, domains []string) bool {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return false
	}
	domain := strings.ToLower(address[at+1:])
	for _, allowed := range domains {
		if domain == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
