// ABOUTME: HTTP handler for the resource discovery projection.
// ABOUTME: Lists the resources an authenticated app can see, never any secret material.

package httpapi

import (
	"net/http"

	"github.com/2389/hearth-gateway/internal/pop"
	"github.com/2389/hearth-gateway/internal/store"
)

// DiscoveryResource is one entry in the discovery projection: a
// resource with an active credential and an enabled plugin.
type DiscoveryResource struct {
	ResourceID  string   `json:"resource_id"`
	Name        string   `json:"name"`
	Actions     []string `json:"actions"`
	Models      []string `json:"models,omitempty"`
	Constraints any      `json:"constraints,omitempty"`
}

// DiscoveryResponse is the JSON response for GET /v1/discovery.
type DiscoveryResponse struct {
	PopVersion string              `json:"pop_version"`
	Resources  []DiscoveryResource `json:"resources"`
}

// handleDiscovery handles GET /v1/discovery requests. The projection is
// the intersection of ACTIVE secrets and registered plugins; disabled
// secrets and unconfigured providers are invisible.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.store.ListResourceSecrets(r.Context())
	if err != nil {
		s.logger.Error("listing resource secrets", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	active := make(map[string]bool)
	for _, secret := range secrets {
		if secret.Status == store.SecretStatusActive {
			active[secret.ResourceID] = true
		}
	}

	resources := make([]DiscoveryResource, 0)
	for _, plugin := range s.registry.List() {
		if !active[plugin.ID] {
			continue
		}
		entry := DiscoveryResource{
			ResourceID: plugin.ID,
			Name:       plugin.Name,
			Actions:    plugin.Actions,
			Models:     plugin.DefaultModels,
		}
		if plugin.Enforcement != nil {
			entry.Constraints = plugin.Enforcement
		}
		resources = append(resources, entry)
	}

	s.sendJSON(w, http.StatusOK, DiscoveryResponse{
		PopVersion: pop.ProtocolVersion,
		Resources:  resources,
	})
}
