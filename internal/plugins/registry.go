// ABOUTME: Registry of installed provider plugins keyed by resource id.
// ABOUTME: Built once at startup from the static manifest; read-only afterwards.

package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrPluginRegistered indicates a plugin with the same resource id already exists.
var ErrPluginRegistered = errors.New("plugin already registered")

// ErrInvalidPlugin indicates a plugin descriptor failed validation.
var ErrInvalidPlugin = errors.New("invalid plugin descriptor")

// Registry holds the fixed table of resource id -> plugin descriptor.
// Registration happens only during startup; lookups dominate afterwards.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		plugins: make(map[string]*Plugin),
		logger:  logger.With("component", "plugins"),
	}
}

// Register validates and stores a plugin descriptor.
// Returns ErrPluginRegistered if the resource id is taken.
func (r *Registry) Register(p *Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: nil plugin", ErrInvalidPlugin)
	}
	resourceType, provider, ok := SplitResourceID(p.ID)
	if !ok {
		return fmt.Errorf("%w: id %q is not type:provider", ErrInvalidPlugin, p.ID)
	}
	if len(p.Actions) == 0 {
		return fmt.Errorf("%w: plugin %q advertises no actions", ErrInvalidPlugin, p.ID)
	}
	if p.Handler == nil {
		return fmt.Errorf("%w: plugin %q has no handler", ErrInvalidPlugin, p.ID)
	}
	if p.ResourceType == "" {
		p.ResourceType = resourceType
	}
	if p.Provider == "" {
		p.Provider = provider
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrPluginRegistered, p.ID)
	}
	r.plugins[p.ID] = p

	r.logger.Info("plugin registered",
		"resource_id", p.ID,
		"actions", len(p.Actions),
		"total_plugins", len(r.plugins),
	)
	return nil
}

// Get retrieves a plugin by resource id, or nil if not registered.
func (r *Registry) Get(resourceID string) *Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins[resourceID]
}

// List returns all registered plugins ordered by resource id.
func (r *Registry) List() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// ListModels returns the default model list for an LLM-type resource.
// Returns nil for unknown resources or resources without models.
func (r *Registry) ListModels(resourceID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[resourceID]
	if !ok {
		return nil
	}
	models := make([]string, len(p.DefaultModels))
	copy(models, p.DefaultModels)
	return models
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}
