// ABOUTME: Static TOML plugin manifest loading and registry construction
// ABOUTME: Each manifest entry is bound to a builtin handler by resource type

package plugins

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
)

// Manifest is the on-disk plugin configuration.
type Manifest struct {
	Plugins []ManifestEntry `toml:"plugins"`
}

// ManifestEntry describes one provider integration in the manifest.
type ManifestEntry struct {
	ID            string       `toml:"id"`
	Name          string       `toml:"name"`
	Actions       []string     `toml:"actions"`
	DefaultModels []string     `toml:"default_models"`
	BaseURL       string       `toml:"base_url"`
	Enforcement   *Enforcement `toml:"enforcement"`
}

// LoadManifest parses a TOML plugin manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	var manifest Manifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return nil, fmt.Errorf("parsing plugin manifest: %w", err)
	}
	if len(manifest.Plugins) == 0 {
		return nil, fmt.Errorf("plugin manifest %s declares no plugins", path)
	}
	return &manifest, nil
}

// BuildRegistry constructs a Registry from a manifest, binding each
// entry to the builtin handler for its resource type. Unknown resource
// types are a configuration error.
func BuildRegistry(manifest *Manifest, logger *slog.Logger) (*Registry, error) {
	registry := NewRegistry(logger)

	for _, entry := range manifest.Plugins {
		resourceType, provider, ok := SplitResourceID(entry.ID)
		if !ok {
			return nil, fmt.Errorf("%w: manifest id %q is not type:provider", ErrInvalidPlugin, entry.ID)
		}

		handler, err := builtinHandler(resourceType, entry.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", entry.ID, err)
		}

		plugin := &Plugin{
			ID:            entry.ID,
			Name:          entry.Name,
			ResourceType:  resourceType,
			Provider:      provider,
			Actions:       entry.Actions,
			DefaultModels: entry.DefaultModels,
			BaseURL:       entry.BaseURL,
			Enforcement:   entry.Enforcement,
			Handler:       handler,
		}
		if err := registry.Register(plugin); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
