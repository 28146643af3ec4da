package providers

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

/* Loader holds provider configuration read from providers.yaml
 * Provides in-memory lookup for the ingest path
 */

// File represents the structure of providers.yaml
type File struct {
	Providers []Config `yaml:"providers"`
}

// Loader holds the loaded providers
type Loader struct {
	mu        sync.RWMutex
	providers map[string]Config
}

// NewLoader creates a new provider loader
func NewLoader() *Loader {
	return &Loader{
		providers: make(map[string]Config),
	}
}

// Load reads and parses a providers.yaml file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading providers file: %w", err)
	}
	return l.Parse(data)
}

// Parse validates and adds every provider in the YAML document
func (l *Loader) Parse(data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing providers YAML: %w", err)
	}

	for _, c := range file.Providers {
		if err := l.Add(c); err != nil {
			return err
		}
	}
	return nil
}

// Add validates and registers a single provider configuration
func (l *Loader) Add(c Config) error {
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating provider: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.providers[c.Provider] = c
	return nil
}

// Config returns the configuration of an active provider
func (l *Loader) Config(ctx context.Context, provider string) (Config, error) {
	c, ok := l.Get(provider)
	if !ok || !c.IsActive() {
		return Config{}, fmt.Errorf("%w: %s", ErrNotFound, provider)
	}
	return c, nil
}

// Get retrieves a provider by name
func (l *Loader) Get(provider string) (Config, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.providers[strings.ToLower(provider)]
	return c, ok
}

// List returns all loaded providers sorted by name
func (l *Loader) List() []Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Config, 0, len(l.providers))
	for _, c := range l.providers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Configs returns all loaded providers; it satisfies the same listing contract as the postgres store
func (l *Loader) Configs(ctx context.Context) ([]Config, error) {
	return l.List(), nil
}
