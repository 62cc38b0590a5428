package sources

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-list-loader/pkg/registryfile"
)

// Package sources loads the list endpoints the runtime keeps loaded.

const defaultShape = "auto"

// Source is one remote list endpoint.
type Source struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	Path           string            `json:"path" yaml:"path"`
	URL            string            `json:"url" yaml:"url"`
	Shape          string            `json:"shape" yaml:"shape"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	RefreshSeconds int               `json:"refresh_seconds" yaml:"refresh_seconds"`
}

// Target returns the absolute URL when set, otherwise the path relative to
// the configured base URL.
func (s Source) Target() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

// RefreshInterval returns the per-source refresh cadence, or fallback when
// the source does not override it.
func (s Source) RefreshInterval(fallback time.Duration) time.Duration {
	if s.RefreshSeconds <= 0 {
		return fallback
	}
	return time.Duration(s.RefreshSeconds) * time.Second
}

type fileRegistry struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

// Registry holds the validated sources in file order.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	idx     map[string]Source
}

// LoadRegistry loads the sources registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	file, err := registryfile.Decode[fileRegistry](path, "sources")
	if err != nil {
		return nil, err
	}
	return NewRegistry(file.Sources)
}

// NewRegistry validates and indexes the given sources.
func NewRegistry(list []Source) (*Registry, error) {
	if len(list) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	reg := &Registry{
		sources: make([]Source, len(list)),
		idx:     make(map[string]Source, len(list)),
	}
	for i := range list {
		s := sanitizeSource(list[i])
		if err := validateSource(s); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, exists := reg.idx[s.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", s.ID)
		}
		reg.sources[i] = s
		reg.idx[s.ID] = s
	}
	return reg, nil
}

func sanitizeSource(s Source) Source {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Path = strings.TrimSpace(s.Path)
	s.URL = strings.TrimSpace(s.URL)
	s.Shape = strings.ToLower(strings.TrimSpace(s.Shape))
	if s.Shape == "" {
		s.Shape = defaultShape
	}
	s.Headers = registryfile.CleanHeaders(s.Headers)
	if s.RefreshSeconds < 0 {
		s.RefreshSeconds = 0
	}
	return s
}

func validateSource(s Source) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required for source %q", s.ID)
	}
	if s.Path == "" && s.URL == "" {
		return fmt.Errorf("path or url is required for source %q", s.ID)
	}
	if s.Path != "" && s.URL != "" {
		return fmt.Errorf("source %q sets both path and url", s.ID)
	}
	return nil
}

// All returns a copy of the sources in file order.
func (r *Registry) All() []Source {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// ByID returns the source with the given id.
func (r *Registry) ByID(id string) (Source, bool) {
	if r == nil {
		return Source{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Source{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.idx[id]
	return s, ok
}

// IDs lists source ids in file order.
func (r *Registry) IDs() []string {
	all := r.All()
	ids := make([]string, 0, len(all))
	for _, s := range all {
		ids = append(ids, s.ID)
	}
	return ids
}
