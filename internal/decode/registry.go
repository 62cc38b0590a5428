package decode

import (
	"fmt"
	"strings"
	"sync"

	"github.com/samvad-hq/samvad-list-loader/internal/domain"
)

// Shape names accepted in source files. The concrete shapes are the record
// shapes; auto picks one by the payload's top level.
const (
	ShapeUsers    = string(domain.ShapeUsers)
	ShapeEnvelope = string(domain.ShapeEnvelope)
	ShapeAuto     = "auto"
)

// Registry resolves decoders by shape name.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry builds a registry with the given decoders.
func NewRegistry(funcs map[string]Func) *Registry {
	r := &Registry{funcs: make(map[string]Func, len(funcs))}
	for shape, fn := range funcs {
		r.Register(shape, fn)
	}
	return r
}

// DefaultRegistry wires up the known payload shapes.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Func{
		ShapeUsers:    Users,
		ShapeEnvelope: Envelope,
		ShapeAuto:     Auto,
	})
}

// Register associates a decoder with a shape name.
func (r *Registry) Register(shape string, fn Func) {
	key := normalizeShape(shape)
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.funcs[key] = fn
	r.mu.Unlock()
}

// For returns the decoder for shape. An empty shape means auto.
func (r *Registry) For(shape string) (Func, error) {
	if r == nil {
		return nil, fmt.Errorf("decoder registry is nil")
	}
	key := normalizeShape(shape)

	r.mu.RLock()
	fn, ok := r.funcs[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder registered for shape %q", shape)
	}
	return fn, nil
}

func normalizeShape(shape string) string {
	key := strings.ToLower(strings.TrimSpace(shape))
	if key == "" {
		return ShapeAuto
	}
	return key
}
