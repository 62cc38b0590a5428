package view

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-list-loader/internal/domain"
	"github.com/samvad-hq/samvad-list-loader/internal/logger"
)

// State is what a panel currently shows.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateEmpty   State = "empty"
	StateError   State = "error"
)

// Loader is the part of a list loader the board drives.
type Loader interface {
	Load(ctx context.Context) uint64
	Close()
}

// Panel is the rendered view of one source.
type Panel struct {
	SourceID  string                 `json:"source_id"`
	Name      string                 `json:"name"`
	State     State                  `json:"state"`
	Loading   bool                   `json:"loading"`
	Seq       uint64                 `json:"seq"`
	Items     []domain.DisplayFields `json:"items"`
	ErrorKind string                 `json:"error_kind,omitempty"`
	Message   string                 `json:"message,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type entry struct {
	panel  Panel
	loader Loader
}

// Board owns the records delivered for every attached source.
type Board struct {
	ctx    context.Context
	mu     sync.RWMutex
	panels map[string]*entry
	order  []string
	log    logger.Logger
	now    func() time.Time
}

// NewBoard builds an empty board. Loads it triggers run under ctx.
func NewBoard(ctx context.Context, log logger.Logger) *Board {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Board{
		ctx:    ctx,
		panels: make(map[string]*entry),
		log:    logger.Ensure(log),
		now:    time.Now,
	}
}

// Attach registers a source panel driven by l.
func (b *Board) Attach(sourceID, name string, l Loader) error {
	if sourceID == "" {
		return fmt.Errorf("source id is empty")
	}
	if l == nil {
		return fmt.Errorf("loader for %q is nil", sourceID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.panels[sourceID]; exists {
		return fmt.Errorf("source %q already attached", sourceID)
	}
	b.panels[sourceID] = &entry{
		panel: Panel{
			SourceID:  sourceID,
			Name:      name,
			State:     StateLoading,
			Items:     []domain.DisplayFields{},
			UpdatedAt: b.now().UTC(),
		},
		loader: l,
	}
	b.order = append(b.order, sourceID)
	return nil
}

// Observe returns the observer that renders results for sourceID.
func (b *Board) Observe(sourceID string) func(domain.LoadResult) {
	return func(res domain.LoadResult) { b.apply(sourceID, res) }
}

// apply replaces the panel contents. A failure always clears the items.
func (b *Board) apply(sourceID string, res domain.LoadResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.panels[sourceID]
	if !ok {
		return
	}
	if res.Seq != 0 && res.Seq < e.panel.Seq {
		return
	}

	p := e.panel
	p.Seq = res.Seq
	p.Loading = false
	p.UpdatedAt = b.now().UTC()
	if res.OK() {
		p.Items = domain.DisplayAll(res.Records)
		p.ErrorKind, p.Message = "", ""
		p.State = StateReady
		if len(p.Items) == 0 {
			p.State = StateEmpty
			p.Message = "nothing to show"
		}
	} else {
		p.Items = []domain.DisplayFields{}
		p.State = StateError
		p.ErrorKind = string(res.Err.Kind)
		p.Message = res.Err.Message
	}
	e.panel = p
}

// Refresh asks the source's loader for a new load and marks the panel busy.
func (b *Board) Refresh(sourceID string) (uint64, error) {
	b.mu.Lock()
	e, ok := b.panels[sourceID]
	if !ok {
		b.mu.Unlock()
		return 0, fmt.Errorf("unknown source %q", sourceID)
	}
	e.panel.Loading = true
	l := e.loader
	b.mu.Unlock()

	// Load only issues the fetch; the result arrives later on the fetch
	// goroutine and apply takes b.mu, so the lock is not held here.
	seq := l.Load(b.ctx)
	if seq == 0 {
		// A closed loader never delivers, so the panel must not stay busy.
		b.mu.Lock()
		if cur, ok := b.panels[sourceID]; ok && cur == e {
			e.panel.Loading = false
		}
		b.mu.Unlock()
	}
	return seq, nil
}

// RefreshAll issues a load for every attached source.
func (b *Board) RefreshAll() {
	for _, id := range b.IDs() {
		if _, err := b.Refresh(id); err != nil {
			b.log.WarnObj("panel refresh failed", "panel_error", map[string]any{
				"source_id": id,
				"error":     err.Error(),
			})
		}
	}
}

// Detach tears a panel down. Its loader is closed, so late results never
// reach the board.
func (b *Board) Detach(sourceID string) bool {
	b.mu.Lock()
	e, ok := b.panels[sourceID]
	if ok {
		delete(b.panels, sourceID)
		for i, id := range b.order {
			if id == sourceID {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
	b.mu.Unlock()

	if ok {
		e.loader.Close()
	}
	return ok
}

// DetachAll tears down every panel.
func (b *Board) DetachAll() {
	for _, id := range b.IDs() {
		b.Detach(id)
	}
}

// Panel returns a copy of one panel.
func (b *Board) Panel(sourceID string) (Panel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.panels[sourceID]
	if !ok {
		return Panel{}, false
	}
	return copyPanel(e.panel), true
}

// Panels returns copies of all panels in attach order.
func (b *Board) Panels() []Panel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Panel, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, copyPanel(b.panels[id].panel))
	}
	return out
}

// IDs lists attached source ids in attach order.
func (b *Board) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Counts summarises panel states, mostly for logging.
func (b *Board) Counts() map[State]int {
	counts := make(map[State]int)
	for _, p := range b.Panels() {
		counts[p.State]++
	}
	return counts
}

func copyPanel(p Panel) Panel {
	items := make([]domain.DisplayFields, len(p.Items))
	copy(items, p.Items)
	p.Items = items
	return p
}
