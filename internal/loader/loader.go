package loader

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/samvad-hq/samvad-list-loader/internal/decode"
	"github.com/samvad-hq/samvad-list-loader/internal/domain"
	"github.com/samvad-hq/samvad-list-loader/internal/fetcher"
	"github.com/samvad-hq/samvad-list-loader/internal/logger"
)

// Fetcher issues one asynchronous GET and reports the outcome exactly once.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, headers map[string]string, done fetcher.Callback)
}

// Observer receives load results. It runs on the fetch goroutine; calls are
// serialized and arrive in issue order.
type Observer func(domain.LoadResult)

// RequestState is a snapshot of the loader's bookkeeping.
type RequestState struct {
	InFlight  bool
	Latest    uint64
	Delivered uint64
	Closed    bool
}

// ListLoader drives a Fetcher for a single endpoint. A newer Load supersedes
// any load still in flight: the older fetch is cancelled and its response,
// should one still arrive, is dropped.
type ListLoader struct {
	fetcher  Fetcher
	endpoint string
	headers  map[string]string
	decode   decode.Func
	name     string
	log      logger.Logger

	mu        sync.Mutex
	observer  Observer
	latest    uint64
	delivered uint64
	inFlight  bool
	cancel    context.CancelFunc
	closed    bool

	// deliverMu serializes observer calls.
	deliverMu sync.Mutex
}

// Option configures a ListLoader.
type Option func(*ListLoader)

// WithHeaders sets per-request headers sent with every fetch.
func WithHeaders(headers map[string]string) Option {
	return func(l *ListLoader) {
		if len(headers) == 0 {
			return
		}
		l.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			l.headers[k] = v
		}
	}
}

// WithDecoder sets the payload decoder. The default is decode.Auto.
func WithDecoder(fn decode.Func) Option {
	return func(l *ListLoader) {
		if fn != nil {
			l.decode = fn
		}
	}
}

// WithObserver registers the observer at construction time.
func WithObserver(obs Observer) Option {
	return func(l *ListLoader) { l.observer = obs }
}

// WithLogger sets the logger used for discard and delivery diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(l *ListLoader) { l.log = logger.Ensure(log) }
}

// WithName labels log lines, usually with the source id.
func WithName(name string) Option {
	return func(l *ListLoader) { l.name = strings.TrimSpace(name) }
}

// New builds a loader for endpoint.
func New(f Fetcher, endpoint string, opts ...Option) (*ListLoader, error) {
	if f == nil {
		return nil, errors.New("fetcher must not be nil")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint must not be empty")
	}

	l := &ListLoader{
		fetcher:  f,
		endpoint: endpoint,
		decode:   decode.Auto,
		log:      logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.name == "" {
		l.name = endpoint
	}
	return l, nil
}

// SetObserver replaces the observer. Passing nil stops delivery without
// closing the loader.
func (l *ListLoader) SetObserver(obs Observer) {
	l.mu.Lock()
	l.observer = obs
	l.mu.Unlock()
}

// Endpoint returns the endpoint the loader fetches.
func (l *ListLoader) Endpoint() string { return l.endpoint }

// Load issues a new request and returns its sequence number. It never blocks
// on I/O. After Close it does nothing and returns 0.
func (l *ListLoader) Load(ctx context.Context) uint64 {
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.latest++
	seq := l.latest
	reqCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.inFlight = true
	l.mu.Unlock()

	l.log.DebugObj("list load issued", "load_meta", map[string]any{
		"loader": l.name,
		"seq":    seq,
	})

	l.fetcher.Fetch(reqCtx, l.endpoint, l.headers, func(resp fetcher.Response) {
		l.complete(seq, cancel, resp)
	})
	return seq
}

// Close tears the loader down: the in-flight fetch is cancelled and every
// later delivery or Load becomes a no-op. Safe to call more than once.
func (l *ListLoader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.inFlight = false
	l.observer = nil
}

// InFlight reports whether the latest load has not been delivered yet.
func (l *ListLoader) InFlight() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Latest returns the most recently issued sequence number.
func (l *ListLoader) Latest() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest
}

// State returns a snapshot of the request bookkeeping.
func (l *ListLoader) State() RequestState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return RequestState{
		InFlight:  l.inFlight,
		Latest:    l.latest,
		Delivered: l.delivered,
		Closed:    l.closed,
	}
}

func (l *ListLoader) complete(seq uint64, cancel context.CancelFunc, resp fetcher.Response) {
	defer cancel()

	if !l.isCurrent(seq) {
		l.discard(seq, "superseded")
		return
	}

	result := l.resolve(resp)
	result.Seq = seq

	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	switch {
	case l.closed:
		l.mu.Unlock()
		l.discard(seq, "closed")
		return
	case seq != l.latest || seq <= l.delivered:
		l.mu.Unlock()
		l.discard(seq, "superseded")
		return
	}
	l.delivered = seq
	l.inFlight = false
	l.cancel = nil
	obs := l.observer
	l.mu.Unlock()

	l.log.DebugObj("list load delivered", "load_meta", map[string]any{
		"loader":  l.name,
		"seq":     seq,
		"ok":      result.OK(),
		"records": len(result.Records),
	})
	if obs != nil {
		obs(result)
	}
}

func (l *ListLoader) isCurrent(seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed && seq == l.latest
}

func (l *ListLoader) resolve(resp fetcher.Response) domain.LoadResult {
	if !resp.OK() {
		return domain.LoadResult{Err: resp.Err}
	}
	records, err := l.decode(resp.Body)
	if err != nil {
		return domain.FailureFrom(err)
	}
	return domain.Success(records)
}

func (l *ListLoader) discard(seq uint64, reason string) {
	l.log.DebugObj("list load discarded", "load_meta", map[string]any{
		"loader": l.name,
		"seq":    seq,
		"reason": reason,
	})
}
