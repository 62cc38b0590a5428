package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-list-loader/internal/config"
	"github.com/samvad-hq/samvad-list-loader/internal/decode"
	"github.com/samvad-hq/samvad-list-loader/internal/domain"
	"github.com/samvad-hq/samvad-list-loader/internal/fetcher"
	"github.com/samvad-hq/samvad-list-loader/internal/loader"
	"github.com/samvad-hq/samvad-list-loader/internal/logger"
	"github.com/samvad-hq/samvad-list-loader/internal/view"
	"github.com/samvad-hq/samvad-list-loader/pkg/httpclient"
	"github.com/samvad-hq/samvad-list-loader/pkg/publishers"
	"github.com/samvad-hq/samvad-list-loader/pkg/sources"
)

const shutdownTimeout = 5 * time.Second

// Runner keeps every configured list loaded. It owns one loader per source,
// the board that renders their results, and the publishers that receive
// each delivered result.
type Runner struct {
	cfg        *config.Config
	sources    []sources.Source
	board      *view.Board
	server     *view.Server
	fanout     *publishers.Fanout
	loaders    map[string]*loader.ListLoader
	fallback   time.Duration
	publishCtx context.Context
	log        logger.Logger
}

// Option customises runner construction.
type Option func(*options)

type options struct {
	client httpclient.Client
}

// WithHTTPClient overrides the HTTP client the fetcher uses.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *options) { o.client = c }
}

// NewRunner builds the runtime from config files.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sourceReg, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceReg.IDs()),
		"ids":   sourceReg.IDs(),
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	f := fetcher.New(o.client, fetcher.SettingsFromConfig(cfg), log)
	decoders := decode.DefaultRegistry()
	board := view.NewBoard(ctx, log)

	r := &Runner{
		cfg:        cfg,
		sources:    sourceReg.All(),
		board:      board,
		fanout:     fanout,
		loaders:    make(map[string]*loader.ListLoader),
		fallback:   refreshFallback(cfg.RefreshInterval),
		publishCtx: ctx,
		log:        log,
	}

	for _, src := range r.sources {
		if err := r.attach(f, decoders, src); err != nil {
			board.DetachAll()
			_ = fanout.Close()
			return nil, err
		}
	}
	r.server = view.NewServer(board, log)
	return r, nil
}

func refreshFallback(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.InfoObj("no publishers file configured; results stay local", "publishers_file", "")
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	clients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(clients), nil
}

func (r *Runner) attach(f *fetcher.Fetcher, decoders *decode.Registry, src sources.Source) error {
	endpoint, err := f.Settings().Resolve(src.Target())
	if err != nil {
		return fmt.Errorf("source %q: %w", src.ID, err)
	}
	dec, err := decoders.For(src.Shape)
	if err != nil {
		return fmt.Errorf("source %q: %w", src.ID, err)
	}

	render := r.board.Observe(src.ID)
	l, err := loader.New(f, endpoint,
		loader.WithName(src.ID),
		loader.WithHeaders(src.Headers),
		loader.WithDecoder(dec),
		loader.WithLogger(r.log),
		loader.WithObserver(func(res domain.LoadResult) {
			render(res)
			r.publish(src, res)
		}),
	)
	if err != nil {
		return fmt.Errorf("source %q: %w", src.ID, err)
	}
	if err := r.board.Attach(src.ID, src.Name, l); err != nil {
		l.Close()
		return err
	}
	r.loaders[src.ID] = l
	return nil
}

// publish forwards a delivered result downstream. It runs inside the
// loader's serialized delivery, so events leave in issue order.
func (r *Runner) publish(src sources.Source, res domain.LoadResult) {
	if !res.OK() {
		r.log.WarnObj("list load failed", "load_error", map[string]any{
			"source_id": src.ID,
			"seq":       res.Seq,
			"kind":      res.Err.Kind,
			"message":   res.Err.Message,
		})
	}
	if r.fanout.Size() == 0 {
		return
	}
	evt := publishers.NewEvent(src.ID, src.Name, res)
	sent, err := r.fanout.Publish(r.publishCtx, evt)
	if err != nil {
		r.log.ErrorObj("publish load event failed", "publish_error", map[string]any{
			"source_id": src.ID,
			"load_id":   evt.LoadID,
			"delivered": sent,
			"error":     err.Error(),
		})
	}
}

// Board exposes the presentation board, mostly for tests.
func (r *Runner) Board() *view.Board { return r.board }

// LoadState reports the request bookkeeping of one source's loader.
func (r *Runner) LoadState(sourceID string) (loader.RequestState, bool) {
	l, ok := r.loaders[sourceID]
	if !ok {
		return loader.RequestState{}, false
	}
	return l.State(), true
}

// Run issues the initial loads, serves the board, and refreshes every source
// on its own cadence until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.board == nil {
		return fmt.Errorf("runner is not initialized")
	}
	defer r.teardown()

	r.log.InfoObj("list loader starting", "runner_state", map[string]any{
		"sources_count":    len(r.sources),
		"publishers_count": r.fanout.Size(),
		"listen_addr":      r.cfg.ListenAddr,
		"refresh_interval": r.fallback.String(),
	})

	r.board.RefreshAll()

	serverErr := make(chan error, 1)
	if r.cfg.ListenAddr != "" {
		go func() { serverErr <- r.server.Start(r.cfg.ListenAddr) }()
	}

	loopCtx, stopLoops := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, src := range r.sources {
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()
			r.refreshLoop(loopCtx, src)
		}(src)
	}

	var runErr error
	select {
	case <-ctx.Done():
		r.log.InfoObj("list loader exiting", "reason", ctx.Err().Error())
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("serve board: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		r.log.ErrorObj("board server shutdown failed", "error", err.Error())
	}
	stopLoops()
	wg.Wait()
	return runErr
}

func (r *Runner) refreshLoop(ctx context.Context, src sources.Source) {
	ticker := time.NewTicker(src.RefreshInterval(r.fallback))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.board.Refresh(src.ID); err != nil {
				r.log.InfoObj("refresh loop stopped", "source_id", src.ID)
				return
			}
		}
	}
}

func (r *Runner) teardown() {
	r.board.DetachAll()
	if err := r.fanout.Close(); err != nil {
		r.log.ErrorObj("publisher close failed", "error", err.Error())
	}
	r.log.InfoObj("list loader stopped", "panels", r.board.Counts())
}
