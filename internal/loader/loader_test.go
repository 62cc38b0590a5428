package loader

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-list-loader/internal/decode"
	"github.com/samvad-hq/samvad-list-loader/internal/domain"
	"github.com/samvad-hq/samvad-list-loader/internal/fetcher"
)

const usersPayload = `[
	{"id": 1, "name": "Leanne Graham", "email": "sincere@april.biz", "address": {"street": "Kulas Light", "city": "Gwenborough"}},
	{"id": 2, "name": "Ervin Howell"}
]`

// pendingFetch is one captured Fetch call waiting for the test to complete it.
type pendingFetch struct {
	ctx  context.Context
	done fetcher.Callback
}

// manualFetcher captures calls so tests decide when and in which order
// responses arrive.
type manualFetcher struct {
	mu    sync.Mutex
	calls []pendingFetch
}

func (m *manualFetcher) Fetch(ctx context.Context, _ string, _ map[string]string, done fetcher.Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, pendingFetch{ctx: ctx, done: done})
}

func (m *manualFetcher) call(t *testing.T, i int) pendingFetch {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.calls) {
		t.Fatalf("fetch %d was never issued (have %d)", i, len(m.calls))
	}
	return m.calls[i]
}

func (m *manualFetcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// staticFetcher answers every call immediately with the same response.
type staticFetcher struct {
	resp fetcher.Response
}

func (s staticFetcher) Fetch(_ context.Context, _ string, _ map[string]string, done fetcher.Callback) {
	done(s.resp)
}

// recorder collects observer deliveries.
type recorder struct {
	mu      sync.Mutex
	results []domain.LoadResult
}

func (r *recorder) observe(res domain.LoadResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) all() []domain.LoadResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LoadResult, len(r.results))
	copy(out, r.results)
	return out
}

func body(s string) fetcher.Response { return fetcher.Response{Body: json.RawMessage(s)} }

func newLoader(t *testing.T, f Fetcher, rec *recorder, opts ...Option) *ListLoader {
	t.Helper()
	opts = append(opts, WithObserver(rec.observe))
	l, err := New(f, "https://api.example.com/users", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestLoadDeliversDecodedRecords(t *testing.T) {
	rec := &recorder{}
	l := newLoader(t, staticFetcher{resp: body(usersPayload)}, rec, WithDecoder(decode.Users))

	seq := l.Load(context.Background())

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	res := got[0]
	if !res.OK() || res.Seq != seq {
		t.Fatalf("unexpected result %#v", res)
	}
	if len(res.Records) != 2 || res.Records[0].Label != "Leanne Graham" || res.Records[0].Contact != "sincere@april.biz" {
		t.Fatalf("unexpected records %#v", res.Records)
	}
	if res.Records[1].Contact != "" {
		t.Fatalf("missing email should default to empty, got %q", res.Records[1].Contact)
	}
	if l.InFlight() {
		t.Fatalf("expected no load in flight after delivery")
	}
}

func TestOutOfOrderResponsesDeliverOnlyLatest(t *testing.T) {
	orders := map[string][]int{
		"newer first": {1, 0},
		"older first": {0, 1},
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			mf := &manualFetcher{}
			rec := &recorder{}
			l := newLoader(t, mf, rec)

			first := l.Load(context.Background())
			second := l.Load(context.Background())
			if second <= first {
				t.Fatalf("sequence numbers must increase: %d then %d", first, second)
			}

			payloads := []string{
				`[{"id": 1, "name": "stale"}]`,
				`[{"id": 2, "name": "fresh"}]`,
			}
			for _, i := range order {
				mf.call(t, i).done(body(payloads[i]))
			}

			got := rec.all()
			if len(got) != 1 {
				t.Fatalf("expected exactly 1 delivery, got %d: %#v", len(got), got)
			}
			if got[0].Seq != second || got[0].Records[0].Label != "fresh" {
				t.Fatalf("expected the later-issued result, got %#v", got[0])
			}
		})
	}
}

func TestSupersededFetchIsCancelled(t *testing.T) {
	mf := &manualFetcher{}
	l := newLoader(t, mf, &recorder{})

	l.Load(context.Background())
	l.Load(context.Background())

	if err := mf.call(t, 0).ctx.Err(); err == nil {
		t.Fatalf("superseded fetch context should be cancelled")
	}
	if err := mf.call(t, 1).ctx.Err(); err != nil {
		t.Fatalf("latest fetch context should be live, got %v", err)
	}
}

func TestCloseTurnsDeliveryIntoNoop(t *testing.T) {
	mf := &manualFetcher{}
	rec := &recorder{}
	l := newLoader(t, mf, rec)

	l.Load(context.Background())
	l.Close()
	l.Close()

	if err := mf.call(t, 0).ctx.Err(); err == nil {
		t.Fatalf("teardown should cancel the in-flight fetch")
	}
	mf.call(t, 0).done(body(usersPayload))

	if got := rec.all(); len(got) != 0 {
		t.Fatalf("expected no delivery after Close, got %#v", got)
	}
	if seq := l.Load(context.Background()); seq != 0 {
		t.Fatalf("Load after Close returned %d", seq)
	}
	if mf.count() != 1 {
		t.Fatalf("Load after Close must not fetch")
	}
	if st := l.State(); !st.Closed || st.InFlight {
		t.Fatalf("unexpected state %#v", st)
	}
}

func TestMalformedElementFailsWholeLoad(t *testing.T) {
	rec := &recorder{}
	l := newLoader(t, staticFetcher{resp: body(`[{"id": 1, "name": "ok"}, {"id": [1], "name": "bad"}]`)}, rec)

	l.Load(context.Background())

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].OK() || got[0].Err.Kind != domain.KindDecode || len(got[0].Records) != 0 {
		t.Fatalf("expected atomic decode failure, got %#v", got[0])
	}
}

func TestEnvelopeNonSuccessIsDecodeFailure(t *testing.T) {
	rec := &recorder{}
	l := newLoader(t, staticFetcher{resp: body(`{"status":"error","data":[{"label":"Alice","value":10}]}`)}, rec)

	l.Load(context.Background())

	got := rec.all()
	if len(got) != 1 || got[0].OK() || got[0].Err.Kind != domain.KindDecode || got[0].Records != nil {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestFetchFailurePassesThrough(t *testing.T) {
	rec := &recorder{}
	fail := fetcher.Response{Err: domain.NewLoadError(domain.KindNetwork, nil, "status 502")}
	l := newLoader(t, staticFetcher{resp: fail}, rec)

	l.Load(context.Background())

	got := rec.all()
	if len(got) != 1 || got[0].Err == nil || got[0].Err.Kind != domain.KindNetwork {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestRepeatedLoadsAreIdempotent(t *testing.T) {
	rec := &recorder{}
	l := newLoader(t, staticFetcher{resp: body(`{"status":"success","data":[{"label":"Alice","value":10},{"label":"Bob","value":20}]}`)}, rec)

	for i := 0; i < 3; i++ {
		l.Load(context.Background())
	}

	got := rec.all()
	if len(got) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(got))
	}
	want := []domain.Record{
		{ID: "10", Label: "Alice", Shape: domain.ShapeEnvelope},
		{ID: "20", Label: "Bob", Shape: domain.ShapeEnvelope},
	}
	for i, res := range got {
		if res.Seq != uint64(i+1) {
			t.Fatalf("delivery %d has seq %d", i, res.Seq)
		}
		if !reflect.DeepEqual(res.Records, want) {
			t.Fatalf("delivery %d records %#v", i, res.Records)
		}
	}
}

func TestCancelledCallerContextIsReported(t *testing.T) {
	mf := &manualFetcher{}
	rec := &recorder{}
	l := newLoader(t, mf, rec)

	ctx, cancel := context.WithCancel(context.Background())
	seq := l.Load(ctx)
	cancel()
	mf.call(t, 0).done(fetcher.Response{Err: domain.NewLoadError(domain.KindCancelled, context.Canceled, "request cancelled")})

	got := rec.all()
	if len(got) != 1 || got[0].Seq != seq || got[0].Err == nil || got[0].Err.Kind != domain.KindCancelled {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestInFlightTracksLatestLoad(t *testing.T) {
	mf := &manualFetcher{}
	l := newLoader(t, mf, &recorder{})

	if l.InFlight() {
		t.Fatalf("fresh loader should be idle")
	}
	l.Load(context.Background())
	l.Load(context.Background())
	if !l.InFlight() || l.Latest() != 2 {
		t.Fatalf("unexpected state %#v", l.State())
	}

	mf.call(t, 0).done(body(`[]`))
	if !l.InFlight() {
		t.Fatalf("stale completion must not clear in-flight state")
	}
	mf.call(t, 1).done(body(`[]`))
	if st := l.State(); st.InFlight || st.Delivered != 2 {
		t.Fatalf("unexpected state %#v", st)
	}
}

func TestObserverMayReloadReentrantly(t *testing.T) {
	mf := &manualFetcher{}
	rec := &recorder{}
	l, err := New(mf, "https://api.example.com/users")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reloaded := false
	l.SetObserver(func(res domain.LoadResult) {
		rec.observe(res)
		if !reloaded {
			reloaded = true
			l.Load(context.Background())
		}
	})

	l.Load(context.Background())

	finished := make(chan struct{})
	go func() {
		mf.call(t, 0).done(body(`[]`))
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("observer re-entry deadlocked")
	}

	if mf.count() != 2 || l.Latest() != 2 {
		t.Fatalf("expected re-entrant load to be issued, calls=%d latest=%d", mf.count(), l.Latest())
	}
}

func TestConcurrentCompletionsKeepIssueOrder(t *testing.T) {
	mf := &manualFetcher{}
	rec := &recorder{}
	l := newLoader(t, mf, rec)

	const loads = 50
	for i := 0; i < loads; i++ {
		l.Load(context.Background())
	}

	var wg sync.WaitGroup
	for i := 0; i < loads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mf.call(t, i).done(body(`[]`))
		}(i)
	}
	wg.Wait()

	got := rec.all()
	if len(got) != 1 || got[0].Seq != loads {
		t.Fatalf("expected only seq %d delivered, got %#v", loads, got)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, "https://x"); err == nil {
		t.Fatalf("expected error for nil fetcher")
	}
	if _, err := New(&manualFetcher{}, "  "); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
