package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/samvad-hq/samvad-list-loader/internal/domain"
	"github.com/samvad-hq/samvad-list-loader/internal/logger"
	"github.com/samvad-hq/samvad-list-loader/pkg/httpclient"
)

// Response is the outcome of one fetch: a raw JSON body or a LoadError.
type Response struct {
	Body json.RawMessage
	Err  *domain.LoadError
}

// OK reports whether the fetch produced a body.
func (r Response) OK() bool { return r.Err == nil }

// Callback receives the fetch outcome. It is called exactly once per Fetch.
type Callback func(Response)

// Fetcher issues single GET requests against list endpoints.
type Fetcher struct {
	client   httpclient.Client
	settings Settings
	log      logger.Logger
}

// New builds a Fetcher. A nil client falls back to a resty client using
// settings.Timeout.
func New(client httpclient.Client, settings Settings, log logger.Logger) *Fetcher {
	if client == nil {
		client = httpclient.NewRestyClient(settings.Timeout)
	}
	return &Fetcher{
		client:   client,
		settings: settings,
		log:      logger.Ensure(log),
	}
}

// Settings returns the settings the fetcher was built with.
func (f *Fetcher) Settings() Settings { return f.settings }

// Fetch performs the GET on its own goroutine and hands the outcome to done.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, headers map[string]string, done Callback) {
	if done == nil {
		done = func(Response) {}
	}
	go func() {
		done(f.Do(ctx, endpoint, headers))
	}()
}

// Do is the blocking form of Fetch.
func (f *Fetcher) Do(ctx context.Context, endpoint string, headers map[string]string) Response {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateEndpoint(endpoint); err != nil {
		return failed(domain.KindNetwork, err, "invalid endpoint")
	}
	if err := ctx.Err(); err != nil {
		return failed(contextKind(err), err, "request not dispatched")
	}

	resp, err := f.client.Get(ctx, endpoint, f.headersFor(headers))
	if err != nil {
		if isCancelled(ctx, err) {
			return failed(domain.KindCancelled, err, "request cancelled")
		}
		f.log.WarnObj("list fetch failed", "fetch_error", map[string]any{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return failed(domain.KindNetwork, err, "fetch %s", endpoint)
	}

	body := resp.Body()
	if code := resp.StatusCode(); code < 200 || code > 299 {
		f.log.WarnObj("list endpoint returned error status", "fetch_status", map[string]any{
			"endpoint": endpoint,
			"status":   code,
		})
		return failed(domain.KindNetwork, nil, "%s returned status %d body: %s", endpoint, code, responseSnippet(body))
	}

	if err := checkPayload(body); err != nil {
		return failed(domain.KindDecode, err, "malformed payload from %s", endpoint)
	}

	f.log.DebugObj("list fetch completed", "fetch_meta", map[string]any{
		"endpoint": endpoint,
		"bytes":    len(body),
	})
	return Response{Body: json.RawMessage(body)}
}

// headersFor layers static headers, the authorization header, then the
// per-call headers. Empty keys or values are skipped.
func (f *Fetcher) headersFor(extra map[string]string) map[string]string {
	out := make(map[string]string, len(f.settings.Headers)+len(extra)+1)
	merge := func(src map[string]string) {
		for k, v := range src {
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if k == "" || v == "" {
				continue
			}
			out[k] = v
		}
	}
	merge(f.settings.Headers)
	if auth := f.settings.Authorization(); auth != "" {
		out[AuthorizationHeader] = auth
	}
	merge(extra)
	return out
}

func failed(kind domain.ErrorKind, cause error, format string, args ...any) Response {
	return Response{Err: domain.NewLoadError(kind, cause, format, args...)}
}

// contextKind classifies a finished context. An expired deadline is a
// timeout and reports as a network failure.
func contextKind(err error) domain.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindNetwork
	}
	return domain.KindCancelled
}

func isCancelled(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return false
	}
	return errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled)
}

var errNotCollection = errors.New("top-level json value must be an array or an object")

// checkPayload verifies the body is valid JSON with an array or object at the top.
func checkPayload(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return errors.New("empty body")
	}
	if !json.Valid(trimmed) {
		return errors.New("invalid json")
	}
	if trimmed[0] != '[' && trimmed[0] != '{' {
		return errNotCollection
	}
	return nil
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
