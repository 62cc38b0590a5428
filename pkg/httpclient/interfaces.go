package httpclient

import (
	"context"
	"net/http"
)

// Response is the subset of an HTTP response the list pipeline inspects.
type Response interface {
	Body() []byte
	StatusCode() int
	Header() http.Header
}

// Client performs GET requests. Implementations must honour ctx cancellation.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}
