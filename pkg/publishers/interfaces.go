package publishers

import "context"

// Publisher sends load events to a downstream sink (SQS, SNS, Pub/Sub, HTTP).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Closer is implemented by publishers holding long-lived clients.
type Closer interface {
	Close() error
}
