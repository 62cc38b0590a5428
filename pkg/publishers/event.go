package publishers

import (
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/samvad-list-loader/internal/domain"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event represents one delivered load result published downstream.
type Event struct {
	LoadID      string          `json:"load_id"`
	SourceID    string          `json:"source_id"`
	SourceName  string          `json:"source_name"`
	Seq         uint64          `json:"seq"`
	Status      string          `json:"status"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	Message     string          `json:"message,omitempty"`
	Records     []domain.Record `json:"records"`
	DeliveredAt time.Time       `json:"delivered_at"`
}

// NewEvent constructs an Event for the given source and load result.
func NewEvent(sourceID, sourceName string, res domain.LoadResult) Event {
	evt := Event{
		LoadID:      uuid.NewString(),
		SourceID:    sourceID,
		SourceName:  sourceName,
		Seq:         res.Seq,
		Status:      StatusSuccess,
		Records:     res.Records,
		DeliveredAt: time.Now().UTC(),
	}
	if !res.OK() {
		evt.Status = StatusFailure
		evt.ErrorKind = string(res.Err.Kind)
		evt.Message = res.Err.Message
		evt.Records = []domain.Record{}
	}
	if evt.Records == nil {
		evt.Records = []domain.Record{}
	}
	return evt
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{
		"source_id": e.SourceID,
		"status":    e.Status,
	}
	if e.ErrorKind != "" {
		attrs["error_kind"] = e.ErrorKind
	}
	return attrs
}
