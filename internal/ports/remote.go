package ports

import (
	"context"
	"encoding/json"
	"net/url"
)

// Request describes one call to the remote migration service.
type Request struct {
	Body   any
	Query  url.Values
	Op     string
	Method string
	Path   string
}

// Transport issues requests against the remote service. A non-nil error is always a *domain.Failure.
type Transport interface {
	Do(ctx context.Context, req Request) (json.RawMessage, error)
}

// SyncRecorder receives outcome counters from the sync and command services.
type SyncRecorder interface {
	FetchCompleted(outcome string)
	CommandCompleted(command string, ok bool)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) FetchCompleted(string) {}

func (NopRecorder) CommandCompleted(string, bool) {}
