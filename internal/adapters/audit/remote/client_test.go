package remoteaudit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vshulcz/Migrascope/internal/services/audit"
)

func TestNew_Validates(t *testing.T) {
	for _, raw := range []string{"", "  ", "not a url"} {
		if _, err := New(raw, nil); err == nil {
			t.Fatalf("New(%q) expected error", raw)
		}
	}
}

func TestClient_Notify_OK(t *testing.T) {
	var received audit.Event
	var reqID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reqID = r.Header.Get("X-Request-ID")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cli, err := New(ts.URL, ts.Client())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	evt := audit.Event{Timestamp: 1, Command: audit.CommandRollback, IPAddress: "1.1.1.1", Success: true}
	if err := cli.Notify(context.Background(), evt); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if received.IPAddress != evt.IPAddress || received.Command != audit.CommandRollback {
		t.Fatalf("event not forwarded: %+v", received)
	}
	if reqID == "" {
		t.Fatal("missing X-Request-ID")
	}
}

func TestClient_Notify_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	cli, err := New(ts.URL, ts.Client())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := cli.Notify(context.Background(), audit.Event{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_Notify_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cli, err := New(ts.URL, ts.Client(), time.Millisecond)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := cli.Notify(context.Background(), audit.Event{Command: audit.CommandReset}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("hits=%d want 2", hits.Load())
	}
}

func TestClient_Notify_NoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	cli, _ := New(ts.URL, ts.Client(), time.Millisecond, time.Millisecond)
	if err := cli.Notify(context.Background(), audit.Event{}); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Fatalf("hits=%d want 1", hits.Load())
	}
}
