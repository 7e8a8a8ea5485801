// Package remoteaudit ships the command audit trail to an HTTP collector.
package remoteaudit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vshulcz/Migrascope/internal/misc"
	"github.com/vshulcz/Migrascope/internal/services/audit"
)

// DefaultTimeout bounds a single POST.
const DefaultTimeout = 5 * time.Second

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("audit post status %d", e.code) }

// Client POSTs each audit event as JSON.
type Client struct {
	hc       *http.Client
	endpoint string
	backoff  []time.Duration
}

// New validates rawURL. Delivery is retried on 5xx and transport errors after each backoff delay.
func New(rawURL string, hc *http.Client, backoff ...time.Duration) (*Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("audit url is empty")
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid audit url: %w", err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{endpoint: rawURL, hc: hc, backoff: backoff}, nil
}

// Notify delivers evt.
func (c *Client) Notify(ctx context.Context, evt audit.Event) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	id := uuid.NewString()
	return misc.Retry(ctx, c.backoff, retryable, func() error {
		return c.post(ctx, payload, id)
	})
}

func (c *Client) post(ctx context.Context, payload []byte, id string) (retErr error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", id)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("audit post: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close audit response: %w", cerr)
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain audit response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	return true
}
