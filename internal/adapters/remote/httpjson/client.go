// Package httpjson implements the transport client for the remote migration service.
package httpjson

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/vshulcz/Migrascope/internal/domain"
	"github.com/vshulcz/Migrascope/internal/misc"
	"github.com/vshulcz/Migrascope/internal/ports"
)

// DefaultTimeout bounds every request when the caller supplies no http.Client.
const DefaultTimeout = 10 * time.Second

const (
	headerRequestID = "X-Request-ID"
	headerHash      = "HashSHA256"
	maxBodyBytes    = 8 << 20
)

// Client talks JSON to the remote service and normalizes every error into a *domain.Failure.
type Client struct {
	base    *url.URL
	hc      *http.Client
	log     *zap.Logger
	breaker *gobreaker.CircuitBreaker[exchange]
	key     string
	backoff []time.Duration
}

var _ ports.Transport = (*Client)(nil)

// maxPooledBuffer caps what goes back into bufferPool.
const maxPooledBuffer = 256 << 10

var bufferPool = misc.NewPool(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	misc.WithKeep(func(b *bytes.Buffer) bool { return b.Cap() <= maxPooledBuffer }),
)

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithKey enables the HashSHA256 request signature.
func WithKey(key string) Option {
	return func(c *Client) { c.key = strings.TrimSpace(key) }
}

// WithRetry retries transport failures and 429/502/503/504 after each delay. No delays means a single attempt.
func WithRetry(delays []time.Duration) Option {
	return func(c *Client) { c.backoff = append([]time.Duration(nil), delays...) }
}

// WithBreaker guards the service with a circuit breaker that opens after
// consecutive failures and fails fast with a TransportFailure while open.
func WithBreaker(consecutiveFailures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		if consecutiveFailures == 0 {
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker[exchange](gobreaker.Settings{
			Name:    "migration-service",
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				var se *httpStatusError
				if errors.As(err, &se) {
					return se.code < http.StatusInternalServerError
				}
				return err == nil
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.log.Warn("circuit breaker state changed",
					zap.String("component", "transport"),
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
}

// New normalizes the base address, configures the HTTP client, and returns a Client instance.
func New(serviceAddr string, hc *http.Client, opts ...Option) (*Client, error) {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	u, err := url.Parse(normalizeBase(serviceAddr))
	if err != nil {
		return nil, err
	}
	c := &Client{base: u, hc: hc, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func normalizeBase(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return strings.TrimRight(s, "/")
	}
	return "http://" + strings.TrimRight(s, "/")
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Do performs the request and returns the raw JSON body of a 2xx response.
func (c *Client) Do(ctx context.Context, r ports.Request) (json.RawMessage, error) {
	raw, err := c.do(ctx, r)
	if err != nil {
		f := c.normalize(err)
		c.log.Warn("remote call failed",
			zap.String("component", "transport"),
			zap.String("operation", r.Op),
			zap.String("method", r.Method),
			zap.String("path", r.Path),
			zap.String("kind", string(f.Kind)),
			zap.Int("status", f.Status),
			zap.String("error", f.Message),
		)
		return nil, f
	}
	return raw, nil
}

type exchange struct {
	body   []byte
	status int
}

type httpStatusError struct {
	body []byte
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("server status: %d %s", e.code, http.StatusText(e.code))
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "malformed response: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

type encodeError struct {
	err error
}

func (e *encodeError) Error() string { return "marshal: " + e.err.Error() }

func (e *encodeError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, r ports.Request) (json.RawMessage, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	plain, err := marshalJSON(r.Body)
	if err != nil {
		return nil, &encodeError{err: err}
	}

	var hashHeader string
	if c.key != "" && len(plain) > 0 {
		hashHeader = misc.SumSHA256(plain, c.key)
	}

	target := c.endpoint(r.Path, r.Query)
	var ex exchange
	op := func() error {
		req, err := c.newJSONRequest(ctx, method, target, plain, hashHeader)
		if err != nil {
			return err
		}
		ex, err = c.roundTrip(req)
		return err
	}
	notify := func(n misc.RetryNotice) {
		c.log.Info("remote call retrying",
			zap.String("component", "transport"),
			zap.String("operation", r.Op),
			zap.Int("attempt", n.Attempt),
			zap.Duration("delay", n.Delay),
			zap.Error(n.Err))
	}
	if err := misc.RetryNotify(ctx, c.backoff, isRetryableHTTP, op, notify); err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(ex.body)
	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, &decodeError{err: errors.New("body is not valid JSON")}
	}
	return json.RawMessage(body), nil
}

func (c *Client) roundTrip(req *http.Request) (exchange, error) {
	if c.breaker == nil {
		return c.exchange(req)
	}
	return c.breaker.Execute(func() (exchange, error) {
		return c.exchange(req)
	})
}

func (c *Client) exchange(req *http.Request) (ex exchange, retErr error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return exchange{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()

	body, err := readBody(resp)
	if err != nil {
		return exchange{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return exchange{}, &httpStatusError{code: resp.StatusCode, body: body}
	}
	return exchange{status: resp.StatusCode, body: body}, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, target string, body []byte, hashHeader string) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set(headerRequestID, uuid.NewString())
	if hashHeader != "" {
		req.Header.Set(headerHash, hashHeader)
	}
	return req, nil
}

func marshalJSON(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		if !json.Valid(raw) {
			return nil, errors.New("body is not valid JSON")
		}
		return raw, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &decodeError{err: fmt.Errorf("bad gzip: %w", err)}
		}
		defer func() {
			_ = gr.Close()
		}()
		r = gr
	}

	buf := bufferPool.Get()
	defer bufferPool.Put(buf)
	if _, err := io.Copy(buf, io.LimitReader(r, maxBodyBytes)); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func isRetryableHTTP(err error) bool {
	if err == nil {
		return false
	}
	var se *httpStatusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusBadGateway, http.StatusServiceUnavailable,
			http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// normalize maps any error from do into a Failure.
func (c *Client) normalize(err error) *domain.Failure {
	var f *domain.Failure
	if errors.As(err, &f) {
		return f
	}

	var se *httpStatusError
	if errors.As(err, &se) {
		return &domain.Failure{
			Kind:    domain.RemoteRejection,
			Status:  se.code,
			Message: rejectionMessage(se.code, se.body),
			Err:     err,
		}
	}

	var de *decodeError
	if errors.As(err, &de) {
		return &domain.Failure{Kind: domain.DecodeFailure, Message: de.Error(), Err: err}
	}

	var ee *encodeError
	if errors.As(err, &ee) {
		return &domain.Failure{
			Kind:    domain.TransportFailure,
			Message: ee.Error(),
			Err:     errors.Join(domain.ErrInvalidArgument, err),
		}
	}

	msg := domain.DefaultTransportMessage
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		msg = "circuit breaker is open"
	case strings.TrimSpace(err.Error()) != "":
		msg = err.Error()
	}
	return &domain.Failure{Kind: domain.TransportFailure, Message: msg, Err: err}
}

type errorBody struct {
	Error *string `json:"error"`
}

func rejectionMessage(code int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != nil && strings.TrimSpace(*eb.Error) != "" {
		return *eb.Error
	}
	if code >= http.StatusInternalServerError {
		return domain.DefaultRejectionMessage
	}
	return fmt.Sprintf("Request failed with status code %d", code)
}
