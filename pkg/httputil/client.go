package httputil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/observability"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 32 << 20

// Client performs JSON requests against a graph backend. GET requests are
// retried on transient failures; POST requests are sent once.
type Client struct {
	http     *http.Client
	headers  map[string]string
	attempts int
	delay    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHeaders sets headers sent with every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry overrides the retry policy for GET requests.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) { c.attempts, c.delay = attempts, delay }
}

// NewClient returns a client with a [DefaultTimeout] and the default retry
// policy.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		attempts: DefaultAttempts,
		delay:    DefaultDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get fetches rawURL and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := Retry(ctx, c.attempts, c.delay, func() error {
		b, err := c.do(ctx, http.MethodGet, rawURL, nil)
		body = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	return Decode(body, v)
}

// PostJSON sends in as a JSON body and decodes the response into out. A nil
// out discards the response.
func (c *Client) PostJSON(ctx context.Context, rawURL string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "encode request")
	}
	body, err := c.do(ctx, http.MethodPost, rawURL, payload)
	if err != nil {
		var re *RetryableError
		if errors.As(err, &re) {
			return re.Err
		}
		return err
	}
	if out == nil {
		return nil
	}
	return Decode(body, out)
}

// Decode unmarshals a JSON response body.
func Decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeNetwork, err, "decode response")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	host, path := hostPath(req.URL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		if ctx.Err() != nil || isTimeout(err) {
			return nil, gerrors.Wrap(gerrors.ErrCodeTimeout, err, "%s %s", method, path)
		}
		return nil, Retryable(gerrors.Wrap(gerrors.ErrCodeNetwork, err, "%s %s", method, path))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(method, path, resp.StatusCode); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, Retryable(gerrors.Wrap(gerrors.ErrCodeNetwork, err, "read %s", path))
	}
	return body, nil
}

func checkStatus(method, path string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return gerrors.New(gerrors.ErrCodeNotFound, "%s %s: status %d", method, path, code)
	case code >= 500:
		return Retryable(gerrors.New(gerrors.ErrCodeNetwork, "%s %s: status %d", method, path, code))
	default:
		return gerrors.New(gerrors.ErrCodeNetwork, "%s %s: status %d", method, path, code)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func hostPath(u *url.URL) (string, string) {
	if u == nil {
		return "", ""
	}
	return u.Host, u.Path
}
