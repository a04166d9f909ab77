package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/atalanta-labs/wikibatch/internal/metrics"
	"github.com/atalanta-labs/wikibatch/internal/ports"
	"github.com/atalanta-labs/wikibatch/pkg/log"
)

// Default transport option values.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultConnectTimeout = 3 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBase      = 200 * time.Millisecond
	DefaultRetryMax       = 3 * time.Second
	DefaultAccept         = "application/json"
	DefaultUserAgent      = "wikibatch/client"
)

// Options holds the fixed runtime options for a transport instance.
type Options struct {
	// Timeout is the total per-attempt timeout.
	Timeout time.Duration

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// MaxRetries is the number of retries allowed after the first attempt.
	MaxRetries int

	// RetryBase is the base delay for exponential backoff.
	RetryBase time.Duration

	// RetryMax caps a single backoff sleep.
	RetryMax time.Duration

	// Accept is the default Accept header.
	Accept string

	// UserAgent is the User-Agent header.
	UserAgent string
}

// DefaultOptions returns Options with the default values.
func DefaultOptions() Options {
	return Options{
		Timeout:        DefaultTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryBase:      DefaultRetryBase,
		RetryMax:       DefaultRetryMax,
		Accept:         DefaultAccept,
		UserAgent:      DefaultUserAgent,
	}
}

// Response is the outcome of a successful logical call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError is returned when a call terminally fails with an HTTP status,
// either a non-retryable status or a retryable one after budget exhaustion.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wikibatch: http error: %d", e.Code)
}

// TransportError is returned when a call terminally fails below the HTTP
// layer (connection failure, timeout, malformed response).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wikibatch: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Call describes one logical request.
type Call struct {
	// Method is http.MethodGet or http.MethodPost.
	Method string

	// URL is the base URL without query parameters.
	URL string

	// Query parameters are encoded into the URL.
	Query url.Values

	// Form parameters become a form-encoded POST body when UseForm is set.
	Form url.Values

	// Body is the raw POST body when UseForm is not set.
	Body []byte

	// ContentType labels Body; ignored for form posts.
	ContentType string

	// Accept overrides the transport's default Accept header when non-empty.
	Accept string

	// Timeout overrides the transport's per-attempt timeout when positive.
	Timeout time.Duration

	// UseForm selects the form-encoded body over the raw one.
	UseForm bool
}

// Transport issues logical HTTP calls with bounded retries.
//
// A transport owns one reusable client session; calls on the same instance
// are serialized by an internal mutex. Callers needing parallelism use
// independent instances. Only the metrics counters tolerate concurrent reads.
type Transport struct {
	opts    Options
	client  ports.HTTPClient
	metrics *metrics.Network
	logger  log.Logger

	mu    sync.Mutex
	delay jitter
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a transport backed by a standard http.Client.
//
// The per-attempt deadline is enforced through the request context in
// request, not http.Client.Timeout, so a Call.Timeout can extend past
// opts.Timeout as well as shorten it.
func New(opts Options, logger log.Logger) *Transport {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
		},
	}
	return NewWithClient(opts, client, logger)
}

// NewWithClient creates a transport over an injected HTTP client.
func NewWithClient(opts Options, client ports.HTTPClient, logger log.Logger) *Transport {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Transport{
		opts:    opts,
		client:  client,
		metrics: &metrics.Network{},
		logger:  logger,
		delay:   newJitter(opts.RetryBase, opts.RetryMax),
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// Metrics exposes the transport's network counters.
func (t *Transport) Metrics() *metrics.Network { return t.metrics }

// Get performs a logical GET with the given query parameters.
func (t *Transport) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return t.Do(ctx, Call{Method: http.MethodGet, URL: rawURL, Query: params})
}

// Do performs the logical call described by c, retrying transient failures.
//
// Success is any 2xx status. Transport errors, 408, 429 and 5xx are retried
// with full-jitter exponential backoff, raised to any server Retry-After
// hint, until the retry budget is spent. Every other status fails
// immediately. Terminal failures are a *TransportError or a *StatusError so
// callers can tell the two apart.
func (t *Transport) Do(ctx context.Context, c Call) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for attempt := 1; ; attempt++ {
		resp, elapsed, err := t.request(ctx, c)

		status := 0
		received := 0
		if err == nil {
			status = resp.StatusCode
			received = len(resp.Body)
		}
		t.metrics.RecordAttempt(status, elapsed, received)

		netOK := err == nil
		if netOK && status >= 200 && status < 300 {
			return resp, nil
		}

		if attempt <= t.opts.MaxRetries && retryable(status, netOK) {
			sleep := t.delay.next(attempt)
			if netOK {
				if hint, ok := retryAfterHint(resp.Header, t.now()); ok && hint > sleep {
					sleep = hint
				}
			}
			t.metrics.RecordRetry(sleep)
			t.logger.Warn("retrying request",
				log.String("url", c.URL),
				log.Int("attempt", attempt),
				log.Int("status", status),
				log.Duration("sleep", sleep),
				log.Err(err))
			t.sleep(sleep)
			continue
		}

		if !netOK {
			return nil, &TransportError{Err: err}
		}
		return nil, &StatusError{Code: status}
	}
}

// retryable reports whether an attempt outcome warrants another try:
// any transport error, 408, 429, or a 5xx status.
func retryable(status int, netOK bool) bool {
	return !netOK || status == 408 || status == 429 || (status >= 500 && status < 600)
}

// request executes one physical attempt and reads the full body.
func (t *Transport) request(ctx context.Context, c Call) (*Response, time.Duration, error) {
	timeout := t.opts.Timeout
	if c.Timeout > 0 {
		timeout = c.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target := c.URL
	if len(c.Query) > 0 {
		target += "?" + c.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case c.Method == http.MethodPost && c.UseForm:
		body = strings.NewReader(c.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case c.Method == http.MethodPost:
		body = bytes.NewReader(c.Body)
		contentType = c.ContentType
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, target, body)
	if err != nil {
		return nil, 0, err
	}

	accept := c.Accept
	if accept == "" {
		accept = t.opts.Accept
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", t.opts.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := t.now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, t.now().Sub(start), err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := t.now().Sub(start)
	if err != nil {
		return nil, elapsed, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, elapsed, nil
}
