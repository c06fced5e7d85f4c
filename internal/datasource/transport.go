package datasource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent identifies the importer to Overpass operators
	DefaultUserAgent = "torrent-streets/0.1 (+https://github.com/den-kezlia/torrent)"

	// maxErrorBody caps how much of an error response is kept for diagnostics
	maxErrorBody = 64 * 1024
)

// RequestObserver receives one call per HTTP attempt made against Overpass.
// status is the HTTP status code, or "error" for transport failures.
type RequestObserver interface {
	ObserveOverpassRequest(status string, elapsed time.Duration)
}

// TransportConfig configures retries, rate limiting and timeouts for Overpass requests
type TransportConfig struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   RequestObserver
	UserAgent  string
	// RequestTimeout is the client-side deadline per attempt. It is independent
	// of the [timeout:N] directive embedded in the query.
	RequestTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RateLimit is the sustained request rate in requests per second (<= 0 disables limiting)
	RateLimit   float64
	RateBurst   int
	MaxAttempts int
}

// DefaultTransportConfig returns settings that respect public Overpass usage policy.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		UserAgent:      DefaultUserAgent,
		RequestTimeout: 200 * time.Second,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		RateLimit:      1,
		RateBurst:      1,
		MaxAttempts:    4,
		Logger:         slog.Default(),
	}
}

// Transport sends requests to Overpass with rate limiting and exponential
// backoff. Transport failures, 429 and 5xx responses are retried; other
// non-success statuses fail immediately with an UpstreamServiceError.
type Transport struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     TransportConfig
}

// NewTransport creates a transport, filling unset fields from DefaultTransportConfig.
func NewTransport(cfg TransportConfig) *Transport {
	def := DefaultTransportConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	t := &Transport{client: client, cfg: cfg}
	if cfg.RateLimit > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return t
}

// Do sends req, retrying as configured. The request body must be replayable
// (http.NewRequest sets GetBody for in-memory readers). On success the caller
// owns the response body.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	log := t.cfg.Logger.With("host", req.URL.Host)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.InitialBackoff
	b.MaxInterval = t.cfg.MaxBackoff

	attempt := 0
	operation := func() (*http.Response, error) {
		attempt++
		return t.attempt(ctx, req)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(t.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			log.Warn("overpass request failed, retrying",
				"attempt", attempt,
				"max_attempts", t.cfg.MaxAttempts,
				"delay", delay,
				"error", err,
			)
		}),
	)
}

func (t *Transport) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(&TransportError{Err: err})
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.cfg.RequestTimeout)
	r, err := cloneRequest(attemptCtx, req)
	if err != nil {
		cancel()
		return nil, backoff.Permanent(err)
	}
	r.Header.Set("User-Agent", t.cfg.UserAgent)

	start := time.Now()
	resp, err := t.client.Do(r)
	elapsed := time.Since(start)
	if err != nil {
		cancel()
		t.observe("error", elapsed)
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&TransportError{Err: err})
		}
		return nil, &TransportError{Err: err}
	}
	t.observe(strconv.Itoa(resp.StatusCode), elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		upstream := &UpstreamServiceError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
		if upstream.Temporary() {
			return nil, upstream
		}
		return nil, backoff.Permanent(upstream)
	}

	// The per-attempt deadline must outlive the body read done by the caller.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (t *Transport) observe(status string, elapsed time.Duration) {
	if t.cfg.Observer != nil {
		t.cfg.Observer.ObserveOverpassRequest(status, elapsed)
	}
}

// cloneRequest copies req for one attempt, rewinding its body.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body cannot be replayed for retries")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	r.Body = body
	return r, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
