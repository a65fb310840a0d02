// Package soap is the resilient HTTP transport to the remote SOAP service.
// One Client is built at start and shared by all dispatches.
package soap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 16 << 20

// AttemptObserver is notified after every attempt.
type AttemptObserver interface {
	ObserveAttempt(operation, outcome string)
}

// Exchange captures what went over the wire for one Send. It is returned
// alongside errors so callers can audit failed calls too.
type Exchange struct {
	Request    []byte
	Response   []byte
	Result     map[string]any
	Attempts   int
	StatusCode int
}

// Client sends SOAP requests with bounded retries and an overall timeout.
type Client struct {
	endpoint  string
	namespace string
	timeout   time.Duration
	retry     RetryPolicy
	http      *http.Client
	logger    *slog.Logger
	observer  AttemptObserver
}

// Config collects the transport settings resolved at start.
type Config struct {
	Endpoint  string
	Namespace string
	// Timeout bounds a whole Send, retries and backoff included.
	Timeout time.Duration
	Retry   RetryPolicy
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithObserver installs an attempt observer, typically metrics.
func WithObserver(o AttemptObserver) Option {
	return func(cl *Client) { cl.observer = o }
}

// NewClient builds a Client over a pooled, traced HTTP transport.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("soap: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		endpoint:  cfg.Endpoint,
		namespace: cfg.Namespace,
		timeout:   cfg.Timeout,
		retry:     cfg.Retry,
		http:      &http.Client{Transport: otelhttp.NewTransport(pooledTransport())},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func pooledTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Send encodes req, posts it and decodes the response. Transient failures
// (network errors, 502/503/504 and fault-less 500 responses) are retried
// with backoff until the policy or the timeout runs out. The returned
// Exchange is never nil.
func (c *Client) Send(ctx context.Context, req Request) (*Exchange, error) {
	ex := &Exchange{}
	payload, err := EncodeEnvelope(c.namespace, req)
	if err != nil {
		return ex, err
	}
	ex.Request = payload

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxAttempts := c.retry.attempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ex.Attempts = attempt
		result, err := c.attempt(ctx, req.Operation, payload, ex)
		if err == nil {
			ex.Result = result
			c.observe(req.Operation, "success")
			return ex, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			c.observe(req.Operation, "timeout")
			return ex, fmt.Errorf("soap: %s: %w", req.Operation, ctx.Err())
		}
		if !IsTransient(err) {
			c.observe(req.Operation, "fault")
			return ex, err
		}
		c.observe(req.Operation, "transient")
		if attempt == maxAttempts {
			break
		}
		delay := c.retry.Backoff(attempt)
		c.logger.Warn("soap transient failure",
			slog.String("operation", req.Operation),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.Any("error", err))
		if err := sleep(ctx, delay); err != nil {
			return ex, fmt.Errorf("soap: %s: %w", req.Operation, err)
		}
	}
	return ex, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, ex.Attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, operation string, payload []byte, ex *Exchange) (map[string]any, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", fmt.Sprintf("%q", "urn:"+operation))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transient(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transient(err)
	}
	ex.Response = body
	ex.StatusCode = resp.StatusCode

	result, decodeErr := DecodeResponse(body)
	var fault *Fault
	switch {
	case errors.As(decodeErr, &fault):
		return nil, fault
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decodeErr != nil {
			return nil, decodeErr
		}
		return result, nil
	case transientStatus(resp.StatusCode):
		return nil, transient(&StatusError{StatusCode: resp.StatusCode})
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
}

func (c *Client) observe(operation, outcome string) {
	if c.observer != nil {
		c.observer.ObserveAttempt(operation, outcome)
	}
}
