// Package roboflow is a client for the hosted dataset export and inference
// APIs.
package roboflow

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultInferURL is the serverless inference endpoint.
	DefaultInferURL = "https://serverless.roboflow.com"

	// DefaultAPIURL is the REST API used for dataset exports.
	DefaultAPIURL = "https://api.roboflow.com"

	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
)

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrMissingAPIKey indicates the client was created without a key.
	ErrMissingAPIKey = errors.New("roboflow: missing API key")

	// ErrRequestFailed indicates a non-success HTTP status.
	ErrRequestFailed = errors.New("roboflow: request failed")

	// ErrExportNotReady indicates the dataset export never produced a link.
	ErrExportNotReady = errors.New("roboflow: dataset export not ready")
)

// Client talks to the hosted service. It is safe for concurrent use.
type Client struct {
	apiKey       string
	inferURL     string
	apiURL       string
	http         *http.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
	pollAttempts int
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithInferURL overrides the inference endpoint.
func WithInferURL(u string) Option {
	return func(c *Client) {
		c.inferURL = u
	}
}

// WithAPIURL overrides the REST API endpoint.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		c.apiURL = u
	}
}

// WithHTTPClient sets the HTTP client (default: 60s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRateLimit caps requests per second (default: unlimited).
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithExportPolling sets how often and how many times a pending dataset
// export is polled (default: every 5s, 60 times).
func WithExportPolling(interval time.Duration, attempts int) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if attempts > 0 {
			c.pollAttempts = attempts
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the given API key.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:       apiKey,
		inferURL:     DefaultInferURL,
		apiURL:       DefaultAPIURL,
		http:         &http.Client{Timeout: 60 * time.Second},
		limiter:      rate.NewLimiter(rate.Inf, 1),
		pollInterval: 5 * time.Second,
		pollAttempts: 60,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
