package client

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sanisideup/fxrates/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RatePath is the pricing service endpoint for public rates
const RatePath = "/rate/public"

// Client represents a pricing service API client
type Client struct {
	BaseURL    string
	HTTPClient *resty.Client

	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option customises a Client
type Option func(*Client)

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a new pricing service client from config
func New(cfg *config.Config, opts ...Option) *Client {
	client := &Client{
		BaseURL: cfg.APIBaseURL,
		logger:  zap.NewNop(),
	}

	// Retries are owned by the refresh controller, never by the transport
	client.HTTPClient = resty.New().
		SetBaseURL(client.BaseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.RequestTimeout()).
		SetRetryCount(0)

	if cfg.UserAgent != "" {
		client.HTTPClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	// Outbound pacing, disabled when requests_per_second is 0
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.RequestBurst
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// SetTimeout overrides the per-request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.SetTimeout(timeout)
}
