package shopbot

import (
	"log/slog"
	"net/http"
	"time"
)

// Option overrides a Config after it has been loaded. Use With* functions
// to create options.
type Option interface {
	apply(*Config)
}

// optionFunc wraps a function to implement Option interface.
type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// WithLogger sets a custom slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *Config) { c.Logger = logger })
}

// WithHTTPClient sets the HTTP client used for Bot API calls.
func WithHTTPClient(client HTTPClient) Option {
	return optionFunc(func(c *Config) { c.HTTPClient = client })
}

// WithAPIBaseURL points the Bot API client at another server (tests, local
// Bot API server).
func WithAPIBaseURL(baseURL string) Option {
	return optionFunc(func(c *Config) { c.APIBaseURL = baseURL })
}

// WithClock replaces time.Now for timestamps in relayed orders.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *Config) { c.Now = now })
}

// WithWebhook sets the public base URL and the shared secret.
func WithWebhook(baseURL string, secret SecretToken) Option {
	return optionFunc(func(c *Config) {
		c.WebhookURL = baseURL
		c.WebhookSecret = secret
	})
}

// WithWebhookURL sets only the public base URL.
func WithWebhookURL(baseURL string) Option {
	return optionFunc(func(c *Config) { c.WebhookURL = baseURL })
}

// WithPort sets the listen port.
func WithPort(port int) Option {
	return optionFunc(func(c *Config) { c.Port = port })
}

// WithLogLevel sets the log level (debug|info|warn|error).
func WithLogLevel(level string) Option {
	return optionFunc(func(c *Config) { c.LogLevel = level })
}

// WithPolling configures long polling.
func WithPolling(timeout, limit int) Option {
	return optionFunc(func(c *Config) {
		c.PollingTimeout = timeout
		c.PollingLimit = limit
	})
}

// WithPollingDeleteWebhook deletes any registered webhook before polling starts.
func WithPollingDeleteWebhook(delete bool) Option {
	return optionFunc(func(c *Config) { c.PollingDeleteWebhook = delete })
}

// WithRateLimit sets outbound Bot API pacing.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return optionFunc(func(c *Config) {
		c.RateLimitRequests = requestsPerSecond
		c.RateLimitBurst = burst
	})
}

// WithBreakerConfig configures the circuit breaker around Bot API calls.
func WithBreakerConfig(maxRequests uint32, interval, timeout time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.BreakerMaxRequests = maxRequests
		c.BreakerInterval = interval
		c.BreakerTimeout = timeout
	})
}

// WithTimeouts sets HTTP server timeouts.
func WithTimeouts(read, readHeader, write, idle time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.ReadTimeout = read
		c.ReadHeaderTimeout = readHeader
		c.WriteTimeout = write
		c.IdleTimeout = idle
	})
}

// WithMaxBodySize sets the maximum webhook request body size.
func WithMaxBodySize(size int64) Option {
	return optionFunc(func(c *Config) { c.MaxBodySize = size })
}

// Presets for common configurations

// ProductionPreset returns options suitable for production environments.
func ProductionPreset() Option {
	return optionFunc(func(c *Config) {
		c.PollingMaxErrors = 10
		c.RetryInitialDelay = 2 * time.Second
		c.RetryMaxDelay = 60 * time.Second
		c.BreakerMaxRequests = 5
		c.ShutdownTimeout = 30 * time.Second
	})
}

// DevelopmentPreset returns options suitable for development.
func DevelopmentPreset() Option {
	return optionFunc(func(c *Config) {
		c.LogLevel = "debug"
		c.PollingMaxErrors = 3
		c.RetryInitialDelay = 500 * time.Millisecond
		c.RetryMaxDelay = 5 * time.Second
		c.BreakerMaxRequests = 2
		c.ShutdownTimeout = 5 * time.Second
	})
}

// Compile-time check that http.Client implements HTTPClient
var _ HTTPClient = (*http.Client)(nil)
