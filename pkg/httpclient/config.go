package httpclient

import (
	"fmt"
	"log/slog"
	"time"

	cerrors "github.com/tombee/curlfetch/pkg/errors"
)

// Backend selects the transport that performs the network transfer.
type Backend string

const (
	// BackendNative uses a tuned net/http Transport.
	BackendNative Backend = "native"
	// BackendCurl runs the external transfer tool for every request.
	BackendCurl Backend = "curl"
)

// Config configures the HTTP client with timeout, retry, and observability settings.
type Config struct {
	// Backend selects the transport strategy.
	// Default: native.
	Backend Backend

	// CurlPath is the transfer executable for BackendCurl, a name looked up
	// on PATH or a path. Default: "curl".
	CurlPath string

	// CurlArgs are extra arguments for every transfer (proxy, CA bundle, ...).
	CurlArgs []string

	// SpawnRate caps transfer processes started per second for BackendCurl.
	// 0 disables the limit.
	SpawnRate float64

	// SpawnBurst is the burst allowed above SpawnRate. Default: 1.
	SpawnBurst int

	// Timeout is the total request timeout (includes retries).
	// Default: 30s. Must be > 0.
	Timeout time.Duration

	// RetryAttempts is the maximum number of retry attempts (0 = no retries).
	// Default: 3. Must be >= 0.
	RetryAttempts int

	// RetryBackoff is the initial backoff delay before first retry.
	// Default: 100ms. Must be > 0 if RetryAttempts > 0.
	RetryBackoff time.Duration

	// MaxBackoff is the maximum backoff delay cap.
	// Default: 30s. Must be >= RetryBackoff.
	MaxBackoff time.Duration

	// UserAgent is the User-Agent header value.
	// Required. Must be non-empty.
	UserAgent string

	// AllowNonIdempotentRetry enables retry for non-idempotent methods (POST, PUT, PATCH, DELETE).
	// Default: false (only retry GET, HEAD, OPTIONS for safety).
	AllowNonIdempotentRetry bool

	// Logger receives request logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:                 BackendNative,
		CurlPath:                "curl",
		SpawnBurst:              1,
		Timeout:                 30 * time.Second,
		RetryAttempts:           3,
		RetryBackoff:            100 * time.Millisecond,
		MaxBackoff:              30 * time.Second,
		UserAgent:               "curlfetch/1.0",
		AllowNonIdempotentRetry: false,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendNative, BackendCurl:
	default:
		return &cerrors.ValidationError{
			Field:   "backend",
			Message: fmt.Sprintf("unknown backend %q", c.Backend),
			Hint:    "Use \"native\" or \"curl\"",
		}
	}

	if c.Timeout <= 0 {
		return &cerrors.ValidationError{Field: "timeout", Message: fmt.Sprintf("timeout must be > 0, got %v", c.Timeout)}
	}

	if c.RetryAttempts < 0 {
		return &cerrors.ValidationError{Field: "retry_attempts", Message: fmt.Sprintf("retry_attempts must be >= 0, got %d", c.RetryAttempts)}
	}

	// If retries enabled, validate retry config
	if c.RetryAttempts > 0 {
		if c.RetryBackoff <= 0 {
			return &cerrors.ValidationError{Field: "retry_backoff", Message: fmt.Sprintf("retry_backoff must be > 0 when retry_attempts > 0, got %v", c.RetryBackoff)}
		}

		if c.MaxBackoff < c.RetryBackoff {
			return &cerrors.ValidationError{Field: "max_backoff", Message: fmt.Sprintf("max_backoff (%v) must be >= retry_backoff (%v)", c.MaxBackoff, c.RetryBackoff)}
		}
	}

	if c.SpawnRate < 0 {
		return &cerrors.ValidationError{Field: "spawn_rate", Message: fmt.Sprintf("spawn_rate must be >= 0, got %v", c.SpawnRate)}
	}

	if c.UserAgent == "" {
		return &cerrors.ValidationError{Field: "user_agent", Message: "user_agent is required and must be non-empty"}
	}

	return nil
}
