package httpclient

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tombee/curlfetch/pkg/transfer"
)

// New creates a new HTTP client with the given configuration.
// The client includes:
//   - The selected backend (native net/http or the external transfer tool)
//   - Retry logic with exponential backoff (configurable)
//   - Request logging with sanitized URLs
//   - User-Agent header injection
//   - Correlation ID propagation
//
// Returns an error if the configuration is invalid or, for BackendCurl, if
// the transfer executable cannot be found.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseTransport, err := newBaseTransport(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Layer 1: Logging transport (innermost custom layer)
	loggingTrans := newLoggingTransport(baseTransport, cfg.UserAgent, logger)

	// Layer 2: Retry transport, only applied if retries are enabled
	var finalTransport http.RoundTripper = loggingTrans
	if cfg.RetryAttempts > 0 {
		finalTransport = newRetryTransport(loggingTrans, cfg)
	}

	return &http.Client{
		Transport: finalTransport,
		Timeout:   cfg.Timeout,
	}, nil
}

// newBaseTransport returns the RoundTripper that performs the transfer.
func newBaseTransport(cfg Config, logger *slog.Logger) (http.RoundTripper, error) {
	if cfg.Backend == BackendCurl {
		tcfg := transfer.DefaultConfig()
		if cfg.CurlPath != "" {
			tcfg.Executable = cfg.CurlPath
		}
		tcfg.ExtraArgs = cfg.CurlArgs
		tcfg.Logger = logger
		l, err := transfer.New(tcfg)
		if err != nil {
			return nil, err
		}
		return transfer.NewTransport(l, transfer.WithSpawnLimit(cfg.SpawnRate, cfg.SpawnBurst)), nil
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		// TLS configuration: 1.2 minimum, 1.3 preferred
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}, nil
}
