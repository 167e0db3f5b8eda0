package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tombee/curlfetch/internal/log"
	"github.com/tombee/curlfetch/internal/tracing"
	"github.com/tombee/curlfetch/internal/urlsafe"
)

// loggingTransport wraps an http.RoundTripper to add:
// - Request logging with sanitized URLs
// - User-Agent header injection
// - Correlation ID propagation
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

// newLoggingTransport creates a new logging transport that wraps the base transport.
func newLoggingTransport(base http.RoundTripper, userAgent string, logger *slog.Logger) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &loggingTransport{
		base:      base,
		userAgent: userAgent,
		logger:    log.WithComponent(logger, "httpclient"),
	}
}

// RoundTrip implements http.RoundTripper.
// Logs all requests with method, URL (sanitized), status/error, and duration.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	logger := t.logger
	if corrID := tracing.FromContextOrEmpty(req.Context()); corrID.IsValid() {
		req.Header.Set(tracing.HeaderCorrelationID, corrID.String())
		logger = log.WithCorrelationID(logger, corrID.String())
	}

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	logURL := urlsafe.Sanitize(req.URL)

	if err != nil {
		logger.Warn("http request failed",
			"method", req.Method,
			log.URLKey, logURL,
			log.DurationKey, duration,
			log.Error(err),
		)
	} else {
		level := slog.LevelDebug
		if resp.StatusCode >= 400 {
			level = slog.LevelWarn
		}
		logger.Log(req.Context(), level, "http request",
			"method", req.Method,
			log.URLKey, logURL,
			log.StatusKey, resp.StatusCode,
			log.DurationKey, duration,
		)
	}

	return resp, err
}
