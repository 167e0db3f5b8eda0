// Package httpclient provides an HTTP client factory with consistent
// timeout, retry, and observability behavior for curlfetch.
//
// The transfer itself is done by one of two backends:
//   - BackendNative: a tuned net/http Transport (TLS 1.2+, connection pooling)
//   - BackendCurl: the external transfer tool via transfer.Transport
//
// Both are wrapped by the same layers:
//   - Automatic retry with exponential backoff and jitter
//   - Request logging with sanitized URLs (sensitive parameters redacted)
//   - User-Agent header injection
//   - Correlation ID propagation
//
// # Usage
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Backend = httpclient.BackendCurl
//	client, err := httpclient.New(cfg)
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Get("https://api.example.com/resource")
//
// # Retry Behavior
//
// The client retries transient failures with exponential backoff:
//   - HTTP 5xx, 408 and 429 (with Retry-After support)
//   - Network errors (connection refused, reset, temporary DNS failures)
//   - Transfer tool exits that curl reports as transient (resolve, connect,
//     timeout, TLS handshake, send/receive errors)
//   - Only idempotent methods (GET, HEAD, OPTIONS) unless
//     AllowNonIdempotentRetry is set; bodies are replayed through GetBody
//
// # Observability
//
// Requests are logged via log/slog at debug level, or warn for 4xx/5xx
// responses and errors, with method, url (sanitized), status and duration_ms.
package httpclient
