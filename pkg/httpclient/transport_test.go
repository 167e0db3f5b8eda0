package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/curlfetch/internal/tracing"
)

// jsonLogger returns a debug-level JSON logger and the buffer it writes to.
func jsonLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// logRecords decodes one JSON object per line.
func logRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

// headerEcho replies 200 with the value of the named request header.
func headerEcho(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get(name)))
	}
}

func roundTripBody(t *testing.T, rt http.RoundTripper, req *http.Request) string {
	t.Helper()
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var b bytes.Buffer
	_, err = b.ReadFrom(resp.Body)
	require.NoError(t, err)
	return b.String()
}

func TestLoggingTransport_UserAgent(t *testing.T) {
	server := httptest.NewServer(headerEcho("User-Agent"))
	defer server.Close()

	tests := []struct {
		name   string
		preset string
		want   string
	}{
		{"injected", "", "curlfetch-test/1.0"},
		{"caller value kept", "custom-agent/2.0", "custom-agent/2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newLoggingTransport(http.DefaultTransport, "curlfetch-test/1.0", nil)
			req, err := http.NewRequest(http.MethodGet, server.URL, nil)
			require.NoError(t, err)
			if tt.preset != "" {
				req.Header.Set("User-Agent", tt.preset)
			}

			assert.Equal(t, tt.want, roundTripBody(t, transport, req))
			assert.Equal(t, tt.preset, req.Header.Get("User-Agent"), "caller's request is not modified")
		})
	}
}

func TestLoggingTransport_CorrelationID(t *testing.T) {
	server := httptest.NewServer(headerEcho(tracing.HeaderCorrelationID))
	defer server.Close()

	logger, logs := jsonLogger()
	transport := newLoggingTransport(http.DefaultTransport, "ua", logger)

	corrID := tracing.NewCorrelationID()
	ctx := tracing.ToContext(context.Background(), corrID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, corrID.String(), roundTripBody(t, transport, req))
	assert.Empty(t, req.Header.Get(tracing.HeaderCorrelationID))

	records := logRecords(t, logs)
	require.Len(t, records, 1)
	assert.Equal(t, corrID.String(), records[0]["correlation_id"])
	assert.Equal(t, "httpclient", records[0]["component"])
}

func TestLoggingTransport_NoCorrelationIDWithoutContext(t *testing.T) {
	server := httptest.NewServer(headerEcho(tracing.HeaderCorrelationID))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "ua", nil)
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	assert.Empty(t, roundTripBody(t, transport, req))
}

func TestLoggingTransport_LogLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "DEBUG"},
		{http.StatusNotModified, "DEBUG"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "WARN"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			logger, logs := jsonLogger()
			transport := newLoggingTransport(http.DefaultTransport, "ua", logger)
			req, err := http.NewRequest(http.MethodGet, server.URL+"/items?token=s3cr3t&page=2", nil)
			require.NoError(t, err)
			_ = roundTripBody(t, transport, req)

			records := logRecords(t, logs)
			require.Len(t, records, 1)
			rec := records[0]
			assert.Equal(t, tt.level, rec["level"])
			assert.Equal(t, "http request", rec["msg"])
			assert.Equal(t, float64(tt.status), rec["status"])
			assert.Equal(t, http.MethodGet, rec["method"])
			assert.Contains(t, rec, "duration_ms")
			assert.NotContains(t, rec["url"], "s3cr3t")
			assert.Contains(t, rec["url"], "page=2")
		})
	}
}

func TestLoggingTransport_LogsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	logger, logs := jsonLogger()
	transport := newLoggingTransport(http.DefaultTransport, "ua", logger)
	req, err := http.NewRequest(http.MethodGet, "http://user:hunter2@"+strings.TrimPrefix(target, "http://"), nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	require.Error(t, err)

	records := logRecords(t, logs)
	require.Len(t, records, 1)
	assert.Equal(t, "WARN", records[0]["level"])
	assert.Equal(t, "http request failed", records[0]["msg"])
	assert.NotEmpty(t, records[0]["error"])
	assert.NotContains(t, records[0]["url"], "hunter2")
}
