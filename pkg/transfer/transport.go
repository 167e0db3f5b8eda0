// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transfer

import (
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tombee/curlfetch/internal/urlsafe"
)

const tracerName = "github.com/tombee/curlfetch/pkg/transfer"

// Transport is an http.RoundTripper that performs each request with the
// external transfer tool. Like any RoundTripper it does not follow redirects
// or interpret status codes.
type Transport struct {
	launcher *Launcher
	limiter  *rate.Limiter
	tracer   trace.Tracer
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithSpawnLimit limits how many processes the transport starts per second.
// A burst of at least 1 is always allowed.
func WithSpawnLimit(perSecond float64, burst int) TransportOption {
	return func(t *Transport) {
		if perSecond <= 0 {
			return
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithTracer sets the tracer used for round-trip spans.
func WithTracer(tracer trace.Tracer) TransportOption {
	return func(t *Transport) {
		t.tracer = tracer
	}
}

// NewTransport returns a RoundTripper backed by l.
func NewTransport(l *Launcher, opts ...TransportOption) *Transport {
	t := &Transport{
		launcher: l,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper. It blocks until the process has
// exited; cancelling the request context kills it.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(req.Context(), "transfer.RoundTrip",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", urlsafe.Sanitize(req.URL)),
		),
	)
	defer span.End()

	if req.Body != nil {
		defer req.Body.Close()
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "spawn limit")
			return nil, err
		}
	}

	var body io.Reader
	if req.Body != nil && req.Body != http.NoBody {
		body = req.Body
	}

	buf, err := t.launcher.Start(ctx, Request{
		URL:    req.URL.String(),
		Method: req.Method,
		Header: req.Header,
		Body:   body,
	}, nil, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "spawn failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("curlfetch.transfer_id", buf.TransferID()))

	<-buf.Done()
	if err := buf.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer terminated abnormally")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, err
	}

	resp, err := buf.Response(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed response")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}
