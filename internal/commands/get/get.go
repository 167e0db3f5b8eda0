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

// Package get implements the get command: asynchronous retrieval of one or
// more URLs through the transfer tool.
package get

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/curlfetch/internal/cli/format"
	"github.com/tombee/curlfetch/internal/commands/completion"
	"github.com/tombee/curlfetch/internal/commands/shared"
	"github.com/tombee/curlfetch/internal/expect"
	"github.com/tombee/curlfetch/internal/jq"
	"github.com/tombee/curlfetch/internal/log"
	"github.com/tombee/curlfetch/internal/urlsafe"
	cerrors "github.com/tombee/curlfetch/pkg/errors"
	"github.com/tombee/curlfetch/pkg/transfer"
)

const tracerName = "github.com/tombee/curlfetch/internal/commands/get"

type options struct {
	include bool
	output  string
	jqExpr  string
	raw     bool
	headers []string
	fail    bool
	stream  bool
	timeout time.Duration
	expect  string

	expectation *expect.Expectation
}

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "get URL [URL...]",
		Short: "Retrieve URLs with the transfer tool",
		Long: `Retrieve one or more URLs. Every URL is handed to its own transfer
process at once; responses are printed in argument order as they complete.

JSON bodies are pretty-printed and highlighted on a terminal. Binary bodies
are never written to a terminal; use --output or a pipe.`,
		Example: `  curlfetch get https://example.com
  curlfetch get -i https://example.com/api/items --jq '.[].name' -r
  curlfetch get -H 'Accept: application/json' https://a.example https://b.example
  curlfetch get --expect 'status == 200 && json.healthy' https://example.com/health`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.include, "include", "i", false, "Include the response headers in the output")
	f.StringVarP(&opts.output, "output", "o", "", "Write the response to a file instead of stdout")
	f.StringVar(&opts.jqExpr, "jq", "", "Filter a JSON body with a jq expression")
	f.BoolVarP(&opts.raw, "raw-output", "r", false, "With --jq, print strings without quotes")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	f.BoolVarP(&opts.fail, "fail", "f", false, "Exit with code 22 on HTTP status 400 or above")
	f.BoolVar(&opts.stream, "stream", false, "Write the body as it arrives (single URL, no --jq)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Kill transfers still running after this long (0 = no limit)")
	f.StringVar(&opts.expect, "expect", "", "Exit with code 6 unless the expression holds for each response")

	_ = cmd.RegisterFlagCompletionFunc("header", completion.CompleteHeaders)

	return cmd
}

func (o *options) validate(args []string) error {
	if o.output != "" && len(args) > 1 {
		return shared.NewUsageError("--output accepts a single URL", nil)
	}
	if o.stream && len(args) > 1 {
		return shared.NewUsageError("--stream accepts a single URL", nil)
	}
	if o.stream && o.jqExpr != "" {
		return shared.NewUsageError("--stream cannot be combined with --jq", nil)
	}
	if o.raw && o.jqExpr == "" {
		return shared.NewUsageError("--raw-output requires --jq", nil)
	}
	if o.timeout < 0 {
		return shared.NewUsageError("--timeout must be non-negative", nil)
	}
	if o.jqExpr != "" {
		if err := jq.NewExecutor(0, 0).Validate(o.jqExpr); err != nil {
			return shared.NewUsageError("invalid --jq expression", err)
		}
	}
	if o.expect != "" {
		e, err := expect.Compile(o.expect)
		if err != nil {
			return shared.NewUsageError("invalid --expect expression", err)
		}
		o.expectation = e
	}
	return nil
}

func (o *options) run(cmd *cobra.Command, args []string) error {
	if err := o.validate(args); err != nil {
		return err
	}
	urls, err := parseURLs(args)
	if err != nil {
		return err
	}
	header, err := shared.ParseHeaders(o.headers)
	if err != nil {
		return err
	}

	rt, err := shared.Setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := shared.OpenOutput(cmd, o.output)
	if err != nil {
		return err
	}
	defer out.Close()

	var consumer transfer.Consumer
	if o.stream {
		consumer = newStreamConsumer(out, o.include)
	}
	launcher, err := rt.Launcher(consumer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(rt.Context)
	defer cancel()
	if o.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var completed atomic.Int32
	onComplete := func(buf *transfer.Buffer, args ...any) {
		completed.Add(1)
		rt.Logger.Debug("retrieval complete",
			slog.Int("index", args[0].(int)),
			slog.String(log.TransferIDKey, buf.TransferID()),
			slog.String(log.URLKey, urlsafe.SanitizeString(buf.Name())),
			slog.Int(log.BytesKey, buf.Len()),
		)
	}

	tracer := otel.Tracer(tracerName)
	bufs := make([]*transfer.Buffer, len(urls))
	spans := make([]trace.Span, len(urls))
	for i, u := range urls {
		spanCtx, span := tracer.Start(ctx, "get", trace.WithAttributes(
			attribute.String("url.full", urlsafe.Sanitize(u)),
			attribute.Int("curlfetch.index", i),
		))
		var buf *transfer.Buffer
		if header != nil {
			buf, err = launcher.Start(spanCtx, transfer.Request{URL: u.String(), Header: header}, onComplete, []any{i}, nil)
		} else {
			buf, err = launcher.RetrieveURL(spanCtx, u, onComplete, []any{i}, nil)
		}
		if err != nil {
			endSpan(span, err)
			for _, s := range spans[:i] {
				s.End()
			}
			return shared.NewTransferError("failed to start transfer of "+urlsafe.Sanitize(u), err)
		}
		span.SetAttributes(attribute.String("curlfetch.transfer_id", buf.TransferID()))
		bufs[i], spans[i] = buf, span
	}

	var errs []error
	for i, buf := range bufs {
		<-buf.Done()
		err := o.render(ctx, out, buf)
		endSpan(spans[i], err)
		if err != nil {
			errs = append(errs, err)
		}
	}

	rt.Logger.Debug("retrievals settled",
		slog.Int("total", len(bufs)),
		slog.Int("completed", int(completed.Load())),
	)
	return errors.Join(errs...)
}

// render writes one settled transfer to out.
func (o *options) render(ctx context.Context, out *shared.Output, buf *transfer.Buffer) error {
	name := urlsafe.SanitizeString(buf.Name())
	if err := buf.Err(); err != nil {
		var exitErr *shared.ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		if o.timedOut(ctx, err) {
			err = &cerrors.TimeoutError{Operation: "GET " + name, Duration: o.timeout, Cause: err}
		}
		msg := "transfer of " + name + " failed"
		if cerrors.IsRetryable(err) {
			msg += " (may succeed on retry)"
		}
		return shared.NewTransferError(msg, err)
	}

	resp, err := buf.Response(nil)
	if err != nil {
		// Not an HTTP response, e.g. a file:// URL. Print it as received.
		raw := buf.Bytes()
		if err := o.renderHeaderless(ctx, out, buf, raw); err != nil {
			return err
		}
		return o.check(name, expect.Response{Body: raw})
	}
	defer resp.Body.Close()

	if o.fail && resp.StatusCode >= 400 {
		return shared.NewHTTPError(resp.Status + " from " + name)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if !o.stream {
		if err := o.renderResponse(ctx, out, buf, resp, body); err != nil {
			return err
		}
	}
	return o.check(name, expect.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body})
}

func (o *options) renderResponse(ctx context.Context, out *shared.Output, buf *transfer.Buffer, resp *http.Response, body []byte) error {
	if o.include {
		raw := buf.Bytes()
		if _, err := out.Write(format.Headers(raw[:len(raw)-len(body)], out.Color)); err != nil {
			return err
		}
	}
	if o.jqExpr != "" {
		return o.filter(ctx, out, body)
	}
	mt, params := mediaType(buf, resp.Header.Get("Content-Type"))
	return shared.WriteBody(out, body, mt, params["charset"])
}

// renderHeaderless writes output that never completed a header block. In
// stream mode the consumer holds such bytes back unless headers are
// included, so only those are written here.
func (o *options) renderHeaderless(ctx context.Context, out *shared.Output, buf *transfer.Buffer, raw []byte) error {
	switch {
	case o.stream:
		if buf.Header() != nil || o.include {
			return nil
		}
		return shared.WriteBody(out, raw, "", "")
	case o.jqExpr != "":
		return o.filter(ctx, out, raw)
	default:
		return shared.WriteBody(out, raw, "", "")
	}
}

// timedOut reports whether err is a transfer killed because --timeout
// expired.
func (o *options) timedOut(ctx context.Context, err error) bool {
	var termErr *transfer.TerminationError
	return o.timeout > 0 &&
		errors.Is(ctx.Err(), context.DeadlineExceeded) &&
		errors.As(err, &termErr) && termErr.ExitCode < 0
}

// check runs --expect, if given.
func (o *options) check(name string, resp expect.Response) error {
	if o.expectation == nil {
		return nil
	}
	if err := o.expectation.Check(resp); err != nil {
		return shared.NewExpectationError(name, err)
	}
	return nil
}

func (o *options) filter(ctx context.Context, out *shared.Output, body []byte) error {
	results, err := jq.NewExecutor(0, 0).Filter(ctx, o.jqExpr, body)
	if err != nil {
		return fmt.Errorf("jq: %w", err)
	}
	return shared.WriteJQResults(out, results, o.raw)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// mediaType prefers the content type recorded while the headers streamed
// in. fallback is used when the first header block had none, as with an
// interim 100 Continue.
func mediaType(buf *transfer.Buffer, fallback string) (string, map[string]string) {
	if mt, params := buf.MediaType(); mt != "" {
		return mt, params
	}
	mt, params, err := mime.ParseMediaType(fallback)
	if err != nil {
		return "", nil
	}
	return mt, params
}

func parseURLs(args []string) ([]*url.URL, error) {
	urls := make([]*url.URL, 0, len(args))
	for _, arg := range args {
		u, err := url.Parse(arg)
		if err != nil {
			return nil, shared.NewUsageError(fmt.Sprintf("invalid URL %q", urlsafe.SanitizeString(arg)), err)
		}
		if u.Scheme == "" || (u.Host == "" && u.Scheme != "file") {
			return nil, shared.NewUsageError(fmt.Sprintf("invalid URL %q: scheme and host are required", urlsafe.Sanitize(u)), nil)
		}
		urls = append(urls, u)
	}
	return urls, nil
}
