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

// Package request implements the request command: a single HTTP request
// through the configured client backend, native or the transfer tool.
package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/curlfetch/internal/cli/format"
	"github.com/tombee/curlfetch/internal/commands/completion"
	"github.com/tombee/curlfetch/internal/commands/shared"
	"github.com/tombee/curlfetch/internal/expect"
	"github.com/tombee/curlfetch/internal/jq"
	"github.com/tombee/curlfetch/internal/log"
	"github.com/tombee/curlfetch/internal/urlsafe"
	"github.com/tombee/curlfetch/pkg/httpclient"
	"github.com/tombee/curlfetch/pkg/transfer"
)

type options struct {
	method  string
	headers []string
	data    string
	include bool
	fail    bool
	output  string
	backend string
	retries int
	jqExpr  string
	raw     bool
	expect  string
}

// NewRequestCommand creates the request command
func NewRequestCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "request URL",
		Short: "Send one HTTP request through the configured backend",
		Long: `Send one HTTP request with the curlfetch HTTP client. The client retries
idempotent requests on transient failures and logs every attempt.

With --backend curl the request is performed by the transfer tool, one
process per attempt; with --backend native it uses the Go HTTP stack.`,
		Example: `  curlfetch request https://example.com/api
  curlfetch request -X POST -H 'Content-Type: application/json' -d '{"a":1}' https://example.com/api
  curlfetch request --backend curl -d @payload.json https://example.com/upload`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.method, "request", "X", "", "Request method (default GET, or POST with --data)")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	f.StringVarP(&opts.data, "data", "d", "", "Request body; @FILE reads a file, @- reads stdin")
	f.BoolVarP(&opts.include, "include", "i", false, "Include the response status and headers in the output")
	f.BoolVarP(&opts.fail, "fail", "f", false, "Exit with code 22 on HTTP status 400 or above")
	f.StringVarP(&opts.output, "output", "o", "", "Write the response to a file instead of stdout")
	f.StringVar(&opts.backend, "backend", "", "Client backend: native or curl (default from config)")
	f.IntVar(&opts.retries, "retries", -1, "Retry attempts (default from config)")
	f.StringVar(&opts.jqExpr, "jq", "", "Filter a JSON body with a jq expression")
	f.BoolVarP(&opts.raw, "raw-output", "r", false, "With --jq, print strings without quotes")
	f.StringVar(&opts.expect, "expect", "", "Exit with code 6 unless the expression holds for the response")

	_ = cmd.RegisterFlagCompletionFunc("request", completion.CompleteMethods)
	_ = cmd.RegisterFlagCompletionFunc("header", completion.CompleteHeaders)
	_ = cmd.RegisterFlagCompletionFunc("backend", completion.CompleteBackends)

	return cmd
}

func (o *options) run(cmd *cobra.Command, rawURL string) error {
	if o.raw && o.jqExpr == "" {
		return shared.NewUsageError("--raw-output requires --jq", nil)
	}
	if o.jqExpr != "" {
		if err := jq.NewExecutor(0, 0).Validate(o.jqExpr); err != nil {
			return shared.NewUsageError("invalid --jq expression", err)
		}
	}
	var expectation *expect.Expectation
	if o.expect != "" {
		e, err := expect.Compile(o.expect)
		if err != nil {
			return shared.NewUsageError("invalid --expect expression", err)
		}
		expectation = e
	}
	header, err := shared.ParseHeaders(o.headers)
	if err != nil {
		return err
	}
	body, err := o.readBody(cmd)
	if err != nil {
		return err
	}

	rt, err := shared.Setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.Config.HTTPClient()
	cfg.Logger = rt.Logger
	if o.backend != "" {
		cfg.Backend = httpclient.Backend(strings.ToLower(o.backend))
	}
	if o.retries >= 0 {
		cfg.RetryAttempts = o.retries
	}
	client, err := httpclient.New(cfg)
	if err != nil {
		if errors.Is(err, transfer.ErrExecutableNotFound) {
			return shared.NewToolMissingError(err)
		}
		return shared.NewUsageError("invalid client settings", err)
	}

	method := strings.ToUpper(o.method)
	if method == "" {
		method = http.MethodGet
		if body != nil {
			method = http.MethodPost
		}
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(rt.Context, method, rawURL, reqBody)
	if err != nil {
		return shared.NewUsageError(fmt.Sprintf("invalid request for %q", urlsafe.SanitizeString(rawURL)), err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		rt.Logger.Debug("request failed", log.Error(err))
		return shared.NewTransferError(method+" "+urlsafe.Sanitize(req.URL)+" failed", err)
	}
	defer resp.Body.Close()

	if o.fail && resp.StatusCode >= 400 {
		return shared.NewHTTPError(resp.Status + " from " + urlsafe.Sanitize(req.URL))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.NewTransferError("failed to read response body", err)
	}

	out, err := shared.OpenOutput(cmd, o.output)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := o.render(rt.Context, out, resp, respBody); err != nil {
		return err
	}

	if expectation != nil {
		if err := expectation.Check(expect.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}); err != nil {
			return shared.NewExpectationError(urlsafe.Sanitize(req.URL), err)
		}
	}
	return nil
}

func (o *options) render(ctx context.Context, out *shared.Output, resp *http.Response, body []byte) error {
	if o.include {
		if _, err := out.Write(format.Headers(statusAndHeaders(resp), out.Color)); err != nil {
			return err
		}
	}
	if o.jqExpr != "" {
		results, err := jq.NewExecutor(0, 0).Filter(ctx, o.jqExpr, body)
		if err != nil {
			return fmt.Errorf("jq: %w", err)
		}
		return shared.WriteJQResults(out, results, o.raw)
	}

	mediaType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return shared.WriteBody(out, body, mediaType, params["charset"])
}

// readBody resolves --data. It returns nil when no body was given.
func (o *options) readBody(cmd *cobra.Command) ([]byte, error) {
	switch {
	case o.data == "":
		return nil, nil
	case o.data == "@-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, shared.NewUsageError("failed to read body from stdin", err)
		}
		return data, nil
	case strings.HasPrefix(o.data, "@"):
		data, err := os.ReadFile(o.data[1:])
		if err != nil {
			return nil, shared.NewUsageError("failed to read body file", err)
		}
		return data, nil
	default:
		return []byte(o.data), nil
	}
}

// statusAndHeaders renders the status line and header block of resp.
func statusAndHeaders(resp *http.Response) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s\n", resp.Proto, resp.Status)
	_ = resp.Header.Write(&b)
	b.WriteString("\n")
	return b.Bytes()
}
