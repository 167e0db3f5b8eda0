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

package shared

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/curlfetch/internal/cli/format"
)

// Output is where a command writes a response.
type Output struct {
	io.Writer

	// Color is true when formatting for a terminal is enabled.
	Color bool

	// Terminal is true when the writer is a terminal, with or without color.
	Terminal bool

	closer io.Closer
}

// Close closes the output file, if one was opened.
func (o *Output) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// OpenOutput returns the command's stdout, or the file at path when path is
// set. Files never get color.
func OpenOutput(cmd *cobra.Command, path string) (*Output, error) {
	if path == "" || path == "-" {
		w := cmd.OutOrStdout()
		return &Output{
			Writer:   w,
			Color:    format.ColorEnabled(w),
			Terminal: format.IsTerminal(w),
		}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, NewUsageError("cannot open output file", err)
	}
	return &Output{Writer: f, closer: f}, nil
}

// ParseHeaders parses "Name: value" flag values into a header. An empty
// value ("Name:") is kept as an empty header.
func ParseHeaders(values []string) (http.Header, error) {
	if len(values) == 0 {
		return nil, nil
	}
	header := make(http.Header, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return nil, NewUsageError(fmt.Sprintf("invalid header %q", v), nil)
		}
		key := textproto.CanonicalMIMEHeaderKey(name)
		header[key] = append(header[key], strings.TrimSpace(value))
	}
	return header, nil
}

// WriteJQResults prints jq results one per line, indented like jq does.
// With raw, string results are printed without quotes.
func WriteJQResults(w io.Writer, results []any, raw bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	for _, r := range results {
		if s, ok := r.(string); ok && raw {
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
			continue
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode jq result: %w", err)
		}
	}
	return nil
}

// WriteBody writes a response body to out. On a terminal, a body declared
// in another charset is decoded to UTF-8 first and binary data is refused.
func WriteBody(out *Output, body []byte, mediaType, charset string) error {
	if out.Terminal {
		if decoded, err := format.ToUTF8(body, charset); err == nil {
			body = decoded
		}
	}
	if err := CheckBinary(out, body); err != nil {
		return err
	}
	_, err := out.Write(format.Body(body, mediaType, out.Color))
	return err
}

// CheckBinary refuses to print binary data to a terminal.
func CheckBinary(out *Output, body []byte) error {
	if out.Terminal && format.IsBinary(body) {
		return NewUsageError("binary output can mess up your terminal; use --output FILE or pipe the output", nil)
	}
	return nil
}
