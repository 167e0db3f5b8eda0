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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// Response parses the buffered output into an *http.Response for req.
// Interim 1xx blocks and a proxy's "Connection established" block are
// skipped. The body has already been decoded by the tool, so the
// Transfer-Encoding header is dropped and ContentLength is the body size.
func (b *Buffer) Response(req *http.Request) (*http.Response, error) {
	data := b.Bytes()
	for {
		resp, rest, err := parseResponse(data)
		if err != nil {
			return nil, err
		}
		if isInterim(resp) && bytes.HasPrefix(rest, []byte("HTTP/")) {
			data = rest
			continue
		}

		resp.Request = req
		resp.Header.Del("Transfer-Encoding")
		resp.ContentLength = int64(len(rest))
		if req != nil && req.Method == http.MethodHead {
			resp.ContentLength = -1
			if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
				resp.ContentLength = n
			}
		}
		resp.Body = io.NopCloser(bytes.NewReader(rest))
		return resp, nil
	}
}

// parseResponse parses one status line and header block from data and
// returns the remaining bytes.
func parseResponse(data []byte) (*http.Response, []byte, error) {
	end := FindHeaderEnd(data)
	if end < 0 {
		return nil, nil, fmt.Errorf("%w: no end of headers in %d bytes", ErrMalformedResponse, len(data))
	}

	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(data[:end])))
	line, err := r.ReadLine()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	resp, err := parseStatusLine(line)
	if err != nil {
		return nil, nil, err
	}

	header, err := r.ReadMIMEHeader()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	resp.Header = http.Header(header)
	return resp, data[end:], nil
}

// parseStatusLine parses "HTTP/1.1 200 OK". The reason phrase is optional.
// curl prints HTTP/2 responses as "HTTP/2 200".
func parseStatusLine(line string) (*http.Response, error) {
	proto, rest, ok := strings.Cut(line, " ")
	if !ok {
		return nil, fmt.Errorf("%w: bad status line %q", ErrMalformedResponse, line)
	}
	code, reason, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")

	statusCode, err := strconv.Atoi(code)
	if err != nil || len(code) != 3 || statusCode < 100 {
		return nil, fmt.Errorf("%w: bad status code %q", ErrMalformedResponse, code)
	}

	var major, minor int
	switch proto {
	case "HTTP/2", "HTTP/2.0":
		major = 2
	case "HTTP/3", "HTTP/3.0":
		major = 3
	default:
		if major, minor, ok = http.ParseHTTPVersion(proto); !ok {
			return nil, fmt.Errorf("%w: bad protocol %q", ErrMalformedResponse, proto)
		}
	}

	if reason == "" {
		reason = http.StatusText(statusCode)
	}
	return &http.Response{
		Status:     code + " " + reason,
		StatusCode: statusCode,
		Proto:      proto,
		ProtoMajor: major,
		ProtoMinor: minor,
	}, nil
}

// isInterim reports whether resp is a block that precedes the final response.
func isInterim(resp *http.Response) bool {
	if resp.StatusCode >= 100 && resp.StatusCode < 200 && resp.StatusCode != http.StatusSwitchingProtocols {
		return true
	}
	return resp.StatusCode == http.StatusOK &&
		strings.Contains(strings.ToLower(resp.Status), "connection established")
}
