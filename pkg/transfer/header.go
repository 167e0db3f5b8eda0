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
	"bytes"
)

// markerLookback is how far before new data a header terminator may start.
// The longest terminator, "\r\n\r\n", is four bytes long.
const markerLookback = 3

var contentTypeKey = []byte("Content-Type")

// FindHeaderEnd returns the offset just past the first blank line in p,
// matching "\r?\n\r?\n", or -1 if p holds no complete terminator.
func FindHeaderEnd(p []byte) int {
	return findHeaderEnd(p, 0)
}

// findHeaderEnd is FindHeaderEnd starting the scan at from.
func findHeaderEnd(p []byte, from int) int {
	for i := from; i < len(p); {
		n := bytes.IndexByte(p[i:], '\n')
		if n < 0 {
			return -1
		}
		j := i + n + 1
		if j < len(p) && p[j] == '\r' {
			j++
		}
		if j < len(p) && p[j] == '\n' {
			return j + 1
		}
		i += n + 1
	}
	return -1
}

// StripCR returns p without carriage returns. p itself is returned when it
// contains none.
func StripCR(p []byte) []byte {
	if bytes.IndexByte(p, '\r') < 0 {
		return p
	}
	out := make([]byte, 0, len(p))
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\r')
		if i < 0 {
			out = append(out, p...)
			break
		}
		out = append(out, p[:i]...)
		p = p[i+1:]
	}
	return out
}

// ExtractContentType scans a header block line by line for a Content-Type
// field and returns its value. The key is matched case-insensitively;
// horizontal whitespace after the colon and at the end of the line is dropped.
// The value is otherwise kept whole, parameters included, so
// "text/html; charset=utf-8" is returned as is. Buffer.MediaType splits it.
func ExtractContentType(header []byte) (string, bool) {
	for len(header) > 0 {
		line := header
		if i := bytes.IndexByte(header, '\n'); i >= 0 {
			line, header = header[:i], header[i+1:]
		} else {
			header = nil
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 || !bytes.EqualFold(line[:colon], contentTypeKey) {
			continue
		}
		value := bytes.TrimLeft(line[colon+1:], " \t")
		value = bytes.TrimRight(value, " \t\r")
		return string(value), true
	}
	return "", false
}
