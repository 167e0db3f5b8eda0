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
	"log/slog"

	"github.com/tombee/curlfetch/internal/log"
)

// OnChunk is the streaming filter. It is called with every piece of process
// output, in arrival order, and returns the bytes to forward to the consumer.
//
// Until the end of the header block has been seen, CR bytes are removed and
// the header is collected as it goes. Only the last few raw bytes are kept
// back so the terminator can be matched across chunk boundaries. Once it has
// been seen, chunks are returned unchanged.
//
// The returned slice may alias chunk and is only valid until the next call.
// OnChunk must not be called concurrently for the same transfer.
func (t *Transfer) OnChunk(chunk []byte) []byte {
	if t.headComplete != nil {
		bodyBytes.Add(float64(len(chunk)))
		return chunk
	}

	// pending never holds a whole terminator, so any match ends in chunk.
	prev := len(t.pending)
	data := append(t.pending, chunk...)

	k := findHeaderEnd(data, 0)
	if k < 0 {
		out := StripCR(chunk)
		t.head = append(t.head, out...)
		t.pending = append(t.pending[:0], data[max(0, len(data)-markerLookback):]...)
		headerBytes.Add(float64(len(out)))
		return out
	}

	head := StripCR(data[prev:k])
	header := append(t.head, head...)
	contentType, ok := ExtractContentType(header)
	t.mu.Lock()
	t.headComplete = header
	t.contentType, t.hasContentType = contentType, ok
	t.mu.Unlock()

	out := make([]byte, 0, len(head)+len(data)-k)
	out = append(out, head...)
	out = append(out, data[k:]...)
	t.pending, t.head = nil, nil

	headerBytes.Add(float64(len(head)))
	bodyBytes.Add(float64(len(out) - len(head)))

	log.Trace(t.logger, "header block complete",
		slog.Int("header_bytes", len(t.headComplete)),
		slog.String("content_type", t.contentType),
	)
	return out
}

// HeaderComplete reports whether the end of the header block has been seen.
func (t *Transfer) HeaderComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.headComplete != nil
}

// Header returns the captured header block with CR bytes removed, or nil if
// the end of the headers has not been seen.
func (t *Transfer) Header() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.headComplete
}

// ContentType returns the value of the Content-Type header, if any.
func (t *Transfer) ContentType() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.contentType, t.hasContentType
}
