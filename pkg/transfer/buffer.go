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
	"mime"
	"sync"
)

// stderrTail bounds how much of the tool's stderr is kept for error reports.
const stderrTail = 4096

// Consumer receives the filtered output of a transfer. p is only valid for
// the duration of the call. A non-nil error aborts the transfer.
type Consumer interface {
	Consume(t *Transfer, p []byte) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(t *Transfer, p []byte) error

// Consume calls f(t, p).
func (f ConsumerFunc) Consume(t *Transfer, p []byte) error {
	return f(t, p)
}

// BufferConsumer appends forwarded bytes to the transfer's buffer.
var BufferConsumer Consumer = ConsumerFunc(func(t *Transfer, p []byte) error {
	_, err := t.buf.Write(p)
	return err
})

// Buffer accumulates the raw response of a transfer. Bytes are stored as
// received, with no text decoding. A Buffer can be handed back to Retrieve to
// be reused by a later transfer, which resets it first.
type Buffer struct {
	name string

	mu       sync.RWMutex
	data     []byte
	transfer *Transfer
}

// NewBuffer creates an empty buffer with the given name.
func NewBuffer(name string) *Buffer {
	return &Buffer{name: name}
}

// Name returns the buffer name. Buffers created by Retrieve are named after
// the URL.
func (b *Buffer) Name() string {
	return b.name
}

// attach binds b to a new transfer and clears previous content. It fails if
// the current transfer has not settled yet. A settled transfer's callback may
// still be running; that is where retries reuse the buffer from.
func (b *Buffer) attach(t *Transfer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transfer != nil && !b.transfer.Settled() {
		return ErrBufferBusy
	}
	b.transfer = t
	b.data = b.data[:0]
	return nil
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
	return len(p), nil
}

// Bytes returns a copy of the accumulated output.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the number of accumulated bytes.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Transfer returns the transfer currently or last bound to the buffer.
func (b *Buffer) Transfer() *Transfer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.transfer
}

// TransferID returns the ID of the bound transfer, or "".
func (b *Buffer) TransferID() string {
	if t := b.Transfer(); t != nil {
		return t.id
	}
	return ""
}

// Header returns the captured header block, or nil if none was detected.
func (b *Buffer) Header() []byte {
	if t := b.Transfer(); t != nil {
		return t.Header()
	}
	return nil
}

// Body returns the bytes after the header block. When no header block was
// detected the whole output is header region and Body returns nil.
func (b *Buffer) Body() []byte {
	header := b.Header()
	if header == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(header) > len(b.data) {
		return nil
	}
	out := make([]byte, len(b.data)-len(header))
	copy(out, b.data[len(header):])
	return out
}

// ContentType returns the recorded Content-Type value.
func (b *Buffer) ContentType() (string, bool) {
	if t := b.Transfer(); t != nil {
		return t.ContentType()
	}
	return "", false
}

// MediaType parses the recorded Content-Type. It returns "" when the header
// is absent or unparsable.
func (b *Buffer) MediaType() (string, map[string]string) {
	ct, ok := b.ContentType()
	if !ok {
		return "", nil
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", nil
	}
	return mediaType, params
}

// Done is closed when the bound transfer has settled. A buffer with no
// transfer returns a closed channel.
func (b *Buffer) Done() <-chan struct{} {
	if t := b.Transfer(); t != nil {
		return t.Done()
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Err returns the bound transfer's termination error, if any.
func (b *Buffer) Err() error {
	if t := b.Transfer(); t != nil {
		return t.Err()
	}
	return nil
}

// tailBuffer is an io.Writer that keeps only the last limit bytes written.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (w *tailBuffer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, p...)
	if over := len(w.data) - w.limit; over > 0 {
		w.data = append(w.data[:0], w.data[over:]...)
	}
	return len(p), nil
}

func (w *tailBuffer) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.data)
}
