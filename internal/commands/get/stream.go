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

package get

import (
	"github.com/tombee/curlfetch/internal/cli/format"
	"github.com/tombee/curlfetch/internal/commands/shared"
	"github.com/tombee/curlfetch/pkg/transfer"
)

// streamConsumer keeps the full output in the transfer's buffer and writes
// the body to out as it arrives. With include the header region is written
// too.
type streamConsumer struct {
	out     *shared.Output
	include bool

	forwarded int
	checked   bool
}

func newStreamConsumer(out *shared.Output, include bool) *streamConsumer {
	return &streamConsumer{out: out, include: include}
}

// Consume implements transfer.Consumer. An error aborts the transfer.
func (s *streamConsumer) Consume(t *transfer.Transfer, p []byte) error {
	if err := transfer.BufferConsumer.Consume(t, p); err != nil {
		return err
	}

	start := s.forwarded
	s.forwarded += len(p)
	if !t.HeaderComplete() {
		if s.include {
			return s.write(p, true)
		}
		return nil
	}

	// Header bytes are forwarded exactly once, so the first len(header)
	// forwarded bytes are the header region.
	split := min(max(len(t.Header())-start, 0), len(p))
	if s.include && split > 0 {
		if err := s.write(p[:split], true); err != nil {
			return err
		}
	}
	body := p[split:]
	if len(body) == 0 {
		return nil
	}
	if !s.checked {
		s.checked = true
		if err := shared.CheckBinary(s.out, body); err != nil {
			return err
		}
	}
	return s.write(body, false)
}

func (s *streamConsumer) write(p []byte, header bool) error {
	if header {
		p = format.Headers(p, s.out.Color)
	}
	_, err := s.out.Write(p)
	return err
}
