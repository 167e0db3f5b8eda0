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

// Package transfer retrieves HTTP(S) resources by running an external transfer
// tool (curl by default) instead of the built-in net/http stack.
//
// A retrieval is asynchronous: Retrieve spawns the tool, returns a *Buffer
// immediately, and invokes the registered Callback exactly once when the
// process finishes normally. The buffer then holds the raw response: status
// line and headers with carriage returns removed, the blank-line boundary,
// and the body bytes exactly as the tool wrote them.
//
// # Usage
//
//	l, err := transfer.New(transfer.DefaultConfig())
//	if err != nil {
//	    return err // tool not on PATH
//	}
//	buf, err := l.Retrieve(ctx, "https://example.com/", func(b *transfer.Buffer, args ...any) {
//	    ct, _ := b.ContentType()
//	    fmt.Println(ct, len(b.Body()))
//	}, nil, nil)
//
// # Streaming
//
// Process output arrives in chunks of arbitrary size. Each chunk goes through
// the transfer's streaming filter (OnChunk), which strips CR bytes until the
// end of the header block has been seen and passes everything after it
// through untouched, so binary bodies survive intact. The filtered bytes are
// handed to a Consumer, which by default appends them to the buffer.
//
// # Completion
//
// When the process exits, the sentinel (OnTermination) classifies the exit
// status. "finished" runs the callback; anything else produces a
// *TerminationError, available from Buffer.Err, and the callback is never run.
// Buffer.Done is closed in both cases.
//
// # net/http
//
// Transport adapts a Launcher to http.RoundTripper for callers that want a
// plain *http.Client backed by the external tool.
package transfer
