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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/curlfetch/internal/log"
)

// StatusFinished is the status text of a process that exited cleanly.
const StatusFinished = "finished"

// Callback is run once a transfer has finished normally. buf is final when
// the callback runs; args are the values bound at launch.
type Callback func(buf *Buffer, args ...any)

// callbackRecord is a callback together with its bound arguments.
type callbackRecord struct {
	fn   Callback
	args []any
}

// ProcessStatus is what the process monitor reports about a transfer's process.
type ProcessStatus struct {
	// Live is true while the process is still running.
	Live bool

	// Text classifies the termination: StatusFinished, "exited abnormally
	// with code N", "killed by signal S", or an error description.
	Text string

	// ExitCode is the exit code, or -1 when unknown or signalled.
	ExitCode int
}

// Finished reports whether the status is a clean finish.
func (s ProcessStatus) Finished() bool {
	return !s.Live && strings.HasPrefix(s.Text, StatusFinished)
}

// statusFromWait classifies the result of exec.Cmd.Wait.
func statusFromWait(state *os.ProcessState, waitErr error) ProcessStatus {
	if state == nil {
		text := "failed"
		if waitErr != nil {
			text = "failed: " + waitErr.Error()
		}
		return ProcessStatus{Text: text, ExitCode: -1}
	}
	if waitErr == nil && state.Success() {
		return ProcessStatus{Text: StatusFinished, ExitCode: 0}
	}

	code := state.ExitCode()
	if code < 0 {
		// Go renders signalled processes as "signal: killed".
		return ProcessStatus{Text: "killed by " + state.String(), ExitCode: -1}
	}
	if code == 0 && waitErr != nil {
		return ProcessStatus{Text: "failed: " + waitErr.Error(), ExitCode: 0}
	}
	return ProcessStatus{Text: fmt.Sprintf("exited abnormally with code %d", code), ExitCode: code}
}

// Transfer is one retrieval: one external process writing into one buffer.
// All per-transfer state lives here; transfers share nothing mutable.
type Transfer struct {
	id         string
	url        string
	executable string
	buf        *Buffer
	cb         callbackRecord
	consumer   Consumer
	onFatal    func(*Transfer, error)
	logger     *slog.Logger
	started    time.Time

	// Streaming filter state, owned by the reader goroutine. pending holds
	// at most markerLookback raw bytes; head is the CR-stripped header so far.
	pending []byte
	head    []byte

	mu             sync.Mutex
	headComplete   []byte
	contentType    string
	hasContentType bool
	pid            int
	stderr         *tailBuffer
	cause          error

	settled sync.Once
	final   atomic.Bool
	done    chan struct{}
	err     error
}

// newTransfer creates a transfer bound to buf. The callback is bound here,
// before any process exists.
func newTransfer(rawURL, executable string, buf *Buffer, cb Callback, args []any, consumer Consumer, logger *slog.Logger) *Transfer {
	id := uuid.NewString()
	if logger == nil {
		logger = slog.Default()
	}
	if consumer == nil {
		consumer = BufferConsumer
	}
	return &Transfer{
		id:         id,
		url:        rawURL,
		executable: executable,
		buf:        buf,
		cb:         callbackRecord{fn: cb, args: args},
		consumer:   consumer,
		logger:     logger.With(slog.String(log.TransferIDKey, id)),
		started:    time.Now(),
		stderr:     newTailBuffer(stderrTail),
		done:       make(chan struct{}),
	}
}

// ID returns the transfer's unique identifier.
func (t *Transfer) ID() string { return t.id }

// URL returns the target URL.
func (t *Transfer) URL() string { return t.url }

// Buffer returns the buffer the transfer writes into.
func (t *Transfer) Buffer() *Buffer { return t.buf }

// PID returns the process ID, or 0 before the process started.
func (t *Transfer) PID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pid
}

// Done is closed once the sentinel has acted on the transfer, after the
// callback or fatal handler has returned.
func (t *Transfer) Done() <-chan struct{} { return t.done }

// Settled reports whether the sentinel has acted on the transfer. It becomes
// true before the callback or fatal handler runs, so either may hand the
// buffer to a new transfer.
func (t *Transfer) Settled() bool { return t.final.Load() }

// Err returns the termination error once the transfer has settled. It is nil
// for a transfer that finished normally.
func (t *Transfer) Err() error {
	if !t.final.Load() {
		return nil
	}
	return t.err
}

// abort records why the transfer is being torn down before the process exits
// on its own. The cause ends up in the TerminationError.
func (t *Transfer) abort(cause error) {
	t.mu.Lock()
	if t.cause == nil {
		t.cause = cause
	}
	t.mu.Unlock()
}

// OnTermination is the sentinel. It is a no-op while st.Live is true and
// after it has acted once. For a finished process it runs the callback with
// the bound arguments; for any other status it records a TerminationError,
// reports it to the fatal handler and returns it. The callback is never run
// in that case.
func (t *Transfer) OnTermination(st ProcessStatus) error {
	if st.Live {
		return nil
	}

	var result error
	t.settled.Do(func() {
		defer close(t.done)
		elapsed := time.Since(t.started)

		t.mu.Lock()
		cause := t.cause
		t.mu.Unlock()

		if st.Finished() && cause == nil {
			recordSettled(outcomeFinished, elapsed.Seconds())
			t.logger.Debug("transfer finished",
				slog.Int(log.PIDKey, t.PID()),
				slog.Int(log.BytesKey, t.buf.Len()),
				slog.Int64(log.DurationKey, elapsed.Milliseconds()),
			)
			t.final.Store(true)
			if t.cb.fn != nil {
				t.cb.fn(t.buf, t.cb.args...)
			}
			return
		}

		status := st.Text
		if st.Finished() {
			status = "aborted"
		}
		termErr := &TerminationError{
			TransferID: t.id,
			Executable: t.executable,
			PID:        t.PID(),
			Status:     status,
			ExitCode:   st.ExitCode,
			Stderr:     t.stderr.String(),
			Cause:      cause,
		}
		t.err = termErr
		t.final.Store(true)
		result = termErr

		recordSettled(outcomeAbnormal, elapsed.Seconds())
		t.logger.Error("transfer terminated abnormally",
			slog.Int(log.PIDKey, termErr.PID),
			slog.String(log.StatusKey, status),
			slog.Int64(log.DurationKey, elapsed.Milliseconds()),
			log.Error(termErr),
		)
		if t.onFatal != nil {
			t.onFatal(t, termErr)
		}
	})
	return result
}

// run drives a started process: it feeds stdout through the streaming filter
// into the consumer, then waits for exit and hands the status to the sentinel.
// All OnChunk calls happen before OnTermination.
func (t *Transfer) run(cmd *exec.Cmd, stdout io.Reader, chunkSize int) {
	chunk := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(chunk)
		if n > 0 {
			if cerr := t.consumer.Consume(t, t.OnChunk(chunk[:n])); cerr != nil {
				t.abort(fmt.Errorf("consumer: %w", cerr))
				_ = cmd.Process.Kill()
				// Drain so the process is not blocked on a full pipe.
				for err == nil {
					_, err = stdout.Read(chunk)
				}
				break
			}
		}
		if err != nil {
			break
		}
	}

	waitErr := cmd.Wait()
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		t.abort(waitErr)
	}
	_ = t.OnTermination(statusFromWait(cmd.ProcessState, waitErr))
}
