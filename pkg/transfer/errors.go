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
	"strings"
)

var (
	// ErrExecutableNotFound is returned by New when the transfer tool cannot
	// be resolved on PATH.
	ErrExecutableNotFound = errors.New("transfer executable not found")

	// ErrBufferBusy is returned when a buffer is reused while the transfer
	// writing into it is still running.
	ErrBufferBusy = errors.New("buffer has a transfer in flight")

	// ErrMalformedResponse is returned by Buffer.Response when the output
	// does not hold a parsable status line and header block.
	ErrMalformedResponse = errors.New("malformed response")
)

// TerminationError reports a transfer whose process ended in any state other
// than a clean finish. The callback of such a transfer is never invoked.
type TerminationError struct {
	// TransferID identifies the transfer.
	TransferID string

	// Executable is the path of the process that was run.
	Executable string

	// PID is the process ID, or 0 if it was never known.
	PID int

	// Status is the termination status text (e.g. "exited abnormally with code 6").
	Status string

	// ExitCode is the process exit code, or -1 if it was killed by a signal.
	ExitCode int

	// Stderr holds the tail of the tool's diagnostic output.
	Stderr string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *TerminationError) Error() string {
	msg := fmt.Sprintf("transfer %s: process %s", e.TransferID, e.Executable)
	if e.PID > 0 {
		msg = fmt.Sprintf("%s[%d]", msg, e.PID)
	}
	msg = fmt.Sprintf("%s %s", msg, e.Status)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg = fmt.Sprintf("%s (stderr: %s)", msg, stderr)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TerminationError) Unwrap() error {
	return e.Cause
}

// transientExitCodes are curl exit codes for failures that may succeed on a
// later attempt: resolve (6), connect (7), timeout (28), TLS handshake (35),
// empty reply (52), send (55) and receive (56) errors.
var transientExitCodes = map[int]bool{6: true, 7: true, 28: true, 35: true, 52: true, 55: true, 56: true}

// ErrorType implements errors.ErrorClassifier.
func (e *TerminationError) ErrorType() string { return "termination" }

// IsRetryable implements errors.ErrorClassifier. Transfers torn down by the
// caller or a consumer are never retryable.
func (e *TerminationError) IsRetryable() bool {
	return e.Cause == nil && transientExitCodes[e.ExitCode]
}
