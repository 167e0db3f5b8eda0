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
	"errors"
	"fmt"
	"io"
	"os"

	cerrors "github.com/tombee/curlfetch/pkg/errors"
)

// Exit codes for curlfetch commands
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitConfig      = 3
	ExitToolMissing = 4
	ExitTransfer    = 5
	ExitExpectation = 6
	ExitHTTPError   = 22 // same as curl --fail
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUsageError creates an error for invalid arguments or flags
func NewUsageError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitUsage, Message: msg, Cause: cause}
}

// NewConfigError creates an error for configuration failures
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Cause: cause}
}

// NewToolMissingError creates an error for an unresolvable transfer executable
func NewToolMissingError(cause error) *ExitError {
	return &ExitError{Code: ExitToolMissing, Message: "transfer tool unavailable", Cause: cause}
}

// NewTransferError creates an error for transfers that did not finish
func NewTransferError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitTransfer, Message: msg, Cause: cause}
}

// NewHTTPError creates an error for a response status >= 400 under --fail
func NewHTTPError(status string) *ExitError {
	return &ExitError{Code: ExitHTTPError, Message: "server returned " + status}
}

// NewExpectationError creates an error for a response that failed --expect
func NewExpectationError(name string, cause error) *ExitError {
	return &ExitError{Code: ExitExpectation, Message: "expectation failed for " + name, Cause: cause}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// PrintError writes err and, when one is available, its suggestion to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err.Error())

	var userErr cerrors.UserVisibleError
	if errors.As(err, &userErr) && userErr.IsUserVisible() {
		if suggestion := userErr.Suggestion(); suggestion != "" {
			fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
		}
	}
}

// HandleExitError prints err and exits with the matching code
func HandleExitError(err error) {
	if err == nil {
		return
	}
	PrintError(os.Stderr, err)
	os.Exit(ExitCode(err))
}
