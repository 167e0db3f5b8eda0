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

package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	cerrors "github.com/tombee/curlfetch/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *cerrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &cerrors.ValidationError{
				Field:   "url",
				Message: "url is required",
				Hint:    "Pass the URL as the first argument",
			},
			wantMsg: "validation failed on url: url is required",
		},
		{
			name: "without field",
			err: &cerrors.ValidationError{
				Message: "invalid format",
			},
			wantMsg: "validation failed: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &cerrors.NotFoundError{Resource: "transfer executable", ID: "curl"}
	if got, want := err.Error(), "transfer executable not found: curl"; got != want {
		t.Errorf("NotFoundError.Error() = %q, want %q", got, want)
	}
}

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *cerrors.ConfigError
		wantMsg string
	}{
		{
			name: "with key",
			err: &cerrors.ConfigError{
				Key:    "transfer.chunk_size",
				Reason: "must be positive",
			},
			wantMsg: "config error at transfer.chunk_size: must be positive",
		},
		{
			name: "without key",
			err: &cerrors.ConfigError{
				Reason: "file not found",
			},
			wantMsg: "config error: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ConfigError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	cause := errors.New("file read error")
	err := &cerrors.ConfigError{
		Key:    "config",
		Reason: "failed to load",
		Cause:  cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("ConfigError.Unwrap() = %v, want %v", got, cause)
	}
}

func TestTimeoutError_Error(t *testing.T) {
	err := &cerrors.TimeoutError{
		Operation: "GET https://example.com",
		Duration:  30 * time.Second,
	}
	got := err.Error()
	for _, want := range []string{"GET https://example.com", "30s"} {
		if !strings.Contains(got, want) {
			t.Errorf("TimeoutError.Error() = %q, want to contain %q", got, want)
		}
	}
}

func TestTimeoutError_Unwrap(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &cerrors.TimeoutError{
		Operation: "test",
		Duration:  5 * time.Second,
		Cause:     cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("TimeoutError.Unwrap() = %v, want %v", got, cause)
	}
}

func TestUserVisibleErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantSuggestion string
	}{
		{
			name:           "validation with hint",
			err:            &cerrors.ValidationError{Field: "url", Message: "bad", Hint: "use https"},
			wantSuggestion: "use https",
		},
		{
			name:           "config with key",
			err:            &cerrors.ConfigError{Key: "http.backend", Reason: "unknown"},
			wantSuggestion: `Check "http.backend" in the config file or its environment override`,
		},
		{
			name:           "config without key",
			err:            &cerrors.ConfigError{Reason: "unreadable"},
			wantSuggestion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var uv cerrors.UserVisibleError
			if !errors.As(fmt.Errorf("wrapped: %w", tt.err), &uv) {
				t.Fatal("expected UserVisibleError in chain")
			}
			if !uv.IsUserVisible() {
				t.Error("expected IsUserVisible to be true")
			}
			if uv.UserMessage() != tt.err.Error() {
				t.Errorf("UserMessage() = %q, want %q", uv.UserMessage(), tt.err.Error())
			}
			if uv.Suggestion() != tt.wantSuggestion {
				t.Errorf("Suggestion() = %q, want %q", uv.Suggestion(), tt.wantSuggestion)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	timeout := &cerrors.TimeoutError{Operation: "test", Duration: time.Second}

	if !cerrors.IsRetryable(fmt.Errorf("round trip: %w", timeout)) {
		t.Error("expected wrapped TimeoutError to be retryable")
	}
	if cerrors.IsRetryable(&cerrors.ValidationError{Message: "bad"}) {
		t.Error("expected ValidationError not to be retryable")
	}
	if cerrors.IsRetryable(nil) {
		t.Error("expected nil not to be retryable")
	}
}

func TestErrorWrapping(t *testing.T) {
	t.Run("ValidationError can be wrapped", func(t *testing.T) {
		original := &cerrors.ValidationError{
			Field:   "url",
			Message: "invalid format",
		}
		wrapped := fmt.Errorf("user input validation: %w", original)

		var target *cerrors.ValidationError
		if !errors.As(wrapped, &target) {
			t.Error("errors.As should find ValidationError in wrapped error")
		}
		if target.Field != "url" {
			t.Errorf("unwrapped error Field = %q, want %q", target.Field, "url")
		}
	})

	t.Run("ConfigError preserves cause through wrapping", func(t *testing.T) {
		rootCause := errors.New("file not found")
		configErr := &cerrors.ConfigError{
			Key:    "transfer.executable",
			Reason: "missing required field",
			Cause:  rootCause,
		}
		wrapped := fmt.Errorf("loading config: %w", configErr)

		var target *cerrors.ConfigError
		if !errors.As(wrapped, &target) {
			t.Error("errors.As should find ConfigError in wrapped error")
		}
		if !errors.Is(wrapped, rootCause) {
			t.Error("errors.Is should find root cause through ConfigError")
		}
	})
}
