// Package jq filters JSON response bodies with jq expressions.
package jq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout is the default execution time for jq expressions (1 second)
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize is the default maximum body size accepted (10MB)
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// ErrNotJSON is returned when the body does not hold a JSON document.
var ErrNotJSON = errors.New("body is not valid JSON")

// Executor handles jq expression evaluation with timeout and size limits.
type Executor struct {
	timeout      time.Duration
	maxInputSize int64
}

// NewExecutor creates a new jq executor with the given configuration.
func NewExecutor(timeout time.Duration, maxInputSize int64) *Executor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = DefaultMaxInputSize
	}

	return &Executor{
		timeout:      timeout,
		maxInputSize: maxInputSize,
	}
}

// Filter decodes body as JSON and runs expression against it. Every value the
// expression emits is returned, in order. An empty expression is ".".
func (e *Executor) Filter(ctx context.Context, expression string, body []byte) ([]any, error) {
	if int64(len(body)) > e.maxInputSize {
		return nil, fmt.Errorf("body size (%d bytes) exceeds maximum (%d bytes)", len(body), e.maxInputSize)
	}

	code, err := compile(expression)
	if err != nil {
		return nil, err
	}

	var data any
	if err := json.Unmarshal(bytes.TrimSpace(body), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		results []any
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		var results []any
		iter := code.RunWithContext(execCtx, data)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				done <- outcome{err: err}
				return
			}
			results = append(results, v)
		}
		done <- outcome{results: results}
	}()

	select {
	case out := <-done:
		if out.err != nil && execCtx.Err() != nil {
			return nil, fmt.Errorf("execution timeout after %v", e.timeout)
		}
		return out.results, out.err
	case <-execCtx.Done():
		return nil, fmt.Errorf("execution timeout after %v", e.timeout)
	}
}

// Validate checks an expression without running it, so a bad --jq flag fails
// before any transfer is started.
func (e *Executor) Validate(expression string) error {
	_, err := compile(expression)
	return err
}

func compile(expression string) (*gojq.Code, error) {
	if expression == "" {
		expression = "."
	}
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}
	return code, nil
}
