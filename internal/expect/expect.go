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

// Package expect evaluates assertions about a response, written in the
// expr language.
//
// Expressions see these variables:
//
//	status   int                status code, 0 when the output had no header block
//	headers  map[string]string  header values by lower-case name, repeats joined by ", "
//	body     string             response body
//	json     any                decoded body, nil when it is not JSON
//
// Examples:
//
//	status == 200
//	headers["content-type"] startsWith "application/json"
//	json.items != nil && len(json.items) > 0
//	body contains "ok"
package expect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	cerrors "github.com/tombee/curlfetch/pkg/errors"
)

// Response is what an expectation is checked against.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type env struct {
	Status  int               `expr:"status"`
	Headers map[string]string `expr:"headers"`
	Body    string            `expr:"body"`
	JSON    any               `expr:"json"`
}

// Expectation is a compiled assertion. It is safe for concurrent use.
type Expectation struct {
	source  string
	program *vm.Program
}

// FailedError is returned by Check when the expression evaluates to false.
type FailedError struct {
	Expression string
	StatusCode int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("expectation %q not met (status %d)", e.Expression, e.StatusCode)
}

// Compile parses and type-checks source. It must produce a boolean.
func Compile(source string) (*Expectation, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &cerrors.ValidationError{Field: "expect", Message: "expression is empty"}
	}
	program, err := expr.Compile(source, expr.Env(env{}), expr.AsBool())
	if err != nil {
		return nil, &cerrors.ValidationError{
			Field:   "expect",
			Message: fmt.Sprintf("failed to compile expression: %s", err),
			Hint:    "use status, headers, body and json with comparison operators",
		}
	}
	return &Expectation{source: source, program: program}, nil
}

// String returns the expression source.
func (e *Expectation) String() string {
	return e.source
}

// Check evaluates the expectation against resp. It returns a *FailedError
// when the result is false, or an evaluation error.
func (e *Expectation) Check(resp Response) error {
	out, err := expr.Run(e.program, newEnv(resp))
	if err != nil {
		return fmt.Errorf("failed to evaluate %q: %w", e.source, err)
	}
	if ok, _ := out.(bool); !ok {
		return &FailedError{Expression: e.source, StatusCode: resp.StatusCode}
	}
	return nil
}

func newEnv(resp Response) env {
	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}

	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		decoded = nil
	}

	return env{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    string(resp.Body),
		JSON:    decoded,
	}
}
