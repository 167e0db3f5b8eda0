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

package expect

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/tombee/curlfetch/pkg/errors"
)

var jsonResponse = Response{
	StatusCode: 200,
	Header: http.Header{
		"Content-Type": {"application/json; charset=utf-8"},
		"Vary":         {"Accept", "Origin"},
	},
	Body: []byte(`{"ok":true,"items":[{"name":"a"},{"name":"b"}],"count":2}`),
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		expr string
		resp Response
		pass bool
	}{
		{"status", "status == 200", jsonResponse, true},
		{"status range", "status >= 200 && status < 300", jsonResponse, true},
		{"status mismatch", "status == 404", jsonResponse, false},
		{"header", `headers["content-type"] startsWith "application/json"`, jsonResponse, true},
		{"repeated header", `headers["vary"] == "Accept, Origin"`, jsonResponse, true},
		{"missing header", `!("x-nope" in headers)`, jsonResponse, true},
		{"json field", "json.ok == true", jsonResponse, true},
		{"json array", "len(json.items) == 2 && json.items[1].name == \"b\"", jsonResponse, true},
		{"json number", "json.count > 1", jsonResponse, true},
		{"body", `body contains "items"`, jsonResponse, true},
		{"not json", "json == nil", Response{StatusCode: 200, Body: []byte("<html>")}, true},
		{"headerless", "status == 0 && body == \"raw\"", Response{Body: []byte("raw")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, e.String())

			err = e.Check(tt.resp)
			if tt.pass {
				assert.NoError(t, err)
				return
			}
			var failed *FailedError
			require.True(t, errors.As(err, &failed))
			assert.Equal(t, tt.expr, failed.Expression)
			assert.Equal(t, tt.resp.StatusCode, failed.StatusCode)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", "  "},
		{"syntax", "status ==="},
		{"not bool", "status + 1"},
		{"unknown variable", "latency < 5"},
		{"wrong type", `status == "200"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			var vErr *cerrors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "expect", vErr.Field)
		})
	}
}

func TestCheck_RuntimeError(t *testing.T) {
	e, err := Compile("json.items[5].name == \"x\"")
	require.NoError(t, err)

	err = e.Check(jsonResponse)
	require.Error(t, err)
	var failed *FailedError
	assert.False(t, errors.As(err, &failed))
}

func TestCheck_Concurrent(t *testing.T) {
	e, err := Compile("status == 200")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.Check(jsonResponse))
		}()
	}
	wg.Wait()
}
