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

package request

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/curlfetch/internal/commands/shared"
	"github.com/tombee/curlfetch/internal/testing/faketool"
)

// runRequest executes "curlfetch request args..." with a clean environment.
// stdin is offered to --data @-.
func runRequest(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"CURLFETCH_CURL", "CURLFETCH_CURL_ARGS", "CURLFETCH_BACKEND", "CURLFETCH_RETRY_ATTEMPTS", "CURLFETCH_DEBUG", "CURLFETCH_LOG_LEVEL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)

	root := &cobra.Command{Use: "curlfetch", SilenceUsage: true, SilenceErrors: true}
	shared.RegisterFlags(root.PersistentFlags())
	root.AddCommand(NewRequestCommand())

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"request"}, args...))

	err := root.Execute()
	return stdout.String(), err
}

func TestRequestCommand(t *testing.T) {
	cmd := NewRequestCommand()
	assert.Equal(t, "request URL", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	for _, name := range []string{"request", "header", "data", "include", "fail", "output", "backend", "retries", "jq", "expect"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestRequest_NativeGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		assert.Equal(t, "curlfetch/1.0", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Correlation-ID"))
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("native body"))
	}))
	defer server.Close()

	stdout, err := runRequest(t, "", "--backend", "native", "-H", "X-Test: yes", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "native body", stdout)
}

func TestRequest_NativePostFromStdin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"received":"` + string(body) + `"}`))
	}))
	defer server.Close()

	stdout, err := runRequest(t, "payload", "--backend", "native", "-d", "@-", "-i", server.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "HTTP/1.1 201 Created\n"), stdout)
	assert.Contains(t, stdout, "Content-Type: application/json\n")
	assert.True(t, strings.HasSuffix(stdout, "\n\n"+`{"received":"payload"}`), stdout)
}

func TestRequest_JQ(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":1},{"id":2}]}`))
	}))
	defer server.Close()

	stdout, err := runRequest(t, "", "--backend", "native", "--jq", "[.items[].id]", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "[\n  1,\n  2\n]\n", stdout)
}

func TestRequest_Fail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	stdout, err := runRequest(t, "", "--backend", "native", "--fail", server.URL)
	require.Error(t, err)
	assert.Equal(t, shared.ExitHTTPError, shared.ExitCode(err))
	assert.Empty(t, stdout)
}

func TestRequest_CurlBackend(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	stdinFile := filepath.Join(dir, "stdin")
	tool := faketool.Fixture{
		Output:    faketool.HTTP("200 OK", "from curl", "Content-Type: text/plain"),
		ArgsFile:  argsFile,
		StdinFile: stdinFile,
	}.Path(t)

	bodyFile := filepath.Join(dir, "body.json")
	require.NoError(t, os.WriteFile(bodyFile, []byte(`{"a":1}`), 0o600))

	stdout, err := runRequest(t, "", "--curl", tool, "--backend", "curl", "-X", "put", "-d", "@"+bodyFile, "http://example.test/items/1")
	require.NoError(t, err)
	assert.Equal(t, "from curl", stdout)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "--request\nPUT\n")
	assert.Contains(t, string(args), "--header\nUser-Agent: curlfetch/1.0\n")
	assert.Contains(t, string(args), "--url\nhttp://example.test/items/1\n")

	stdin, err := os.ReadFile(stdinFile)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(stdin))
}

func TestRequest_CurlBackendTransferFailure(t *testing.T) {
	tool := faketool.Fail(6, "curl: (6) Could not resolve host").Path(t)

	_, err := runRequest(t, "", "--curl", tool, "--backend", "curl", "--retries", "0", "http://nowhere.test/")
	require.Error(t, err)
	assert.Equal(t, shared.ExitTransfer, shared.ExitCode(err))
	assert.Contains(t, err.Error(), "Could not resolve host")
}

func TestRequest_CurlBackendMissingTool(t *testing.T) {
	_, err := runRequest(t, "", "--curl", filepath.Join(t.TempDir(), "no-such-curl"), "--backend", "curl", "http://example.test/")
	require.Error(t, err)
	assert.Equal(t, shared.ExitToolMissing, shared.ExitCode(err))
}

func TestRequest_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown backend", []string{"--backend", "carrier-pigeon", "http://example.test/"}},
		{"raw without jq", []string{"-r", "http://example.test/"}},
		{"bad jq", []string{"--jq", "{", "http://example.test/"}},
		{"bad header", []string{"-H", ": empty name", "http://example.test/"}},
		{"missing body file", []string{"-d", "@/definitely/not/here", "http://example.test/"}},
		{"bad expect", []string{"--expect", "headers[", "http://example.test/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runRequest(t, "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, shared.ExitUsage, shared.ExitCode(err))
		})
	}
}

func TestRequest_Expect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Version", "3")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	_, err := runRequest(t, "", "--backend", "native", "--expect", `json.status == "ok" && headers["x-version"] == "3"`, server.URL)
	require.NoError(t, err)

	stdout, err := runRequest(t, "", "--backend", "native", "--expect", "status == 201", server.URL)
	assert.Equal(t, shared.ExitExpectation, shared.ExitCode(err))
	assert.Equal(t, `{"status":"ok"}`, stdout)
}
