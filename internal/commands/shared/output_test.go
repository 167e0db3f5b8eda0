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
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    http.Header
		wantErr bool
	}{
		{name: "none", values: nil, want: nil},
		{
			name:   "canonical keys",
			values: []string{"accept: application/json", "x-request-id:  abc "},
			want:   http.Header{"Accept": {"application/json"}, "X-Request-Id": {"abc"}},
		},
		{
			name:   "repeated",
			values: []string{"X-Tag: a", "x-tag: b"},
			want:   http.Header{"X-Tag": {"a", "b"}},
		},
		{
			name:   "empty value",
			values: []string{"Accept:"},
			want:   http.Header{"Accept": {""}},
		},
		{
			name:   "colon in value",
			values: []string{"Referer: http://a.test:8080/"},
			want:   http.Header{"Referer": {"http://a.test:8080/"}},
		},
		{name: "no colon", values: []string{"Accept"}, wantErr: true},
		{name: "empty name", values: []string{": v"}, wantErr: true},
		{name: "space in name", values: []string{"X Bad: v"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeaders(tt.values)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ExitUsage, ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteJQResults(t *testing.T) {
	results := []any{"a<b", float64(1), map[string]any{"k": []any{true}}}

	var buf bytes.Buffer
	require.NoError(t, WriteJQResults(&buf, results, false))
	assert.Equal(t, "\"a<b\"\n1\n{\n  \"k\": [\n    true\n  ]\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteJQResults(&buf, results[:2], true))
	assert.Equal(t, "a<b\n1\n", buf.String())
}

func TestCheckBinary(t *testing.T) {
	binary := []byte{0x89, 'P', 'N', 'G', 0x00}

	assert.NoError(t, CheckBinary(&Output{Terminal: false}, binary))
	assert.NoError(t, CheckBinary(&Output{Terminal: true}, []byte("text")))

	err := CheckBinary(&Output{Terminal: true}, binary)
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestOpenOutput(t *testing.T) {
	cmd := &cobra.Command{}
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	out, err := OpenOutput(cmd, "-")
	require.NoError(t, err)
	assert.Same(t, &stdout, out.Writer)
	assert.False(t, out.Color)
	assert.False(t, out.Terminal)
	assert.NoError(t, out.Close())

	path := filepath.Join(t.TempDir(), "out.bin")
	out, err = OpenOutput(cmd, path)
	require.NoError(t, err)
	_, err = out.Write([]byte("saved"))
	require.NoError(t, err)
	require.NoError(t, out.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", string(data))
	assert.Empty(t, stdout.String())

	_, err = OpenOutput(cmd, filepath.Join(t.TempDir(), "missing", "out"))
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestLoadEnvFiles(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CURLFETCH_TEST_KEEP", "from-env")
	t.Setenv("CURLFETCH_TEST_LOCAL", "")

	require.NoError(t, LoadEnvFiles(), "missing files are fine")

	require.NoError(t, os.WriteFile(".env", []byte("CURLFETCH_TEST_KEEP=from-file\nCURLFETCH_TEST_NEW=1\nCURLFETCH_TEST_LOCAL=base\n"), 0o600))
	require.NoError(t, os.WriteFile(".env.local", []byte("CURLFETCH_TEST_LOCAL=local\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CURLFETCH_TEST_NEW") })

	require.NoError(t, LoadEnvFiles())
	assert.Equal(t, "from-env", os.Getenv("CURLFETCH_TEST_KEEP"))
	assert.Equal(t, "1", os.Getenv("CURLFETCH_TEST_NEW"))
	assert.Equal(t, "local", os.Getenv("CURLFETCH_TEST_LOCAL"))
}

func TestWriteBody(t *testing.T) {
	latin1 := []byte("caf\xe9")

	t.Run("pipe keeps bytes", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteBody(&Output{Writer: &buf}, latin1, "text/plain", "iso-8859-1"))
		assert.Equal(t, latin1, buf.Bytes())
	})

	t.Run("terminal decodes", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteBody(&Output{Writer: &buf, Terminal: true}, latin1, "text/plain", "iso-8859-1"))
		assert.Equal(t, "café", buf.String())
	})

	t.Run("terminal refuses undeclared binary", func(t *testing.T) {
		var buf bytes.Buffer
		err := WriteBody(&Output{Writer: &buf, Terminal: true}, latin1, "text/plain", "")
		assert.Equal(t, ExitUsage, ExitCode(err))
		assert.Empty(t, buf.String())
	})
}
