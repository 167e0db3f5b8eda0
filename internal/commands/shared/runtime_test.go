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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/tombee/curlfetch/internal/tracing"
)

func setupCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"CURLFETCH_CURL", "CURLFETCH_DEBUG", "CURLFETCH_LOG_LEVEL", "LOG_LEVEL", "LOG_FORMAT", "CURLFETCH_CORRELATION_ID"} {
		t.Setenv(k, "")
	}
	ResetFlagsForTest()
	t.Cleanup(ResetFlagsForTest)

	cmd := &cobra.Command{}
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	return cmd, &stderr
}

func TestSetup_Defaults(t *testing.T) {
	cmd, _ := setupCommand(t)

	rt, err := Setup(cmd)
	require.NoError(t, err)
	assert.Equal(t, "curl", rt.Config.Transfer.Executable)
	assert.True(t, rt.CorrelationID.IsValid())
	assert.Equal(t, rt.CorrelationID, tracing.FromContextOrEmpty(rt.Context))
}

func TestSetup_FlagOverrides(t *testing.T) {
	cmd, stderr := setupCommand(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transfer:\n  executable: from-file\n"), 0o600))
	configFlag = path
	curlFlag = "/opt/curl/bin/curl"
	verboseFlag = true
	logFormatFlag = "json"

	rt, err := Setup(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/opt/curl/bin/curl", rt.Config.Transfer.Executable)
	assert.Equal(t, "debug", rt.Config.Log.Level)

	rt.Logger.Debug("hello")
	assert.Contains(t, stderr.String(), `"msg":"hello"`)
	assert.Contains(t, stderr.String(), `"correlation_id":"`+rt.CorrelationID.String()+`"`)
}

func TestSetup_CorrelationIDFromEnv(t *testing.T) {
	cmd, _ := setupCommand(t)
	t.Setenv("CURLFETCH_CORRELATION_ID", "6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	rt, err := Setup(cmd)
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", rt.CorrelationID.String())
}

func TestSetup_Errors(t *testing.T) {
	t.Run("missing config file", func(t *testing.T) {
		cmd, _ := setupCommand(t)
		configFlag = filepath.Join(t.TempDir(), "nope.yaml")
		_, err := Setup(cmd)
		assert.Equal(t, ExitConfig, ExitCode(err))
	})

	t.Run("bad log format", func(t *testing.T) {
		cmd, _ := setupCommand(t)
		logFormatFlag = "xml"
		_, err := Setup(cmd)
		assert.Equal(t, ExitConfig, ExitCode(err))
	})
}

func TestRuntime_Launcher(t *testing.T) {
	cmd, _ := setupCommand(t)
	curlFlag = filepath.Join(t.TempDir(), "no-such-curl")

	rt, err := Setup(cmd)
	require.NoError(t, err)
	_, err = rt.Launcher(nil)
	assert.Equal(t, ExitToolMissing, ExitCode(err))
}

func TestRuntime_TraceFile(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cmd, _ := setupCommand(t)
	traceFlag = filepath.Join(t.TempDir(), "trace.json")

	rt, err := Setup(cmd)
	require.NoError(t, err)
	_, span := otel.Tracer("test").Start(rt.Context, "probe")
	span.End()
	rt.Close()

	data, err := os.ReadFile(traceFlag)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name":"probe"`)
	assert.Contains(t, string(data), `"service.name"`)
}

func TestRuntime_TraceToStderr(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cmd, stderr := setupCommand(t)
	traceFlag = "-"

	rt, err := Setup(cmd)
	require.NoError(t, err)
	_, span := otel.Tracer("test").Start(rt.Context, "probe")
	span.End()
	rt.Close()

	assert.Contains(t, stderr.String(), `"Name":"probe"`)
}

func TestRuntime_TraceFileUnwritable(t *testing.T) {
	cmd, _ := setupCommand(t)
	traceFlag = filepath.Join(t.TempDir(), "missing", "trace.json")

	_, err := Setup(cmd)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestRuntime_MetricsFile(t *testing.T) {
	cmd, _ := setupCommand(t)
	metricsFlag = filepath.Join(t.TempDir(), "curlfetch.prom")

	rt, err := Setup(cmd)
	require.NoError(t, err)
	rt.Close()

	data, err := os.ReadFile(metricsFlag)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE curlfetch_transfers_started_total counter")
}
