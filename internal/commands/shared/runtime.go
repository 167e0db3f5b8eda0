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
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tombee/curlfetch/internal/config"
	"github.com/tombee/curlfetch/internal/log"
	"github.com/tombee/curlfetch/internal/tracing"
	"github.com/tombee/curlfetch/pkg/transfer"
)

// Runtime is what every command needs after global flags are applied.
type Runtime struct {
	Config        *config.Config
	Logger        *slog.Logger
	CorrelationID tracing.CorrelationID

	// Context carries the correlation ID and is cancelled on interrupt.
	Context context.Context

	tracer      *tracing.Provider
	traceOut    io.Closer
	metricsPath string
}

// Setup loads configuration, applies global flag overrides and builds the
// logger. Logs go to the command's stderr.
func Setup(cmd *cobra.Command) (*Runtime, error) {
	path := configFlag
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}

	if curlFlag != "" {
		cfg.Transfer.Executable = curlFlag
	}
	if verboseFlag {
		cfg.Log.Level = "debug"
	}
	if logFormatFlag != "" {
		cfg.Log.Format = logFormatFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigError("invalid configuration", err)
	}

	lc := cfg.Logging()
	lc.Output = cmd.ErrOrStderr()
	logger := log.New(lc)

	corrID, ok := tracing.ParseCorrelationID(os.Getenv("CURLFETCH_CORRELATION_ID"))
	if !ok {
		corrID = tracing.NewCorrelationID()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt := &Runtime{
		Config:        cfg,
		Logger:        log.WithCorrelationID(logger, corrID.String()),
		CorrelationID: corrID,
		Context:       tracing.ToContext(ctx, corrID),
		metricsPath:   metricsFlag,
	}
	if traceFlag != "" {
		if err := rt.startTracing(cmd); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func (r *Runtime) startTracing(cmd *cobra.Command) error {
	w := cmd.ErrOrStderr()
	if traceFlag != "-" {
		f, err := os.Create(traceFlag)
		if err != nil {
			return NewUsageError("cannot open trace file", err)
		}
		w = f
		r.traceOut = f
	}

	p, err := tracing.NewProvider(w, version)
	if err != nil {
		if r.traceOut != nil {
			_ = r.traceOut.Close()
		}
		return NewConfigError("failed to start tracing", err)
	}
	r.tracer = p
	return nil
}

// Close flushes spans and writes the metrics file when those are enabled.
// Failures are logged, not returned, so they never mask the command's error.
func (r *Runtime) Close() {
	if r.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.tracer.Shutdown(ctx); err != nil {
			r.Logger.Warn("failed to flush trace spans", log.Error(err))
		}
		cancel()
	}
	if r.traceOut != nil {
		_ = r.traceOut.Close()
	}
	if r.metricsPath != "" {
		if err := prometheus.WriteToTextfile(r.metricsPath, prometheus.DefaultGatherer); err != nil {
			r.Logger.Warn("failed to write metrics file", log.Error(err))
		}
	}
}

// Launcher builds a transfer launcher from the runtime configuration.
func (r *Runtime) Launcher(consumer transfer.Consumer) (*transfer.Launcher, error) {
	tc := r.Config.TransferLauncher()
	tc.Logger = r.Logger
	tc.Consumer = consumer
	l, err := transfer.New(tc)
	if err != nil {
		return nil, NewToolMissingError(err)
	}
	return l, nil
}
