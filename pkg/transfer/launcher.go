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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tombee/curlfetch/internal/log"
	"github.com/tombee/curlfetch/internal/urlsafe"
	cerrors "github.com/tombee/curlfetch/pkg/errors"
)

// DefaultChunkSize is the read size for process output.
const DefaultChunkSize = 4096

// DefaultArgs make curl write the status line, headers and body to stdout
// without progress output or buffering. HTTP/1.1 keeps the status line in a
// form net/http can parse.
var DefaultArgs = []string{
	"--silent",
	"--show-error",
	"--no-buffer",
	"--include",
	"--http1.1",
	"--output", "-",
}

var versionRegex = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// Config configures a Launcher.
type Config struct {
	// Executable is the transfer tool, as a name looked up on PATH or a path.
	// Default: "curl".
	Executable string

	// Args are the fixed arguments placed before request-specific ones.
	// Default: DefaultArgs. They must keep headers in the output and write
	// it to stdout.
	Args []string

	// ExtraArgs are appended after Args, e.g. proxy or CA options.
	ExtraArgs []string

	// ChunkSize is the read size for process output. Default: DefaultChunkSize.
	ChunkSize int

	// Consumer receives the filtered output. Default: BufferConsumer.
	Consumer Consumer

	// Logger receives transfer logs. Default: slog.Default().
	Logger *slog.Logger

	// OnFatal is called when a transfer terminates abnormally.
	OnFatal func(*Transfer, error)
}

// DefaultConfig returns a Config for curl on PATH.
func DefaultConfig() Config {
	return Config{
		Executable: "curl",
		ChunkSize:  DefaultChunkSize,
	}
}

// Request describes one retrieval. Only URL is required.
type Request struct {
	URL    string
	Method string
	Header http.Header

	// Body is streamed to the tool's stdin when non-nil.
	Body io.Reader
}

// Launcher spawns transfer processes. It is safe for concurrent use.
type Launcher struct {
	path   string
	cfg    Config
	logger *slog.Logger
}

// New resolves the transfer executable and returns a Launcher. A tool that
// cannot be found is reported here, once, rather than on every transfer.
func New(cfg Config) (*Launcher, error) {
	if cfg.Executable == "" {
		cfg.Executable = "curl"
	}
	if cfg.Args == nil {
		cfg.Args = DefaultArgs
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	path, err := exec.LookPath(cfg.Executable)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutableNotFound, &cerrors.NotFoundError{
			Resource: "transfer executable",
			ID:       cfg.Executable,
		})
	}

	return &Launcher{
		path:   path,
		cfg:    cfg,
		logger: log.WithComponent(cfg.Logger, "transfer"),
	}, nil
}

// Path returns the resolved executable path.
func (l *Launcher) Path() string {
	return l.path
}

// Retrieve starts an asynchronous GET of rawURL. cb runs with args once the
// process finishes normally. If buf is non-nil it is reset and reused,
// otherwise a new buffer named after the URL is created. The buffer is
// returned without waiting for the transfer.
func (l *Launcher) Retrieve(ctx context.Context, rawURL string, cb Callback, args []any, buf *Buffer) (*Buffer, error) {
	return l.Start(ctx, Request{URL: rawURL}, cb, args, buf)
}

// RetrieveURL is Retrieve for a parsed URL.
func (l *Launcher) RetrieveURL(ctx context.Context, u *url.URL, cb Callback, args []any, buf *Buffer) (*Buffer, error) {
	return l.Start(ctx, Request{URL: u.String()}, cb, args, buf)
}

// Start spawns the transfer tool for req and returns immediately. Cancelling
// ctx kills the process, which settles the transfer as abnormal.
func (l *Launcher) Start(ctx context.Context, req Request, cb Callback, args []any, buf *Buffer) (*Buffer, error) {
	if req.URL == "" {
		return nil, &cerrors.ValidationError{Field: "url", Message: "url is required"}
	}
	if buf == nil {
		buf = NewBuffer(req.URL)
	}

	t := newTransfer(req.URL, l.path, buf, cb, args, l.cfg.Consumer, l.logger)
	t.onFatal = l.cfg.OnFatal
	if err := buf.attach(t); err != nil {
		return buf, err
	}

	cmd := exec.CommandContext(ctx, l.path, l.buildArgs(req)...)
	cmd.Stdin = req.Body
	cmd.Stderr = t.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return buf, l.failStart(t, cerrors.Wrap(err, "failed to create stdout pipe"))
	}
	if err := cmd.Start(); err != nil {
		return buf, l.failStart(t, cerrors.Wrapf(err, "failed to start %s", l.path))
	}

	t.mu.Lock()
	t.pid = cmd.Process.Pid
	t.mu.Unlock()
	transfersStarted.Inc()

	t.logger.Debug("transfer started",
		slog.String(log.URLKey, urlsafe.SanitizeString(req.URL)),
		slog.Int(log.PIDKey, cmd.Process.Pid),
	)

	go t.run(cmd, stdout, l.cfg.ChunkSize)
	return buf, nil
}

// failStart settles a transfer whose process never ran so that its buffer
// can be reused.
func (l *Launcher) failStart(t *Transfer, err error) error {
	t.abort(err)
	_ = t.OnTermination(ProcessStatus{Text: "failed to start", ExitCode: -1})
	return err
}

// buildArgs returns the argument vector for req: fixed args, extra args,
// request options, then the URL.
func (l *Launcher) buildArgs(req Request) []string {
	args := make([]string, 0, len(l.cfg.Args)+len(l.cfg.ExtraArgs)+8)
	args = append(args, l.cfg.Args...)
	args = append(args, l.cfg.ExtraArgs...)

	switch method := strings.ToUpper(req.Method); method {
	case "", http.MethodGet:
	case http.MethodHead:
		// --request HEAD would wait for a body that never comes.
		args = append(args, "--head")
	default:
		args = append(args, "--request", method)
	}

	keys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range req.Header[k] {
			args = append(args, "--header", k+": "+v)
		}
	}

	if req.Body != nil {
		// An interim 100 Continue would add a second header block.
		args = append(args, "--header", "Expect:", "--data-binary", "@-")
	}

	return append(args, "--url", req.URL)
}

// Version runs the tool with --version and returns the first X.Y.Z found.
func (l *Launcher) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.path, "--version")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", cerrors.Wrapf(err, "failed to get version (stderr: %s)", strings.TrimSpace(stderr.String()))
	}

	output := strings.TrimSpace(stdout.String())
	if m := versionRegex.FindStringSubmatch(output); len(m) > 1 {
		return m[1], nil
	}
	if output != "" {
		return output, nil
	}
	return "unknown", nil
}
