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

// Package faketool writes stand-in transfer executables for tests. A
// fixture describes what the process prints and how it exits; Path turns it
// into a POSIX shell script.
package faketool

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// DefaultPause is the delay between chunks when Fixture.Pause is zero.
const DefaultPause = 20 * time.Millisecond

// Fixture describes the behavior of a fake transfer process.
type Fixture struct {
	// Output is written to stdout byte for byte.
	Output string

	// Chunks are written to stdout after Output, with Pause between them.
	Chunks []string
	Pause  time.Duration

	// Stderr is written to stderr before exiting.
	Stderr string

	// ExitCode is the process exit status.
	ExitCode int

	// ArgsFile, when set, receives the process arguments, one per line.
	ArgsFile string

	// StdinFile, when set, receives everything read from stdin.
	StdinFile string

	// Hang replaces the process with a long sleep after writing output, so
	// that it only ends when killed.
	Hang bool
}

// HTTP builds a raw HTTP/1.1 response with CRLF line endings. headers are
// "Name: value" lines.
func HTTP(status string, body string, headers ...string) string {
	var b strings.Builder
	b.WriteString("HTTP/1.1 " + status + "\r\n")
	for _, h := range headers {
		b.WriteString(h + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// Respond is a fixture that prints raw and exits cleanly.
func Respond(raw string) Fixture {
	return Fixture{Output: raw}
}

// Fail is a fixture that prints msg to stderr and exits with code.
func Fail(code int, msg string) Fixture {
	return Fixture{ExitCode: code, Stderr: msg}
}

// Path writes the fixture as an executable script in a temp dir and returns
// its path. The test is skipped where no POSIX shell is available.
func (f Fixture) Path(t testing.TB) string {
	t.Helper()
	return Script(t, f.script())
}

func (f Fixture) script() string {
	var b strings.Builder
	if f.ArgsFile != "" {
		fmt.Fprintf(&b, "printf '%%s\\n' \"$@\" > %s\n", quote(f.ArgsFile))
	}
	if f.StdinFile != "" {
		fmt.Fprintf(&b, "cat > %s\n", quote(f.StdinFile))
	}
	if f.Output != "" {
		fmt.Fprintf(&b, "printf %s\n", printfFormat(f.Output))
	}

	pause := f.Pause
	if pause <= 0 {
		pause = DefaultPause
	}
	for i, chunk := range f.Chunks {
		if i > 0 || f.Output != "" {
			fmt.Fprintf(&b, "sleep %.3f\n", pause.Seconds())
		}
		fmt.Fprintf(&b, "printf %s\n", printfFormat(chunk))
	}

	if f.Stderr != "" {
		fmt.Fprintf(&b, "printf %s >&2\n", printfFormat(f.Stderr))
	}
	if f.Hang {
		b.WriteString("exec sleep 30\n")
	}
	fmt.Fprintf(&b, "exit %d\n", f.ExitCode)
	return b.String()
}

// Script writes an executable shell script with the given body and returns
// its path.
func Script(t testing.TB, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake transfer tool needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-curl")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write fake transfer tool: %v", err)
	}
	return path
}

// printfFormat renders s as a single-quoted printf format that reproduces
// it exactly. Everything outside printable ASCII is written as an octal
// escape.
func printfFormat(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%':
			b.WriteString("%%")
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\'' || c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\%03o`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func quote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
