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
	"github.com/spf13/pflag"
)

// Global flag values - set by root command
var (
	verboseFlag   bool
	configFlag    string
	logFormatFlag string
	curlFlag      string
	traceFlag     string
	metricsFlag   string

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterFlags binds the global flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	fs.StringVar(&configFlag, "config", "", "Path to config file (default: ~/.config/curlfetch/config.yaml)")
	fs.StringVar(&logFormatFlag, "log-format", "", "Log format: text or json")
	fs.StringVar(&curlFlag, "curl", "", "Transfer executable to run instead of curl")
	fs.StringVar(&traceFlag, "trace", "", "Write OpenTelemetry spans as JSON to a file ('-' for stderr)")
	fs.StringVar(&metricsFlag, "metrics-file", "", "Write transfer metrics in Prometheus text format to a file on exit")
}

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verboseFlag
}

// GetConfigPath returns the config file path
func GetConfigPath() string {
	return configFlag
}

// ResetFlagsForTest restores the global flags to their zero values.
func ResetFlagsForTest() {
	verboseFlag = false
	configFlag = ""
	logFormatFlag = ""
	curlFlag = ""
	traceFlag = ""
	metricsFlag = ""
}
