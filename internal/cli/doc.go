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

/*
Package cli provides the root command for the curlfetch CLI.

This package creates the root Cobra command and handles global concerns like
version information, persistent flags, .env loading and error handling.
Individual commands are implemented in the internal/commands subpackages.

# Command Tree

	curlfetch
	├── get           Retrieve URLs with the transfer tool
	├── request       Send one request through the HTTP client
	├── completion    Generate shell completion scripts
	├── version       Show version and transfer tool
	└── help          Show help

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	// ... add commands ...
	if err := rootCmd.ExecuteContext(ctx); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v    Enable debug logging
	--config         Path to config file
	--log-format     Log format: text or json
	--curl           Transfer executable to run instead of curl
	--trace          Write OpenTelemetry spans as JSON to a file ('-' for stderr)
	--metrics-file   Write transfer metrics in Prometheus text format on exit

# Exit Codes

	0   success
	1   general failure
	2   invalid arguments or flags
	3   configuration error
	4   transfer tool not found
	5   transfer did not finish
	6   --expect expression not met
	22  HTTP status 400 or above with --fail
*/
package cli
