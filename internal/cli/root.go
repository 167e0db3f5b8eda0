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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/curlfetch/internal/commands/completion"
	"github.com/tombee/curlfetch/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for curlfetch
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curlfetch",
		Short: "curlfetch - HTTP retrieval through an external transfer tool",
		Long: `curlfetch retrieves HTTP(S) resources by running curl (or a compatible
transfer tool) and capturing its raw output. Headers are recognized as they
stream in, so the content type is known before the body has finished.

Run 'curlfetch get URL' to retrieve a resource.
Run 'curlfetch version' to see which transfer tool is in use.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := shared.LoadEnvFiles(); err != nil {
				return shared.NewConfigError("failed to load environment files", err)
			}
			return nil
		},
	}

	shared.RegisterFlags(cmd.PersistentFlags())
	_ = cmd.RegisterFlagCompletionFunc("log-format", completion.CompleteLogFormats)

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
