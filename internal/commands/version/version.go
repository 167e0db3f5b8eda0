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

package version

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/curlfetch/internal/commands/shared"
)

// VersionInfo contains version metadata
type VersionInfo struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	BuildDate string    `json:"build_date"`
	Tool      *ToolInfo `json:"transfer_tool,omitempty"`
}

// ToolInfo describes the resolved transfer executable
type ToolInfo struct {
	Executable string `json:"executable"`
	Path       string `json:"path,omitempty"`
	Version    string `json:"version,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var jsonOutput, short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version, commit hash, and build date for curlfetch, and the
path and version of the transfer tool it runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd, jsonOutput, short)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&short, "short", false, "Skip probing the transfer tool")

	return cmd
}

func runVersion(cmd *cobra.Command, jsonOutput, short bool) error {
	v, c, b := shared.GetVersion()

	info := VersionInfo{
		Version:   v,
		Commit:    c,
		BuildDate: b,
	}
	if !short {
		tool, err := probeTool(cmd)
		if err != nil {
			return err
		}
		info.Tool = tool
	}

	if jsonOutput {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal version info: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("curlfetch version %s\n", info.Version)
	cmd.Printf("  commit:     %s\n", info.Commit)
	cmd.Printf("  build date: %s\n", info.BuildDate)
	if t := info.Tool; t != nil {
		if t.Error != "" {
			cmd.Printf("  transfer:   %s (%s)\n", t.Executable, t.Error)
		} else {
			cmd.Printf("  transfer:   %s %s (%s)\n", t.Executable, t.Version, t.Path)
		}
	}

	return nil
}

// probeTool resolves the transfer executable and asks it for its version. A
// missing or broken tool is reported in the result, not as an error.
func probeTool(cmd *cobra.Command) (*ToolInfo, error) {
	rt, err := shared.Setup(cmd)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	info := &ToolInfo{Executable: rt.Config.Transfer.Executable}
	l, err := rt.Launcher(nil)
	if err != nil {
		info.Error = "not found"
		return info, nil
	}
	info.Path = l.Path()

	version, err := l.Version(rt.Context)
	if err != nil {
		info.Error = err.Error()
		return info, nil
	}
	info.Version = version
	return info, nil
}
