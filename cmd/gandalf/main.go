package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluekornchips/gandalf/pkg/constants"
	"github.com/bluekornchips/gandalf/pkg/console"
)

// version is set by GoReleaser at build time.
var version = constants.ServerVersion

var rootCmd = &cobra.Command{
	Use:     "gandalf",
	Short:   "Local MCP server for project relevance ranking and AI conversation history",
	Version: version,
	Long: `gandalf is a local Model Context Protocol server exposing project file
relevance ranking and multi-tool AI-assistant conversation history to
coding assistants.

Common Tasks:
  gandalf serve                 # Run the MCP server over stdio (default)
  gandalf version               # Print version information
  gandalf cache clear [ns]      # Clear the on-disk cache, optionally one namespace
  gandalf config validate [path] # Validate a weights.yaml file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.SetOut(os.Stderr)
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n", console.FormatInfoMessage("gandalf version {{.Version}}")))

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newCacheCommand())
	rootCmd.AddCommand(newConfigCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(1)
	}
}
