package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluekornchips/gandalf/pkg/console"
	"github.com/bluekornchips/gandalf/pkg/serverapp"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Serve starts gandalf's JSON-RPC transport over stdin/stdout. stdout is
reserved exclusively for protocol traffic; every diagnostic this command
prints goes to stderr.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	home, err := serverapp.ResolveHome()
	if err != nil {
		return err
	}

	app, err := serverapp.New(home)
	if err != nil {
		return fmt.Errorf("starting gandalf: %w", err)
	}
	defer app.Close()

	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("gandalf %s serving project %s", versionString(), app.Context.Project.Root)))

	return app.Serve(os.Stdin, os.Stdout)
}

func versionString() string {
	if version == "" {
		return "dev"
	}
	return version
}
