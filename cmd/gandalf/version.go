package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bluekornchips/gandalf/pkg/console"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(console.FormatInfoMessage(fmt.Sprintf("gandalf version %s", versionString())))
		},
	}
}
