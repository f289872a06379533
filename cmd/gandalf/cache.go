package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bluekornchips/gandalf/pkg/cache"
	"github.com/bluekornchips/gandalf/pkg/console"
	"github.com/bluekornchips/gandalf/pkg/constants"
	"github.com/bluekornchips/gandalf/pkg/serverapp"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the on-disk cache",
	}
	cmd.AddCommand(newCacheClearCommand())
	return cmd
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [namespace]",
		Short: "Clear the cache, optionally scoped to one namespace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := serverapp.ResolveHome()
			if err != nil {
				return err
			}
			if err := serverapp.EnsureLayout(home); err != nil {
				return err
			}

			c := cache.New(
				filepath.Join(home, "cache"),
				filepath.Join(home, "cache", "backups"),
				constants.DefaultCacheTTL,
				constants.DefaultCacheNamespaceSize,
			)

			if len(args) == 1 {
				c.Invalidate(args[0], "")
				fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("cleared cache namespace %q", args[0])))
				return nil
			}

			c.ClearAll()
			fmt.Println(console.FormatSuccessMessage("cleared all cache namespaces"))
			return nil
		},
	}
}
