package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluekornchips/gandalf/pkg/config"
	"github.com/bluekornchips/gandalf/pkg/console"
	"github.com/bluekornchips/gandalf/pkg/serverapp"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or validate gandalf's weights configuration",
	}
	cmd.AddCommand(newConfigValidateCommand())
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a weights.yaml file, or the resolved default if no path is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			switch {
			case len(args) == 1:
				path = args[0]
			default:
				home, err := serverapp.ResolveHome()
				if err != nil {
					return err
				}
				path = config.ResolvePath(home)
			}

			if path == "" {
				fmt.Println(console.FormatInfoMessage("no weights file configured; embedded defaults are always valid"))
				return nil
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			cfg, err := config.Parse(raw)
			if err != nil {
				fmt.Println(console.FormatErrorMessage(err.Error()))
				return err
			}

			if errs := config.Validate(cfg); len(errs) > 0 {
				for _, e := range errs {
					fmt.Println(console.FormatErrorMessage(e.Error()))
				}
				return fmt.Errorf("%s: %d validation error(s)", path, len(errs))
			}

			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("%s is valid", path)))
			return nil
		},
	}
}
