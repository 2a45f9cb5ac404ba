package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "~/.config/guildbuf/config.toml"

func newRootCmd(version string) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "guildbuf",
		Short:         "Guild and channel buffers over a cached session",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the TOML config file")

	cmd.AddCommand(newViewCmd(&configPath))
	cmd.AddCommand(newDemoSnapshotCmd())
	return cmd
}
