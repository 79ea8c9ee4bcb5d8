package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/pyroassist.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "pyroassist",
		Short:        "Fireworks firing sheet assistant",
		Long:         "pyroassist edits firing sheets and runs them against the clock, alerting the operator as each line becomes due.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the config file")

	load := func(cmd *cobra.Command) (*Config, error) {
		cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return nil, err
		}
		setupLogger(cfg.Log.Level)
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newRunCmd(load))
	root.AddCommand(newWatchCmd(load))
	return root
}
