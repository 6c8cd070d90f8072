package main

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cfg.WriteYAML(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
