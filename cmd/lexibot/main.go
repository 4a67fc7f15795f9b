package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "lexibot",
		Short:        "Telegram idiom and quiz delivery bot",
		SilenceUsage: true,
		RunE:         runBot,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.json", "path to config (json or yaml)")

	rootCmd.AddCommand(getRunCommand(), getEnrichCommand(), getPushCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
