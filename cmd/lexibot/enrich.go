package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lexibot/internal/app"
	"lexibot/internal/config"
)

func getEnrichCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich <file>",
		Short: "Add model explanations to a quiz file and write enriched_<file>",
		Long: `Loads a quiz file from the content directory, asks Gemini for one short
explanation per question and writes the result beside it as enriched_<file>.
The source file is not modified.

Example:
  lexibot enrich quiz1 -c config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, n, err := app.EnrichFile(cmd.Context(), cfgPath, config.EnvFromOS(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Saved %d enriched questions to %s\n", n, path)
			return nil
		},
	}
}
