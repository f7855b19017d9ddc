package cmd

import (
	"github.com/spf13/cobra"
)

func triggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Run a single forecast cycle and exit.",
		Long:  `phorecast trigger [--config=<file>]`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.engine.RunCycle(ctx)
		},
	}
}
