package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smart-resource-management-trier/phorecast/internal/build"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Run: func(*cobra.Command, []string) {
			fmt.Println(build.Version)
		},
	}
}
