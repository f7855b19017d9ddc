// Package cmd wires the CLI: start the service, trigger a single cycle
// or print the version.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/smart-resource-management-trier/phorecast/internal/build"

	// Register the configurable component types.
	_ "github.com/smart-resource-management-trier/phorecast/internal/loader/target"
	_ "github.com/smart-resource-management-trier/phorecast/internal/loader/weather"
	_ "github.com/smart-resource-management-trier/phorecast/internal/model"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   build.AppName,
		Short: "Photovoltaic power forecast engine.",
		Long: `Orchestrates loaders and forecast models on a fixed cycle:
fetch measurements and weather runs, train when needed and predict
every weather run that has no forecast yet.`,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $XDG_CONFIG_HOME/phorecast/phorecast.yaml)")

	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(triggerCmd())
	rootCmd.AddCommand(versionCmd())
}
