package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smart-resource-management-trier/phorecast/internal/frontend"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
)

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the forecast engine and the HTTP API.",
		Long:  `phorecast start [--config=<file>]`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sig
				logger.Info(ctx, "Shutdown signal received")
				a.engine.Stop(ctx)
				cancel()
			}()

			go a.engine.Start(ctx)

			server := frontend.New(frontend.Config{
				Host:      a.cfg.Frontend.Host,
				Port:      a.cfg.Frontend.Port,
				AuthToken: a.cfg.Frontend.AuthToken,
			}, a.engine, a.meta, a.metrics)
			return server.Start(ctx)
		},
	}
}
