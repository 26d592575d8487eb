package main

import (
	"github.com/smallbiznis/posbridge/internal/scheduler"
	"github.com/smallbiznis/posbridge/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	var withScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook and admin API",
		Long: `Serve the storefront webhook endpoint and the admin API.

Unless --scheduler=false is passed the recurring jobs run in the same
process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(opts); err != nil {
				return err
			}
			options := []fx.Option{coreModules(), server.Module}
			if withScheduler {
				options = append(options, fx.Invoke(scheduler.Start))
			}
			fx.New(options...).Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "run the recurring jobs in this process")
	return cmd
}

func newWorkerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the recurring jobs without the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(opts); err != nil {
				return err
			}
			fx.New(
				coreModules(),
				// No server module!
				fx.Invoke(scheduler.Start),
			).Run()
			return nil
		},
	}
}
