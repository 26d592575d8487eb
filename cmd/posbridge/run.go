package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/smallbiznis/posbridge/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Run one job now and print its result",
		Long: fmt.Sprintf(`Run one synchronization job to completion and print its result.

Jobs: %s

Example:
  posbridge run inventory_sync --format json`, strings.Join(scheduler.Jobs(), ", ")),
		Args:      cobra.ExactArgs(1),
		ValidArgs: scheduler.Jobs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(opts); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runJob(ctx, args[0], opts.Format, cmd.OutOrStdout())
		},
	}
}

func runJob(ctx context.Context, job, format string, out io.Writer) (err error) {
	var sched *scheduler.Scheduler
	app := fx.New(
		coreModules(),
		fx.Populate(&sched),
		fx.NopLogger,
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := app.Stop(context.Background()); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	result, err := sched.RunJob(ctx, job)
	if err != nil {
		return err
	}
	return printResult(out, format, job, result)
}

func printResult(out io.Writer, format, job string, result any) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s: %s\n", job, payload)
	return err
}
