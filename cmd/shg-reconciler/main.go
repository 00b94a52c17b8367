package main

import (
	"context"
	"encoding/json"
	"os"

	"shg-finance/internal/app/runtime"
	"shg-finance/internal/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shg-reconciler",
		Short: "Reconcile group balances against the ledger and mark overdue installments",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newOnceCommand(), newRunCommand())
	return rootCmd
}

func newOnceCommand() *cobra.Command {
	var printReport bool
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(cmd.Context(), func(ctx context.Context, r *runtime.Reconciler) error {
				report, err := r.RunOnce(ctx)
				if err != nil {
					return err
				}
				if printReport {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&printReport, "print", false, "write the report as JSON to stdout")
	return cmd
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run reconciliation on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(cmd.Context(), func(ctx context.Context, r *runtime.Reconciler) error {
				return r.RunScheduled(ctx)
			})
		},
	}
}

func withReconciler(ctx context.Context, fn func(ctx context.Context, r *runtime.Reconciler) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := runtime.New(ctx)
	if err != nil {
		logger.CtxError(ctx, "failed to initialize app", err)
		return err
	}
	r, err := runtime.NewReconciler(ctx, app)
	if err != nil {
		app.Shutdown(ctx)
		return err
	}
	defer r.Shutdown(ctx)
	return fn(ctx, r)
}
