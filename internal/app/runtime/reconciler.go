package runtime

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"shg-finance/internal/pkg/gcs"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
	"shg-finance/internal/pkg/models"
	"shg-finance/internal/service/reconciliation"

	"github.com/robfig/cron/v3"
)

// ReconcilerRunner is the part of the reconciliation service the scheduler drives.
type ReconcilerRunner interface {
	Run(ctx context.Context) (*models.ReconciliationReport, error)
}

// Reconciler runs balance reconciliation and overdue marking, once or on a cron schedule.
type Reconciler struct {
	App     *App
	Runner  ReconcilerRunner
	Reports gcs.GcsInterface
}

// NewReconciler wires the reconciliation pass onto an App's stores. Reports are uploaded only
// when a bucket is configured.
func NewReconciler(ctx context.Context, app *App) (*Reconciler, error) {
	var reports gcs.GcsInterface
	if app.Cfg.GCS.BucketName != "" {
		client, err := gcs.NewGCSClient(ctx, app.Cfg.GCS.BucketName, app.Cfg.GCS.FolderName)
		if err != nil {
			logger.CtxError(ctx, "Failed to create GCS client", err)
			return nil, err
		}
		reports = client
	}

	services := app.BuildServices()
	runner := reconciliation.NewReconciliationService(
		services.Groups,
		services.Loans,
		services.Transactions,
		services.Locker,
		reports,
		app.Cfg.Reconciliation,
	)
	return &Reconciler{App: app, Runner: runner, Reports: reports}, nil
}

func (r *Reconciler) RunOnce(ctx context.Context) (*models.ReconciliationReport, error) {
	report, err := r.Runner.Run(ctx)
	if err != nil {
		logger.CtxError(ctx, "Reconciliation run failed", err)
		return report, err
	}
	if report.GroupsFailed > 0 {
		logger.CtxWarn(ctx, "Reconciliation finished with failed groups",
			slog.String("run_id", report.RunID),
			slog.Int("groups_failed", report.GroupsFailed),
		)
	}
	return report, nil
}

// RunScheduled registers the pass on the configured cron schedule and blocks until ctx is done or
// the process receives SIGINT or SIGTERM.
func (r *Reconciler) RunScheduled(ctx context.Context) error {
	schedule := r.App.Cfg.Reconciliation.Schedule
	if schedule == "" {
		return errors.New("reconciliation.schedule is not set")
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	if _, err := c.AddFunc(schedule, func() {
		_, _ = r.RunOnce(ctx)
	}); err != nil {
		logger.CtxError(ctx, "Failed to schedule reconciliation", err, slog.String("schedule", schedule))
		return err
	}
	logger.CtxInfo(ctx, "Scheduled reconciliation", slog.String("schedule", schedule))
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	<-c.Stop().Done()
	logger.CtxInfo(ctx, log_messages.ServerExiting)
	return nil
}

func (r *Reconciler) Shutdown(ctx context.Context) {
	if r.Reports != nil {
		r.Reports.Close(ctx)
	}
	r.App.Shutdown(ctx)
}
