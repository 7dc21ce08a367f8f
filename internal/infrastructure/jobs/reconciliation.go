package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"vaultswap.backend/internal/usecases"
	"vaultswap.backend/pkg/logger"
)

// Reconciler runs one reconciliation pass
type Reconciler interface {
	Run(ctx context.Context) (usecases.ReconciliationReport, error)
}

// ReconciliationJob periodically retries failed transaction writes and
// resolves transactions left pending by a polling timeout
type ReconciliationJob struct {
	reconciler Reconciler
	interval   time.Duration
	stop       chan struct{}
}

func NewReconciliationJob(reconciler Reconciler, interval time.Duration) *ReconciliationJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconciliationJob{
		reconciler: reconciler,
		interval:   interval,
		stop:       make(chan struct{}),
	}
}

func (j *ReconciliationJob) Start(ctx context.Context) {
	logger.Info(ctx, "reconciliation job started", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "reconciliation job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "reconciliation job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *ReconciliationJob) Stop() {
	close(j.stop)
}

func (j *ReconciliationJob) runOnce(ctx context.Context) {
	report, err := j.reconciler.Run(ctx)
	if err != nil {
		logger.Error(ctx, "reconciliation pass failed", zap.Error(err))
	}

	if report == (usecases.ReconciliationReport{}) {
		return
	}
	logger.Info(ctx, "reconciliation pass finished",
		zap.Int("recovered", report.Recovered),
		zap.Int("retrying", report.Retrying),
		zap.Int("abandoned", report.Abandoned),
		zap.Int("completed", report.Completed),
		zap.Int("failed", report.Failed),
		zap.Int("still_pending", report.StillPending),
	)
}
