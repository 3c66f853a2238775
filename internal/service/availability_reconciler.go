package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AvailabilityReconciler runs ReconcileAvailability on a cron schedule.
type AvailabilityReconciler struct {
	svc     *SupervisorCapacityService
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

// NewAvailabilityReconciler registers the job; it does not start until Start is called.
func NewAvailabilityReconciler(svc *SupervisorCapacityService, schedule string, logger *zap.Logger) (*AvailabilityReconciler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &AvailabilityReconciler{
		svc:     svc,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: time.Minute,
	}
	if _, err := r.cron.AddFunc(schedule, r.RunOnce); err != nil {
		return nil, err
	}
	return r, nil
}

// RunOnce performs a single reconciliation pass.
func (r *AvailabilityReconciler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	result, err := r.svc.ReconcileAvailability(ctx)
	if err != nil {
		r.logger.Warn("availability reconciliation failed", zap.Error(err))
		return
	}
	r.logger.Info("availability reconciliation completed",
		zap.Int("checked", result.Checked),
		zap.Int("repaired", result.Repaired),
	)
}

// Start begins scheduling.
func (r *AvailabilityReconciler) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for a running pass to finish.
func (r *AvailabilityReconciler) Stop() {
	<-r.cron.Stop().Done()
}
