package service

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

// TimeoutScanner periodically fails jobs that stayed IN_PROGRESS longer than the job timeout.
type TimeoutScanner struct {
	orchestrator *Orchestrator
	timeout      time.Duration
	interval     time.Duration
}

func NewTimeoutScanner(o *Orchestrator, timeout, interval time.Duration) *TimeoutScanner {
	return &TimeoutScanner{orchestrator: o, timeout: timeout, interval: interval}
}

// Run scans once per interval until ctx is done. Scan errors are logged and the next tick retries.
func (t *TimeoutScanner) Run(ctx context.Context) error {
	ticker := jitterbug.New(t.interval, &jitterbug.Norm{Stdev: time.Second, Mean: 0})
	defer ticker.Stop()

	logger := zap.S().Named("timeout_scanner")
	logger.Infow("timeout scanner started", "timeout", t.timeout, "interval", t.interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("timeout scanner stopped")
			return nil
		case <-ticker.C:
			count, err := t.orchestrator.HandleTimedOutJobs(ctx, t.timeout)
			if err != nil {
				logger.Errorw("timeout scan failed", "error", err)
				continue
			}
			if count > 0 {
				logger.Infow("failed timed out jobs", "count", count)
			}
		}
	}
}
