package stock

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/labstock/internal/jobs"
	"github.com/odyssey-erp/labstock/internal/shared"
	"github.com/odyssey-erp/labstock/jobs"
)

// SweepJob runs FindInconsistencies from the worker. At most one worker
// sweeps at a time.
type SweepJob struct {
	service *Service
	locker  *shared.Locker
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewSweepJob constructs the job handler. locker and metrics may be nil.
func NewSweepJob(service *Service, locker *shared.Locker, metrics *jobmetrics.Metrics, logger *slog.Logger) *SweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepJob{service: service, locker: locker, metrics: metrics, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *SweepJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.StockSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload.Trigger)
	if errors.Is(err, shared.ErrLockBusy) {
		j.logger.Info("stock sweep skipped, another worker holds the lock")
		return nil
	}
	return err
}

// Run sweeps under the sweep lock and records the findings.
func (j *SweepJob) Run(ctx context.Context, trigger string) ([]Issue, error) {
	tracker := j.metrics.Track(jobs.TaskStockSweep)
	var issues []Issue
	err := j.locker.TryWithLock(ctx, shared.StockSweepLockKey(), func(ctx context.Context) error {
		found, err := j.service.FindInconsistencies(ctx)
		if err != nil {
			return err
		}
		issues = found
		return nil
	})
	if errors.Is(err, shared.ErrLockBusy) {
		return nil, err
	}
	if err != nil {
		j.logger.Error("stock sweep", slog.String("trigger", trigger), slog.Any("error", err))
		return nil, tracker.End(err)
	}

	counts := make(map[string]int)
	for _, issue := range issues {
		counts[string(issue.Kind)]++
		j.metrics.AddStockIssues(string(issue.Kind), issue.WarehouseID, 1)
		j.logger.Warn("stock inconsistency",
			slog.Int64("warehouse_id", issue.WarehouseID),
			slog.String("product", issue.Product.String()),
			slog.String("kind", string(issue.Kind)),
			slog.String("raw_quantity", issue.RawQuantity.String()),
			slog.String("total_quantity", issue.TotalQuantity.String()))
	}
	j.metrics.SetLastSweep([]string{string(IssueNegativeStock), string(IssueBatchDrift)}, counts)
	j.logger.Info("stock sweep finished", slog.String("trigger", trigger), slog.Int("issues", len(issues)))
	return issues, tracker.End(nil)
}
