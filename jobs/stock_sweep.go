package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// StockSweepPayload carries scheduling metadata.
type StockSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	// Trigger names the origin of the run (cron, cli, api).
	Trigger string `json:"trigger"`
}

// NewStockSweepTask constructs an Asynq task for the consistency sweep.
func NewStockSweepTask(at time.Time, trigger string) (*asynq.Task, error) {
	body, err := json.Marshal(StockSweepPayload{ScheduledFor: at, Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockSweep, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Unique(10*time.Minute)), nil
}
