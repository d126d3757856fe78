package jobs

// QueueDefault is the only queue the worker consumes.
const QueueDefault = "default"

// Task types handled by cmd/worker.
const (
	// TaskStockSweep triggers the warehouse x product consistency sweep.
	TaskStockSweep = "stock:consistency_sweep"
)
