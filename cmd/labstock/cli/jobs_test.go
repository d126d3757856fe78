package cli

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/labstock/jobs"
)

func TestTaskFor(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	task, err := taskFor("sweep", at)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskStockSweep, task.Type())

	_, err = taskFor("insights", at)
	require.ErrorContains(t, err, "unsupported job")
}

func TestNewJobsCLIRequiresAddr(t *testing.T) {
	_, err := NewJobsCLI("")
	require.Error(t, err)
}

func TestTrigger(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	info, err := c.Trigger(ctx, jobs.TaskStockSweep)
	require.NoError(t, err)
	require.Equal(t, jobs.QueueDefault, info.Queue)
	require.Equal(t, jobs.TaskStockSweep, info.Type)
}

func TestNilJobsCLI(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "sweep")
	require.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
}
