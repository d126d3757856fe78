package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type journal struct{ entries []string }

func (j *journal) action(entry string, err error) Action {
	return func(context.Context) error {
		j.entries = append(j.entries, entry)
		return err
	}
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	j := &journal{}
	err := New("post", nil).
		Step("header", j.action("do header", nil), j.action("undo header", nil)).
		Step("lines", j.action("do lines", nil), j.action("undo lines", nil)).
		Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"do header", "do lines"}, j.entries)
}

func TestRunCompensatesInReverse(t *testing.T) {
	j := &journal{}
	boom := errors.New("boom")
	err := New("post", nil).
		Step("header", j.action("do header", nil), j.action("undo header", nil)).
		Step("lines", j.action("do lines", nil), nil).
		Step("mirror", j.action("do mirror", nil), j.action("undo mirror", nil)).
		Step("status", j.action("do status", boom), j.action("undo status", nil)).
		Run(context.Background())

	require.ErrorIs(t, err, boom)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "status", stepErr.Step)
	require.Equal(t, []string{"do header", "do lines", "do mirror", "do status", "undo mirror", "undo header"}, j.entries)
}

func TestRunReportsCompensationFailure(t *testing.T) {
	j := &journal{}
	boom := errors.New("boom")
	err := New("post", nil).
		Step("header", j.action("do header", nil), j.action("undo header", errors.New("gone"))).
		Step("lines", j.action("do lines", boom), nil).
		Run(context.Background())

	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, ErrCompensationFailed)
}

func TestAtomicRunSkipsCompensation(t *testing.T) {
	j := &journal{}
	boom := errors.New("boom")
	err := New("post", nil).Atomic().
		Step("header", j.action("do header", nil), j.action("undo header", nil)).
		Step("lines", j.action("do lines", boom), nil).
		Run(context.Background())

	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"do header", "do lines"}, j.entries)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	j := &journal{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New("post", nil).
		Step("header", j.action("do header", nil), nil).
		Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, j.entries)
	require.NotEmpty(t, New("x", nil).ID())
}
