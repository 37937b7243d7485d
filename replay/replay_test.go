package replay

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcheck/driver"
	"mcheck/driver/drivertest"
	"mcheck/transition"
)

func program() *drivertest.Driver {
	return drivertest.New(nil,
		drivertest.Actor{Steps: []drivertest.Step{drivertest.Write("x", 1)}},
		drivertest.Actor{Steps: []drivertest.Step{drivertest.Choose("c", 2), drivertest.Assert("x", 0)}},
	)
}

func TestReplay(t *testing.T) {
	for _, test := range replayTest {
		trace, err := transition.ParseRecordTrace(test.trace)
		require.NoError(t, err)

		res, err := Run(context.Background(), program(), trace)
		if test.err != nil {
			assert.ErrorIs(t, err, test.err, "trace %q", test.trace)
			continue
		}
		require.NoError(t, err, "trace %q", test.trace)
		assert.Equal(t, test.executed, res.RecordTrace().String(), "trace %q", test.trace)
		if test.violation {
			require.NotNil(t, res.Violation, "trace %q", test.trace)
			var ve *ViolationError
			require.True(t, errors.As(res.Err(), &ve))
			assert.Equal(t, test.executed, ve.Trace.String())
		} else {
			assert.Nil(t, res.Violation, "trace %q", test.trace)
			assert.NoError(t, res.Err())
		}
	}
}

func TestReplayDeadlock(t *testing.T) {
	drv := drivertest.New(nil,
		drivertest.Actor{Steps: []drivertest.Step{drivertest.Lock("a"), drivertest.Lock("b")}},
		drivertest.Actor{Steps: []drivertest.Step{drivertest.Lock("b"), drivertest.Lock("a")}},
	)
	res, err := Run(context.Background(), drv, transition.RecordTrace{{Actor: 1}, {Actor: 2}})
	require.NoError(t, err)
	require.NotNil(t, res.Violation)
	assert.Equal(t, driver.Deadlock, res.Violation.Kind)
}

func TestReplayFollowsTheTrace(t *testing.T) {
	drv := program()
	res, err := Run(context.Background(), drv, transition.RecordTrace{{Actor: 1}, {Actor: 2}, {Actor: 2}})
	require.NoError(t, err)
	require.NotNil(t, res.Violation)
	assert.Len(t, res.Transitions, 3)

	drv = program()
	res, err = Run(context.Background(), drv, transition.RecordTrace{{Actor: 2}, {Actor: 2}, {Actor: 1}})
	require.NoError(t, err)
	assert.Nil(t, res.Violation)
	assert.Equal(t, 1, drv.Var("x"))
}

func TestSteps(t *testing.T) {
	drv := program()
	require.NoError(t, Steps(context.Background(), drv, []transition.Step{{Actor: 2, TimesConsidered: 1}}))
	assert.Equal(t, 1, drv.Var("c"))

	err := Steps(context.Background(), drv, []transition.Step{{Actor: 1}, {Actor: 2}})
	assert.ErrorIs(t, err, ErrUnreplayable, "A violation while moving forward is unexpected")
}

var replayTest = []struct {
	trace     string
	executed  string
	violation bool
	err       error
}{
	{trace: "", executed: ""},
	{trace: "1", executed: "1"},
	{trace: "2/1;2;1", executed: "2/1;2;1"},
	{trace: "1;2;2", executed: "1;2;2", violation: true},
	{trace: "2/2", err: ErrUnreplayable},
	{trace: "3", err: ErrUnreplayable},
	{trace: "1;1", err: ErrUnreplayable},
}
