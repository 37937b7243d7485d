// Package replay re-executes a recorded trace against a driver.
//
// A record trace names the actor, and the outcome, of every step from the initial state.
// Replaying it against the same driver reproduces the run, and in particular the violation that ended it.
package replay

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"mcheck/driver"
	"mcheck/state"
	"mcheck/transition"
)

// Returned when a recorded step can not be taken by the driver
var ErrUnreplayable = errors.New("replay: step can not be replayed")

// Reported by Result.Err when the replayed run ended in a violation
type ViolationError struct {
	Violation driver.Violation
	Trace     transition.RecordTrace
}

func (ve *ViolationError) Error() string {
	return fmt.Sprintf("replay: %v after %q", ve.Violation, ve.Trace)
}

// The outcome of a replayed run
type Result struct {
	// The transitions that were executed, in order
	Transitions []transition.Transition
	// The violation the run ended in. nil if the run completed without one.
	Violation *driver.Violation
}

// The record trace of the executed transitions
func (r *Result) RecordTrace() transition.RecordTrace {
	return transition.RecordOf(r.Transitions)
}

// Returns a *ViolationError if the run ended in a violation
func (r *Result) Err() error {
	if r.Violation == nil {
		return nil
	}
	return &ViolationError{Violation: *r.Violation, Trace: r.RecordTrace()}
}

// Replay the trace from the current state of the driver, which must be its initial state.
//
// Every step is checked against the actors enabled at that point: a step of an actor that is not enabled, or
// that asks for an outcome the actor does not have, fails with ErrUnreplayable.
// The replay stops at the first violation. A run whose last state has alive actors of which none is enabled ends
// in a deadlock.
func Run(ctx context.Context, drv driver.Driver, trace transition.RecordTrace) (*Result, error) {
	actors, err := drv.InitialActors(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "replay: get initial actors")
	}
	current := state.New(0, actors)
	result := &Result{Transitions: make([]transition.Transition, 0, len(trace))}

	for i, step := range trace {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		as, ok := current.Status(step.Actor)
		if !ok || !as.Enabled {
			return result, errors.Wrapf(ErrUnreplayable, "step %d: actor %d is not enabled", i, step.Actor)
		}
		if step.TimesConsidered >= as.MaxConsider {
			return result, errors.Wrapf(ErrUnreplayable, "step %d: actor %d has %d outcomes, got outcome %d", i, step.Actor, as.MaxConsider, step.TimesConsidered)
		}
		res, err := execute(ctx, drv, step)
		if err != nil {
			return result, errors.Wrapf(err, "step %d", i)
		}
		result.Transitions = append(result.Transitions, res.Transition)
		if res.Violation != nil {
			result.Violation = res.Violation
			return result, nil
		}
		current = current.Successor(int64(i+1), res)
	}

	if current.ActorCount() > 0 && len(current.EnabledActors()) == 0 {
		result.Violation = &driver.Violation{
			Kind:    driver.Deadlock,
			Message: fmt.Sprintf("%d actors blocked", current.ActorCount()),
		}
	}
	return result, nil
}

// Execute the steps without checking the enabled actors.
//
// Used to move a driver forward from a restored snapshot along a path that has been executed before.
// A violation on the way means the driver is not deterministic and is reported as ErrUnreplayable.
func Steps(ctx context.Context, drv driver.Driver, steps []transition.Step) error {
	for i, step := range steps {
		res, err := execute(ctx, drv, step)
		if err != nil {
			return errors.Wrapf(err, "step %d", i)
		}
		if res.Violation != nil {
			return errors.Wrapf(ErrUnreplayable, "step %d: unexpected violation: %v", i, res.Violation)
		}
	}
	return nil
}

func execute(ctx context.Context, drv driver.Driver, step transition.Step) (driver.ExecResult, error) {
	res, err := drv.Execute(ctx, step.Actor, step.TimesConsidered)
	if err != nil {
		return res, errors.Wrapf(err, "replay: execute actor %d", step.Actor)
	}
	if res.Transition.Actor != step.Actor {
		return res, errors.Wrapf(ErrUnreplayable, "executed actor %d but the driver reported actor %d", step.Actor, res.Transition.Actor)
	}
	return res, nil
}
