// Package driver declares the boundary between the explorer and the program being checked.
//
// A Driver runs one transition at a time inside the checked program and reports which actors changed status.
// It can capture the full state of the program as a Snapshot and roll back to it.
// The explorer never calls a Driver concurrently.
package driver

import (
	"context"
	"fmt"

	"mcheck/transition"
)

// A comparable capture of the full execution state of the checked program.
//
// ActorCount and HeapBytesUsed are cheap attributes used to rule out equality before calling Equal.
// Equal must be a deep equivalence over the whole captured state.
type Snapshot interface {
	ActorCount() int
	HeapBytesUsed() int64
	Equal(Snapshot) bool
}

// The status of an actor as reported by the driver
type Actor struct {
	ID      transition.ActorID
	Enabled bool
	// Number of distinct outcomes of the pending step of the actor. Values below 1 are read as 1.
	MaxConsider int
}

type ViolationKind int

const (
	Assertion ViolationKind = iota
	Deadlock
	Crash
	Invariant
)

func (vk ViolationKind) String() string {
	switch vk {
	case Assertion:
		return "assertion failure"
	case Deadlock:
		return "deadlock"
	case Crash:
		return "crash"
	case Invariant:
		return "invariant violated"
	}
	return fmt.Sprintf("ViolationKind(%d)", int(vk))
}

// A safety violation observed in the checked program
type Violation struct {
	Kind    ViolationKind
	Message string
}

func (v Violation) String() string {
	if v.Message == "" {
		return v.Kind.String()
	}
	return fmt.Sprintf("%v: %v", v.Kind, v.Message)
}

// The outcome of executing one transition.
//
// The executing actor must be reported in exactly one of NewlyEnabled, NewlyDisabled or Finished.
// Other actors are only reported when their status changed.
type ExecResult struct {
	Transition    transition.Transition
	NewlyEnabled  []Actor
	NewlyDisabled []transition.ActorID
	// Actors that terminated. They are no longer part of the following states.
	Finished  []transition.ActorID
	Violation *Violation
}

// Runs transitions inside the checked program.
//
// Transition failures of the checked program are reported in ExecResult.Violation.
// An error is only returned when the driver itself failed, e.g. the connection to a remote process was lost.
type Driver interface {
	// The actors of the initial state
	InitialActors(ctx context.Context) ([]Actor, error)
	// Execute the pending step of the actor, taking outcome timesConsidered. Blocks until the step completed.
	Execute(ctx context.Context, aid transition.ActorID, timesConsidered int) (ExecResult, error)
	// Capture the current state
	Snapshot(ctx context.Context) (Snapshot, error)
	// Roll back to a previously captured state
	Restore(ctx context.Context, snap Snapshot) error
}
