package explorer

import (
	"fmt"

	"mcheck/driver"
	"mcheck/transition"
)

type Outcome int

const (
	// The search completed without finding a violation
	OutcomeNoViolation Outcome = iota
	// The driver reported a violation or the explorer found a deadlock
	OutcomeViolation
	// Some path reached the maximum depth while actors were still runnable, and no violation was found
	OutcomeNonTermination
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoViolation:
		return "no violation"
	case OutcomeViolation:
		return "violation"
	case OutcomeNonTermination:
		return "non-termination"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Counters of one exploration
type Stats struct {
	// Distinct states that were pushed on the stack, including the initial state
	ExpandedStates int64
	// Number of times the explorer went back up the stack. Moving the driver back to the current state after
	// a duplicate is not counted.
	Backtracks int64
	// States found equal to a visited state and not explored
	Duplicates int64
	// The largest number of transitions on one path
	MaxDepthReached int
	// Number of paths cut at the maximum depth
	DepthLimitHits int64
}

func (s Stats) String() string {
	return fmt.Sprintf("%d states expanded, %d backtracks, %d duplicates, max depth %d", s.ExpandedStates, s.Backtracks, s.Duplicates, s.MaxDepthReached)
}

type Result struct {
	Outcome Outcome
	// Set when Outcome is OutcomeViolation
	Violation *driver.Violation
	// The transitions from the initial state to the violation, or to the first truncated path on
	// non-termination. Empty otherwise.
	Trace []transition.Transition
	Stats Stats
}

func (r *Result) RecordTrace() transition.RecordTrace {
	return transition.RecordOf(r.Trace)
}

func textualTrace(trace []transition.Transition) []string {
	lines := make([]string, 0, len(trace))
	for _, t := range trace {
		lines = append(lines, t.String())
	}
	return lines
}
