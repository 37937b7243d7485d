package transition

import (
	"fmt"
	"strconv"
	"strings"
)

// One entry of a record trace: which actor to run and which of its outcomes to take.
type Step struct {
	Actor           ActorID
	TimesConsidered int
}

func (s Step) String() string {
	if s.TimesConsidered > 0 {
		return fmt.Sprintf("%d/%d", s.Actor, s.TimesConsidered)
	}
	return strconv.Itoa(int(s.Actor))
}

// An ordered sequence of steps from the initial state.
//
// A record trace is enough to reproduce a run with the same driver.
// Its string form is a semicolon separated list of steps, e.g. "1;2/1;3".
type RecordTrace []Step

// Build the record trace of a sequence of transitions
func RecordOf(transitions []Transition) RecordTrace {
	trace := make(RecordTrace, 0, len(transitions))
	for _, t := range transitions {
		trace = append(trace, t.Step())
	}
	return trace
}

func (rt RecordTrace) String() string {
	parts := make([]string, 0, len(rt))
	for _, s := range rt {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ";")
}

// Parse the string representation of a record trace.
//
// The empty string is the empty trace.
func ParseRecordTrace(s string) (RecordTrace, error) {
	s = strings.TrimSpace(s)
	trace := RecordTrace{}
	if s == "" {
		return trace, nil
	}
	for i, part := range strings.Split(s, ";") {
		actor, times, hasTimes := strings.Cut(strings.TrimSpace(part), "/")
		aid, err := strconv.Atoi(actor)
		if err != nil {
			return nil, fmt.Errorf("transition: invalid actor in step %d %q: %w", i, part, err)
		}
		step := Step{Actor: ActorID(aid)}
		if hasTimes {
			step.TimesConsidered, err = strconv.Atoi(times)
			if err != nil || step.TimesConsidered < 0 {
				return nil, fmt.Errorf("transition: invalid times considered in step %d %q", i, part)
			}
		}
		trace = append(trace, step)
	}
	return trace, nil
}
