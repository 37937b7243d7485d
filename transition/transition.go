package transition

import (
	"fmt"
	"strings"
)

// The id of an actor in the checked program.
//
// Ids are assigned by the driver and are stable across runs.
type ActorID int

// The kind of atomic step an actor performed.
//
// The kind, together with the resource, decides whether two steps commute.
type Kind int

const (
	// A step that only touches the local state of the actor
	Internal Kind = iota
	Read
	Write
	Lock
	Unlock
	Send
	Recv
	// A step whose outcome is picked among several choices
	Random
	// A step that only evaluates an assertion on the shared state
	Assert
)

var kindNames = []string{
	Internal: "internal",
	Read:     "read",
	Write:    "write",
	Lock:     "lock",
	Unlock:   "unlock",
	Send:     "send",
	Recv:     "recv",
	Random:   "random",
	Assert:   "assert",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Parse the name of a kind.
//
// The name is matched case insensitively. An empty name is an Internal step.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Internal, nil
	}
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return Internal, fmt.Errorf("transition: unknown kind %q", name)
}

// A Transition is one atomic step taken by one actor.
//
// Transitions are immutable once created.
// They are owned by the State that produced them and are used both to replay a state and to report a counter-example.
type Transition struct {
	Actor ActorID
	Kind  Kind
	// The id of the shared resource the step acted on. Empty for steps that do not touch shared resources.
	Resource string
	// Which of the possible outcomes of the step was taken.
	TimesConsidered int
	// Free form description of the arguments, used in the textual trace only.
	Args string
	// The step waited on a guard. A guard may read any shared resource.
	Guarded bool
}

// Human readable representation of the transition
//
// Used as one line of the textual trace.
func (t Transition) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[(%d)] %s", t.Actor, kindLabel(t.Kind))
	if t.Resource != "" {
		fmt.Fprintf(&b, "(%s)", t.Resource)
	}
	if t.TimesConsidered > 0 {
		fmt.Fprintf(&b, " #%d", t.TimesConsidered)
	}
	if t.Args != "" {
		b.WriteString(" ")
		b.WriteString(t.Args)
	}
	return b.String()
}

// The step of the record trace that replays this transition
func (t Transition) Step() Step {
	return Step{Actor: t.Actor, TimesConsidered: t.TimesConsidered}
}

func kindLabel(k Kind) string {
	s := k.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
