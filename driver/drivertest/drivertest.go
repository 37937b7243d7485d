// Package drivertest provides a scripted in-memory driver.Driver for tests.
//
// A program is a set of actors, each a list of steps over a map of integer variables.
// Actors get the ids 1..n in the order they are passed to New.
package drivertest

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"mcheck/driver"
	"mcheck/transition"
)

// The shared variables of a program
type Vars map[string]int

type Step struct {
	Kind     transition.Kind
	Resource string
	Args     string
	// Number of outcomes of the step. Values below 1 are read as 1.
	Choices int
	// The step can only be taken while Guard holds. nil means always.
	Guard func(vars Vars) bool
	// Effect of the step. A returned violation is reported to the explorer.
	Run func(vars Vars, choice int) *driver.Violation
	// The actor stays on this step after taking it
	Loop bool
}

type Actor struct {
	Steps []Step
}

type Driver struct {
	actors  []Actor
	initial Vars

	pcs     []int
	vars    Vars
	enabled []bool

	// Replaces the content compared by snapshots. Used to make distinct states compare equal.
	SnapshotKey func(pcs []int, vars Vars) string

	// Every executed step, in order
	Executed  []transition.Step
	Snapshots int
	Restores  int
}

func New(initial Vars, actors ...Actor) *Driver {
	d := &Driver{
		actors:  actors,
		initial: initial,
	}
	d.Reset()
	return d
}

// Move the program back to its initial state. Counters are kept.
func (d *Driver) Reset() {
	d.pcs = make([]int, len(d.actors))
	d.vars = maps.Clone(d.initial)
	if d.vars == nil {
		d.vars = Vars{}
	}
	d.enabled = make([]bool, len(d.actors))
	d.updateEnabled()
}

func (d *Driver) InitialActors(ctx context.Context) ([]driver.Actor, error) {
	actors := []driver.Actor{}
	for i := range d.actors {
		if d.alive(i) {
			actors = append(actors, d.actor(i))
		}
	}
	return actors, nil
}

func (d *Driver) Execute(ctx context.Context, aid transition.ActorID, timesConsidered int) (driver.ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return driver.ExecResult{}, err
	}
	idx := int(aid) - 1
	if idx < 0 || idx >= len(d.actors) || !d.enabled[idx] {
		return driver.ExecResult{}, fmt.Errorf("drivertest: actor %d is not enabled", aid)
	}
	step := d.actors[idx].Steps[d.pcs[idx]]
	d.Executed = append(d.Executed, transition.Step{Actor: aid, TimesConsidered: timesConsidered})

	res := driver.ExecResult{
		Transition: transition.Transition{
			Actor:           aid,
			Kind:            step.Kind,
			Resource:        step.Resource,
			TimesConsidered: timesConsidered,
			Args:            step.Args,
			Guarded:         step.Guard != nil,
		},
	}
	if step.Run != nil {
		res.Violation = step.Run(d.vars, timesConsidered)
	}
	if !step.Loop {
		d.pcs[idx]++
	}

	before := slices.Clone(d.enabled)
	d.updateEnabled()
	for i := range d.actors {
		id := transition.ActorID(i + 1)
		if i == idx {
			switch {
			case !d.alive(i):
				res.Finished = append(res.Finished, id)
			case d.enabled[i]:
				res.NewlyEnabled = append(res.NewlyEnabled, d.actor(i))
			default:
				res.NewlyDisabled = append(res.NewlyDisabled, id)
			}
			continue
		}
		if !d.alive(i) || before[i] == d.enabled[i] {
			continue
		}
		if d.enabled[i] {
			res.NewlyEnabled = append(res.NewlyEnabled, d.actor(i))
		} else {
			res.NewlyDisabled = append(res.NewlyDisabled, id)
		}
	}
	return res, nil
}

func (d *Driver) Snapshot(ctx context.Context) (driver.Snapshot, error) {
	d.Snapshots++
	key := d.key()
	if d.SnapshotKey != nil {
		key = d.SnapshotKey(slices.Clone(d.pcs), maps.Clone(d.vars))
	}
	alive := 0
	for i := range d.actors {
		if d.alive(i) {
			alive++
		}
	}
	return &Snapshot{
		key:    key,
		actors: alive,
		pcs:    slices.Clone(d.pcs),
		vars:   maps.Clone(d.vars),
	}, nil
}

func (d *Driver) Restore(ctx context.Context, snap driver.Snapshot) error {
	s, ok := snap.(*Snapshot)
	if !ok {
		return fmt.Errorf("drivertest: foreign snapshot %T", snap)
	}
	d.Restores++
	d.pcs = slices.Clone(s.pcs)
	d.vars = maps.Clone(s.vars)
	d.updateEnabled()
	return nil
}

// The current value of a variable
func (d *Driver) Var(name string) int {
	return d.vars[name]
}

func (d *Driver) alive(i int) bool {
	return d.pcs[i] < len(d.actors[i].Steps)
}

func (d *Driver) actor(i int) driver.Actor {
	return driver.Actor{
		ID:          transition.ActorID(i + 1),
		Enabled:     d.enabled[i],
		MaxConsider: d.actors[i].Steps[d.pcs[i]].Choices,
	}
}

func (d *Driver) updateEnabled() {
	for i := range d.actors {
		if !d.alive(i) {
			d.enabled[i] = false
			continue
		}
		guard := d.actors[i].Steps[d.pcs[i]].Guard
		d.enabled[i] = guard == nil || guard(d.vars)
	}
}

func (d *Driver) key() string {
	names := make([]string, 0, len(d.vars))
	for name := range d.vars {
		names = append(names, name)
	}
	slices.Sort(names)
	out := strings.Builder{}
	out.WriteString(fmt.Sprintf("pcs=%v", d.pcs))
	for _, name := range names {
		out.WriteString(fmt.Sprintf(" %s=%d", name, d.vars[name]))
	}
	return out.String()
}

type Snapshot struct {
	key    string
	actors int
	pcs    []int
	vars   Vars
}

func (s *Snapshot) ActorCount() int { return s.actors }

func (s *Snapshot) HeapBytesUsed() int64 { return int64(len(s.key)) }

func (s *Snapshot) Equal(other driver.Snapshot) bool {
	o, ok := other.(*Snapshot)
	return ok && o.actors == s.actors && o.key == s.key
}

func (s *Snapshot) String() string {
	return s.key
}
