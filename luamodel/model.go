// Package luamodel runs models of concurrent programs written in Lua.
//
// A model script sets the global table state and declares actors, each a sequence of steps:
//
//	state = { x = 0 }
//	actor("writer", {
//	  step{ kind = "write", resource = "x", run = function(s) s.x = 1 end },
//	})
//	invariant("x is small", function(s) return s.x < 2 end)
//
// A step may declare a guard(s) that must hold for the step to be taken and a number of choices. run(s, choice)
// is called with the outcome, from 0 to choices-1. An error raised by run, including a failed assert, is an
// assertion violation. An invariant that does not hold after a step is an invariant violation.
//
// Everything an actor remembers between its steps must be kept in state, since only state and the position of
// every actor are part of a snapshot.
package luamodel

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"mcheck/driver"
	"mcheck/transition"
)

// A loaded model. Implements driver.Driver.
//
// The interpreter is guarded by a mutex, a Model can be shared between goroutines.
type Model struct {
	mu sync.Mutex

	l          *lua.State
	name       string
	actors     []actorDef
	invariants []invariantDef
	log        logrus.FieldLogger

	pcs     []int
	enabled []bool
}

// Load the model script at path
func Load(path string, log logrus.FieldLogger) (*Model, error) {
	return load(path, log, func(l *lua.State) error {
		return lua.LoadFile(l, path, "")
	})
}

// Load a model script from source. name is used in messages only.
func LoadString(name, source string, log logrus.FieldLogger) (*Model, error) {
	return load(name, log, func(l *lua.State) error {
		return lua.LoadString(l, source)
	})
}

func load(name string, log logrus.FieldLogger, chunk func(*lua.State) error) (*Model, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := lua.NewState()
	lua.OpenLibraries(l)
	ld := &loader{}
	ld.register(l)

	if err := chunk(l); err != nil {
		return nil, errors.Wrapf(err, "luamodel: load %s", name)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, errors.Wrapf(err, "luamodel: run %s", name)
	}
	if len(ld.actors) == 0 {
		return nil, errors.Errorf("luamodel: %s declares no actors", name)
	}

	l.Global(stateGlobal)
	switch l.TypeOf(-1) {
	case lua.TypeNil:
		l.NewTable()
		l.SetGlobal(stateGlobal)
	case lua.TypeTable:
	default:
		return nil, errors.Errorf("luamodel: %s: state must be a table, got %s", name, lua.TypeNameOf(l, -1))
	}
	l.Pop(1)

	m := &Model{
		l:          l,
		name:       name,
		actors:     ld.actors,
		invariants: ld.invariants,
		log:        log.WithField("model", name),
		pcs:        make([]int, len(ld.actors)),
		enabled:    make([]bool, len(ld.actors)),
	}
	if err := m.refresh(); err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"actors":     len(m.actors),
		"invariants": len(m.invariants),
	}).Info("Model loaded")
	return m, nil
}

// The name of the actor with the id
func (m *Model) ActorName(aid transition.ActorID) string {
	idx := int(aid) - 1
	if idx < 0 || idx >= len(m.actors) {
		return ""
	}
	return m.actors[idx].name
}

func (m *Model) InitialActors(ctx context.Context) ([]driver.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, err := m.checkInvariants(); err != nil {
		return nil, err
	} else if v != nil {
		return nil, errors.Errorf("luamodel: initial state of %s: %v", m.name, v)
	}
	actors := []driver.Actor{}
	for i := range m.actors {
		if m.alive(i) {
			actors = append(actors, m.actor(i))
		}
	}
	return actors, nil
}

func (m *Model) Execute(ctx context.Context, aid transition.ActorID, timesConsidered int) (driver.ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return driver.ExecResult{}, err
	}
	idx := int(aid) - 1
	if idx < 0 || idx >= len(m.actors) || !m.enabled[idx] {
		return driver.ExecResult{}, errors.Errorf("luamodel: actor %d is not enabled", aid)
	}
	step := m.actors[idx].steps[m.pcs[idx]]
	if timesConsidered < 0 || timesConsidered >= step.choices {
		return driver.ExecResult{}, errors.Errorf("luamodel: actor %d has %d choices, got %d", aid, step.choices, timesConsidered)
	}

	res := driver.ExecResult{
		Transition: transition.Transition{
			Actor:           aid,
			Kind:            step.kind,
			Resource:        step.resource,
			TimesConsidered: timesConsidered,
			Args:            step.label,
			Guarded:         step.guard != 0,
		},
	}
	if step.run != 0 {
		args, err := m.run(step.run, timesConsidered)
		if err != nil {
			res.Violation = &driver.Violation{Kind: driver.Assertion, Message: err.Error()}
		} else if args != "" {
			res.Transition.Args = args
		}
	}
	m.pcs[idx]++

	if res.Violation == nil {
		v, err := m.checkInvariants()
		if err != nil {
			return res, err
		}
		res.Violation = v
	}

	before := slices.Clone(m.enabled)
	if err := m.refresh(); err != nil {
		res.Violation = &driver.Violation{Kind: driver.Crash, Message: err.Error()}
	}
	for i := range m.actors {
		id := transition.ActorID(i + 1)
		if i == idx {
			switch {
			case !m.alive(i):
				res.Finished = append(res.Finished, id)
			case m.enabled[i]:
				res.NewlyEnabled = append(res.NewlyEnabled, m.actor(i))
			default:
				res.NewlyDisabled = append(res.NewlyDisabled, id)
			}
			continue
		}
		if !m.alive(i) || before[i] == m.enabled[i] {
			continue
		}
		if m.enabled[i] {
			res.NewlyEnabled = append(res.NewlyEnabled, m.actor(i))
		} else {
			res.NewlyDisabled = append(res.NewlyDisabled, id)
		}
	}
	m.log.WithFields(logrus.Fields{
		"actor":      aid,
		"transition": res.Transition.String(),
	}).Trace("Step executed")
	return res, nil
}

func (m *Model) alive(i int) bool {
	return m.pcs[i] < len(m.actors[i].steps)
}

func (m *Model) actor(i int) driver.Actor {
	return driver.Actor{
		ID:          transition.ActorID(i + 1),
		Enabled:     m.enabled[i],
		MaxConsider: m.actors[i].steps[m.pcs[i]].choices,
	}
}

// Evaluate the guards of the pending steps
func (m *Model) refresh() error {
	for i := range m.actors {
		if !m.alive(i) {
			m.enabled[i] = false
			continue
		}
		step := m.actors[i].steps[m.pcs[i]]
		if step.guard == 0 {
			m.enabled[i] = true
			continue
		}
		ok, err := m.predicate(step.guard)
		if err != nil {
			return errors.Wrapf(err, "guard of %s step %d", m.actors[i].name, m.pcs[i]+1)
		}
		m.enabled[i] = ok
	}
	return nil
}

// Returns the first invariant that does not hold. An invariant raising an error does not hold.
func (m *Model) checkInvariants() (*driver.Violation, error) {
	for _, inv := range m.invariants {
		ok, err := m.predicate(inv.fn)
		if err != nil {
			return &driver.Violation{Kind: driver.Invariant, Message: fmt.Sprintf("%s: %v", inv.name, err)}, nil
		}
		if !ok {
			return &driver.Violation{Kind: driver.Invariant, Message: inv.name}, nil
		}
	}
	return nil, nil
}

// Call run(state, choice). A string result describes the step.
func (m *Model) run(ref int, choice int) (string, error) {
	top := m.l.Top()
	defer m.l.SetTop(top)

	m.pushFunction(ref)
	m.l.Global(stateGlobal)
	m.l.PushInteger(choice)
	if err := m.l.ProtectedCall(2, 1, 0); err != nil {
		return "", err
	}
	if m.l.TypeOf(-1) == lua.TypeString {
		s, _ := m.l.ToString(-1)
		return s, nil
	}
	return "", nil
}

// Call fn(state) and read its result as a boolean
func (m *Model) predicate(ref int) (bool, error) {
	top := m.l.Top()
	defer m.l.SetTop(top)

	m.pushFunction(ref)
	m.l.Global(stateGlobal)
	if err := m.l.ProtectedCall(1, 1, 0); err != nil {
		return false, err
	}
	return m.l.ToBoolean(-1), nil
}

func (m *Model) pushFunction(ref int) {
	m.l.Global(functionsTable)
	m.l.RawGetInt(-1, ref)
	m.l.Remove(-2)
}
