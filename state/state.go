package state

import (
	"context"
	"fmt"

	"golang.org/x/exp/slices"

	"mcheck/driver"
	"mcheck/transition"
)

// Runs one step of an actor. Implemented by driver.Driver.
type Executor interface {
	Execute(ctx context.Context, aid transition.ActorID, timesConsidered int) (driver.ExecResult, error)
}

// A node of the exploration graph.
//
// Stores the actors alive at this point of the execution, the transition taken to leave it,
// and optionally a snapshot of the full execution used to roll back to it.
// A State is only mutated by the explorer that created it.
type State struct {
	// Sequence number. Unique and increasing within one exploration.
	Num int64

	actors     map[transition.ActorID]*ActorStatus
	transition *transition.Transition
	snapshot   driver.Snapshot
}

// Create a new State with the provided actors
func New(num int64, actors []driver.Actor) *State {
	s := &State{
		Num:    num,
		actors: make(map[transition.ActorID]*ActorStatus, len(actors)),
	}
	for _, a := range actors {
		s.actors[a.ID] = newActorStatus(a.Enabled, a.MaxConsider)
	}
	return s
}

// Create the State reached by taking the outgoing transition of s.
//
// The actors of the new state are the actors of s with the status changes reported by the driver applied.
// The todo and done marks are not inherited.
func (s *State) Successor(num int64, res driver.ExecResult) *State {
	next := &State{
		Num:    num,
		actors: make(map[transition.ActorID]*ActorStatus, len(s.actors)),
	}
	for id, as := range s.actors {
		next.actors[id] = newActorStatus(as.Enabled, as.MaxConsider)
	}
	if s.transition != nil {
		// Unless told otherwise the actor that moved is ready to run an ordinary step
		if as, ok := next.actors[s.transition.Actor]; ok {
			as.MaxConsider = 1
		}
	}
	for _, a := range res.NewlyEnabled {
		next.actors[a.ID] = newActorStatus(true, a.MaxConsider)
	}
	for _, id := range res.NewlyDisabled {
		if as, ok := next.actors[id]; ok {
			as.Enabled = false
			continue
		}
		next.actors[id] = newActorStatus(false, 1)
	}
	for _, id := range res.Finished {
		delete(next.actors, id)
	}
	return next
}

// The next actor to run from this state.
//
// Returns the actor with the lowest id that is marked todo, is enabled and is not done.
// Returns false if there is no such actor.
func (s *State) NextTransition() (transition.ActorID, bool) {
	for _, id := range s.ActorIDs() {
		if s.actors[id].runnable() {
			return id, true
		}
	}
	return 0, false
}

// Execute one step of the actor and store it as the outgoing transition of the state.
//
// The returned result describes the status changes that apply to the next state.
func (s *State) ExecuteNext(ctx context.Context, exec Executor, aid transition.ActorID) (driver.ExecResult, error) {
	as := s.status(aid)
	if !as.Enabled || as.Done {
		panic(programmingErrorf("state %d: actor %d is not runnable", s.Num, aid))
	}
	times := as.consider()
	res, err := exec.Execute(ctx, aid, times)
	if err != nil {
		return res, err
	}
	if res.Transition.Actor != aid {
		panic(programmingErrorf("state %d: executed actor %d but the driver reported a transition of actor %d", s.Num, aid, res.Transition.Actor))
	}
	t := res.Transition
	s.transition = &t
	return res, nil
}

// Mark the actor as one that must be tried from this state.
// Has no effect on actors that are done.
func (s *State) MarkTodo(aid transition.ActorID) {
	s.status(aid).markTodo()
}

func (s *State) IsDone(aid transition.ActorID) bool {
	return s.status(aid).Done
}

func (s *State) IsTodo(aid transition.ActorID) bool {
	return s.status(aid).Todo
}

// Returns false for actors that are not alive in this state
func (s *State) IsEnabled(aid transition.ActorID) bool {
	as, ok := s.actors[aid]
	return ok && as.Enabled
}

// Returns true if the actor is alive in this state
func (s *State) HasActor(aid transition.ActorID) bool {
	_, ok := s.actors[aid]
	return ok
}

// Returns a copy of the status of the actor
func (s *State) Status(aid transition.ActorID) (ActorStatus, bool) {
	as, ok := s.actors[aid]
	if !ok {
		return ActorStatus{}, false
	}
	return *as, true
}

// Mark all enabled actors as todo. Returns the number of actors marked.
func (s *State) ConsiderAll() int {
	n := 0
	for _, id := range s.ActorIDs() {
		if as := s.actors[id]; as.Enabled && !as.Done {
			as.markTodo()
			n++
		}
	}
	return n
}

// Mark the first enabled actor as todo. Returns false if no actor is enabled.
func (s *State) ConsiderOne() bool {
	for _, id := range s.ActorIDs() {
		if as := s.actors[id]; as.Enabled && !as.Done {
			as.markTodo()
			return true
		}
	}
	return false
}

// The number of actors that are still to be tried from this state
func (s *State) CountTodo() int {
	n := 0
	for _, as := range s.actors {
		if as.runnable() {
			n++
		}
	}
	return n
}

// The number of actors alive in this state
func (s *State) ActorCount() int {
	return len(s.actors)
}

// The ids of the actors alive in this state, in ascending order
func (s *State) ActorIDs() []transition.ActorID {
	ids := make([]transition.ActorID, 0, len(s.actors))
	for id := range s.actors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// The ids of the enabled actors, in ascending order
func (s *State) EnabledActors() []transition.ActorID {
	ids := []transition.ActorID{}
	for _, id := range s.ActorIDs() {
		if s.actors[id].Enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

// The outgoing transition. nil if the state has not been left yet.
func (s *State) Transition() *transition.Transition {
	return s.transition
}

func (s *State) Snapshot() driver.Snapshot {
	return s.snapshot
}

// Attach a snapshot to the state. The snapshot may be shared with a visited state.
func (s *State) SetSnapshot(snap driver.Snapshot) {
	s.snapshot = snap
}

func (s *State) String() string {
	return fmt.Sprintf("State %d (%d actors, %d todo)", s.Num, len(s.actors), s.CountTodo())
}

func (s *State) status(aid transition.ActorID) *ActorStatus {
	as, ok := s.actors[aid]
	if !ok {
		panic(programmingErrorf("state %d: unknown actor %d", s.Num, aid))
	}
	return as
}
