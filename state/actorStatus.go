package state

// The bookkeeping of one actor within one State.
//
// Todo marks actors the search still has to try from the State.
// Done marks actors whose subtree has been fully explored from the State. Done is permanent.
type ActorStatus struct {
	Enabled bool
	Done    bool
	Todo    bool

	// Number of outcomes of the pending step of the actor
	MaxConsider int
	// Number of outcomes already handed out
	TimesConsidered int
}

func newActorStatus(enabled bool, maxConsider int) *ActorStatus {
	if maxConsider < 1 {
		maxConsider = 1
	}
	return &ActorStatus{
		Enabled:     enabled,
		MaxConsider: maxConsider,
	}
}

// Whether the actor can be selected as the next actor to run
func (as *ActorStatus) runnable() bool {
	return as.Todo && as.Enabled && !as.Done
}

func (as *ActorStatus) markTodo() {
	if as.Done {
		return
	}
	as.Todo = true
}

// Hand out the next outcome of the pending step.
// The actor is done once its last outcome has been handed out.
func (as *ActorStatus) consider() int {
	times := as.TimesConsidered
	as.TimesConsidered++
	if as.TimesConsidered >= as.MaxConsider {
		as.Done = true
		as.Todo = false
	}
	return times
}
