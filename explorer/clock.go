package explorer

import "mcheck/transition"

// A vector clock over the stack.
//
// For every actor, the index on the stack of the latest transition of that actor that happened before the
// transition owning the clock. Happens-before is the transitive closure of program order and dependency.
type clock map[transition.ActorID]int

// Merge other into c
func (c clock) join(other clock) {
	for aid, idx := range other {
		if cur, ok := c[aid]; !ok || idx > cur {
			c[aid] = idx
		}
	}
}

// Whether the transition of the actor at index idx of the stack happened before the owner of the clock
func (c clock) covers(aid transition.ActorID, idx int) bool {
	cur, ok := c[aid]
	return ok && idx <= cur
}
