// Package visited implements the visited-state reduction.
//
// The set remembers snapshots of explored states and tells the explorer when a new state is equal to one
// that has already been explored, so that its subtree can be skipped.
package visited

import (
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"mcheck/driver"
	"mcheck/state"
)

// An ordered collection of visited states.
//
// Entries are kept sorted by (ActorCount, HeapBytesUsed) so that only the states that can possibly be equal to
// a candidate are compared with it.
// The size of the set is bounded. When the bound is exceeded the entry with the smallest sequence number is evicted.
// Not safe for concurrent use.
type VisitedStateSet struct {
	states  []*VisitedState
	maxSize int
	log     logrus.FieldLogger
}

// Create a new VisitedStateSet holding at most maxSize states
func NewVisitedStateSet(maxSize int, log logrus.FieldLogger) *VisitedStateSet {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VisitedStateSet{
		states:  make([]*VisitedState, 0),
		maxSize: maxSize,
		log:     log,
	}
}

// The number of stored states
func (vss *VisitedStateSet) Len() int {
	return len(vss.states)
}

// Check whether the state has been visited before and record it.
//
// The snapshot is attached to st.
// If an equal state is stored, it is replaced by the new one and returned: the caller should not explore st.
// Otherwise st is inserted and nil is returned.
func (vss *VisitedStateSet) AddVisitedState(st *state.State, snap driver.Snapshot) *VisitedState {
	newState := NewVisitedState(st, snap)
	begin, end := vss.equalRange(newState.ActorCount, newState.HeapBytesUsed)

	for i := begin; i < end; i++ {
		old := vss.states[i]
		if old.Num == newState.Num {
			panic(&state.ProgrammingError{Msg: "visited: state inserted twice"})
		}
		if !old.Snapshot.Equal(newState.Snapshot) {
			continue
		}
		newState.OriginalNum = old.Original()
		vss.log.WithFields(logrus.Fields{
			"state":    newState.Num,
			"equal":    old.Num,
			"original": newState.OriginalNum,
		}).Debug("State already visited")

		// The new state takes the slot of the old one. Having a larger number it will be evicted later.
		vss.states[i] = newState
		return old
	}

	vss.log.WithFields(logrus.Fields{
		"state": newState.Num,
		"total": len(vss.states),
	}).Debug("Insert new visited state")
	vss.states = slices.Insert(vss.states, begin, newState)
	vss.prune()
	return nil
}

// Evict the oldest states until the set fits its bound.
//
// States are evicted by smallest sequence number, not by last match.
func (vss *VisitedStateSet) prune() {
	for len(vss.states) > vss.maxSize {
		oldest := 0
		for i, vs := range vss.states {
			if vs.Num < vss.states[oldest].Num {
				oldest = i
			}
		}
		vss.log.WithField("state", vss.states[oldest].Num).Debug("Remove visited state (maximum number of stored states reached)")
		vss.states = slices.Delete(vss.states, oldest, oldest+1)
	}
}

// The range [begin, end) of the entries with the provided key
func (vss *VisitedStateSet) equalRange(actorCount int, heapBytes int64) (int, int) {
	begin := sort.Search(len(vss.states), func(i int) bool {
		return compareKey(vss.states[i], actorCount, heapBytes) >= 0
	})
	end := begin + sort.Search(len(vss.states)-begin, func(i int) bool {
		return compareKey(vss.states[begin+i], actorCount, heapBytes) > 0
	})
	return begin, end
}

// Returns true if a state with the provided sequence number is stored
func (vss *VisitedStateSet) Contains(num int64) bool {
	return slices.IndexFunc(vss.states, func(vs *VisitedState) bool { return vs.Num == num }) >= 0
}
