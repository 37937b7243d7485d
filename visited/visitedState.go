package visited

import (
	"fmt"

	"mcheck/driver"
	"mcheck/state"
)

// A previously explored state kept for equality checks.
type VisitedState struct {
	Snapshot      driver.Snapshot
	HeapBytesUsed int64
	ActorCount    int
	// The sequence number of the exploration state this entry was created from
	Num int64
	// The number of the first visited state this one was found equal to. -1 if this is an original.
	OriginalNum int64
}

// Create a new VisitedState from an exploration state and its snapshot.
//
// The snapshot is attached to the exploration state so that both share it.
func NewVisitedState(st *state.State, snap driver.Snapshot) *VisitedState {
	st.SetSnapshot(snap)
	return &VisitedState{
		Snapshot:      snap,
		HeapBytesUsed: snap.HeapBytesUsed(),
		ActorCount:    snap.ActorCount(),
		Num:           st.Num,
		OriginalNum:   -1,
	}
}

// The number of the state this one is a copy of. Its own number if it is an original.
func (vs *VisitedState) Original() int64 {
	if vs.OriginalNum == -1 {
		return vs.Num
	}
	return vs.OriginalNum
}

func (vs *VisitedState) String() string {
	return fmt.Sprintf("VisitedState %d (actors: %d, heap: %d, original: %d)", vs.Num, vs.ActorCount, vs.HeapBytesUsed, vs.Original())
}

// Orders visited states by actor count first and heap size second
func compareKey(a *VisitedState, actorCount int, heapBytes int64) int {
	switch {
	case a.ActorCount < actorCount:
		return -1
	case a.ActorCount > actorCount:
		return 1
	case a.HeapBytesUsed < heapBytes:
		return -1
	case a.HeapBytesUsed > heapBytes:
		return 1
	}
	return 0
}
