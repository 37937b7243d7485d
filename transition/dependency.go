package transition

// Dependent reports whether the two transitions may not commute.
//
// Two transitions are independent if executing them in either order leads to the same state
// and neither can enable or disable the other.
// Transitions of the same actor are always dependent.
// The relation is conservative: kinds that are not known to commute are treated as dependent.
func Dependent(a, b Transition) bool {
	if a.Actor == b.Actor {
		return true
	}
	// A step that writes may flip the guard of the other one
	if a.Guarded && writes(b) || b.Guarded && writes(a) {
		return true
	}
	if local(a) || local(b) {
		return false
	}
	if a.Resource == "" || b.Resource == "" {
		// A shared step without a resource could touch anything
		return true
	}
	if a.Resource != b.Resource {
		return false
	}
	return conflicts(a.Kind, b.Kind)
}

// Steps that only act on the actor itself. A random step storing its outcome in a resource is shared.
func local(t Transition) bool {
	return t.Kind == Internal || t.Kind == Random && t.Resource == ""
}

// Steps that may change shared state
func writes(t Transition) bool {
	if local(t) {
		return false
	}
	return t.Kind != Read && t.Kind != Assert
}

// Whether two steps on the same resource conflict
func conflicts(a, b Kind) bool {
	switch {
	case a == Read && b == Read:
		return false
	case a == Assert && b == Assert, a == Assert && b == Read, a == Read && b == Assert:
		return false
	}
	return true
}
