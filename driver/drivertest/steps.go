package drivertest

import (
	"fmt"

	"mcheck/driver"
	"mcheck/transition"
)

// Write value to the variable
func Write(resource string, value int) Step {
	return Step{
		Kind:     transition.Write,
		Resource: resource,
		Args:     fmt.Sprintf("%s=%d", resource, value),
		Run: func(vars Vars, _ int) *driver.Violation {
			vars[resource] = value
			return nil
		},
	}
}

// Add one to the variable
func Incr(resource string) Step {
	return Step{
		Kind:     transition.Write,
		Resource: resource,
		Args:     resource + "++",
		Run: func(vars Vars, _ int) *driver.Violation {
			vars[resource]++
			return nil
		},
	}
}

func Read(resource string) Step {
	return Step{Kind: transition.Read, Resource: resource}
}

// Acquire the lock. Blocks while it is held.
func Lock(resource string) Step {
	return Step{
		Kind:     transition.Lock,
		Resource: resource,
		Guard:    func(vars Vars) bool { return vars[resource] == 0 },
		Run: func(vars Vars, _ int) *driver.Violation {
			vars[resource] = 1
			return nil
		},
	}
}

func Unlock(resource string) Step {
	return Step{
		Kind:     transition.Unlock,
		Resource: resource,
		Run: func(vars Vars, _ int) *driver.Violation {
			vars[resource] = 0
			return nil
		},
	}
}

// A step that fails with an assertion violation
func Fail(msg string) Step {
	return Step{
		Kind: transition.Assert,
		Run: func(Vars, int) *driver.Violation {
			return &driver.Violation{Kind: driver.Assertion, Message: msg}
		},
	}
}

// Check that the variable has the expected value
func Assert(resource string, expected int) Step {
	return Step{
		Kind:     transition.Assert,
		Resource: resource,
		Run: func(vars Vars, _ int) *driver.Violation {
			if vars[resource] != expected {
				return &driver.Violation{Kind: driver.Assertion, Message: fmt.Sprintf("%s is %d, expected %d", resource, vars[resource], expected)}
			}
			return nil
		},
	}
}

// Store one of n values in the variable. Each value is a separate outcome.
func Choose(resource string, n int) Step {
	return Step{
		Kind:     transition.Random,
		Resource: resource,
		Choices:  n,
		Run: func(vars Vars, choice int) *driver.Violation {
			vars[resource] = choice
			return nil
		},
	}
}

// A step that never lets the actor move on
func Spin() Step {
	return Step{Kind: transition.Internal, Loop: true}
}

// The step only runs once the guard holds
func (s Step) When(guard func(vars Vars) bool) Step {
	s.Guard = guard
	return s
}
