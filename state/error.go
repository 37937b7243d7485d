package state

import "fmt"

// A violation of the bookkeeping contract of the explorer, e.g. querying an actor that is not part of a state.
//
// It signals a bug in the caller or the driver, not a property of the checked program.
// It is raised with panic and aborts the exploration.
type ProgrammingError struct {
	Msg string
}

func (pe *ProgrammingError) Error() string {
	return "programming error: " + pe.Msg
}

func programmingErrorf(format string, args ...any) *ProgrammingError {
	return &ProgrammingError{Msg: fmt.Sprintf(format, args...)}
}
