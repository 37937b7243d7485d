package explorer

import (
	"github.com/pkg/errors"

	"mcheck/state"
)

var (
	// Returned when the requested reductions can not be combined
	ErrConfigurationConflict = errors.New("explorer: configuration conflict")
	// Returned by the UDPOR explorer, which has no search algorithm yet
	ErrUDPORUnsupported = errors.New("explorer: UDPOR exploration is not supported")
	// Returned when Run is called on an explorer that has already run
	ErrAlreadyRun = errors.New("explorer: exploration already started")
)

// A violation of the bookkeeping contract between the explorer, its states and the driver.
// Aborts the run.
type ProgrammingError = state.ProgrammingError
