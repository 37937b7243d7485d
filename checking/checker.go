// Package checking turns the outcome of an exploration into a report for the user.
package checking

import (
	"mcheck/explorer"
	"mcheck/transition"
)

// CheckerResponse is the verdict of one exploration
type CheckerResponse interface {
	// Create a response.
	//
	// Returns a boolean that is true if no violation was found, false otherwise.
	// Returns a string describing the response.
	// On a violation the description names it and lists the transitions that lead to it.
	Response() (bool, string)

	// Export the run that ended in the reported outcome
	//
	// The returned trace can be replayed with the replay package. It is empty if nothing was found.
	Export() transition.RecordTrace
}

// Create the response for an exploration result
func Respond(res *explorer.Result) CheckerResponse {
	return &resultResponse{
		outcome:   res.Outcome,
		violation: res.Violation,
		trace:     res.Trace,
		stats:     res.Stats,
	}
}
