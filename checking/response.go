package checking

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"mcheck/driver"
	"mcheck/explorer"
	"mcheck/transition"
)

type resultResponse struct {
	outcome   explorer.Outcome
	violation *driver.Violation
	trace     []transition.Transition
	stats     explorer.Stats
}

// Generate a response.
// Only an exploration without violation and without truncated paths holds.
// The description of a failed exploration lists the transitions leading to the violation, or to the first
// path cut at the maximum depth.
func (rr *resultResponse) Response() (bool, string) {
	switch rr.outcome {
	case explorer.OutcomeNoViolation:
		return true, fmt.Sprintf("No violation found. %v", rr.stats)
	case explorer.OutcomeViolation:
		return false, rr.describe(fmt.Sprintf("Violation found: %v.", rr.violation))
	}
	return false, rr.describe(fmt.Sprintf("Maximum depth reached on %d paths.", rr.stats.DepthLimitHits))
}

func (rr *resultResponse) describe(headline string) string {
	var buffer bytes.Buffer
	wrt := tabwriter.NewWriter(&buffer, 4, 4, 1, ' ', 0)
	fmt.Fprintf(wrt, "%v Trace (%d transitions):\n", headline, len(rr.trace))
	for i, t := range rr.trace {
		fmt.Fprintf(wrt, "%d\t-> %v\n", i+1, t)
	}
	fmt.Fprintf(wrt, "Record trace:\t%v\n", transition.RecordOf(rr.trace))
	fmt.Fprintf(wrt, "%v\n", rr.stats)
	wrt.Flush()
	return buffer.String()
}

// Export the trace of the response to be replayed
func (rr *resultResponse) Export() transition.RecordTrace {
	return transition.RecordOf(rr.trace)
}
