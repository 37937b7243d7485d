package checking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"mcheck/driver"
	"mcheck/explorer"
	"mcheck/transition"
)

func TestResponse(t *testing.T) {
	for _, test := range responseTest {
		resp := Respond(test.res)
		ok, desc := resp.Response()
		assert.Equal(t, test.ok, ok)
		for _, part := range test.contains {
			assert.Contains(t, desc, part)
		}
		assert.Equal(t, test.export, resp.Export().String())
	}
}

func TestResponseListsEveryTransition(t *testing.T) {
	_, desc := Respond(violationResult).Response()
	lines := strings.Split(strings.TrimSpace(desc), "\n")
	// Headline, two transitions, record trace and counters
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], "1"))
}

var violationResult = &explorer.Result{
	Outcome:   explorer.OutcomeViolation,
	Violation: &driver.Violation{Kind: driver.Assertion, Message: "x is 2"},
	Trace: []transition.Transition{
		{Actor: 1, Kind: transition.Write, Resource: "x", Args: "x=1"},
		{Actor: 2, Kind: transition.Write, Resource: "x", TimesConsidered: 1},
	},
	Stats: explorer.Stats{ExpandedStates: 3},
}

var responseTest = []struct {
	res      *explorer.Result
	ok       bool
	contains []string
	export   string
}{
	{
		res:      &explorer.Result{Outcome: explorer.OutcomeNoViolation, Stats: explorer.Stats{ExpandedStates: 7, Duplicates: 2}},
		ok:       true,
		contains: []string{"No violation found", "7 states expanded", "2 duplicates"},
		export:   "",
	},
	{
		res:      violationResult,
		ok:       false,
		contains: []string{"Violation found: assertion failure: x is 2.", "-> [(1)] Write(x) x=1", "-> [(2)] Write(x) #1", "1;2/1"},
		export:   "1;2/1",
	},
	{
		res: &explorer.Result{
			Outcome: explorer.OutcomeNonTermination,
			Trace:   []transition.Transition{{Actor: 1}, {Actor: 1}},
			Stats:   explorer.Stats{DepthLimitHits: 4},
		},
		ok:       false,
		contains: []string{"Maximum depth reached on 4 paths", "1;1"},
		export:   "1;1",
	},
}
