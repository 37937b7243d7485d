package luamodel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"mcheck/driver"
	"mcheck/explorer"
	"mcheck/transition"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func loadExample(t *testing.T, name string) *Model {
	t.Helper()
	m, err := Load(filepath.Join("..", "examples", name), quietLogger())
	require.NoError(t, err)
	return m
}

func TestLoadErrors(t *testing.T) {
	for _, test := range loadErrorTest {
		_, err := LoadString(test.name, test.source, quietLogger())
		assert.Error(t, err, test.name)
	}
}

func TestLoadExamples(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "examples", "*.lua"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, file := range files {
		m, err := Load(file, quietLogger())
		require.NoError(t, err, file)
		actors, err := m.InitialActors(context.Background())
		require.NoError(t, err, file)
		assert.NotEmpty(t, actors, file)
	}
}

func TestInitialActors(t *testing.T) {
	m := loadExample(t, "counter.lua")
	actors, err := m.InitialActors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []driver.Actor{
		{ID: 1, Enabled: true, MaxConsider: 1},
		{ID: 2, Enabled: true, MaxConsider: 1},
	}, actors)
	assert.Equal(t, "left", m.ActorName(1))
	assert.Equal(t, "right", m.ActorName(2))
	assert.Equal(t, "", m.ActorName(3))
}

func TestInitialStateBreakingInvariant(t *testing.T) {
	m, err := LoadString("broken", `
		state = { x = 1 }
		actor("a", { step{ kind = "write", resource = "x" } })
		invariant("x is zero", function(s) return s.x == 0 end)
	`, quietLogger())
	require.NoError(t, err)
	_, err = m.InitialActors(context.Background())
	assert.Error(t, err)
}

func TestExecuteReportsStatusChanges(t *testing.T) {
	m := loadExample(t, "mutex.lua")
	ctx := context.Background()

	res, err := m.Execute(ctx, 1, 0)
	require.NoError(t, err)
	assert.Nil(t, res.Violation)
	assert.Equal(t, transition.Lock, res.Transition.Kind)
	assert.Equal(t, "m", res.Transition.Resource)
	assert.Equal(t, []driver.Actor{{ID: 1, Enabled: true, MaxConsider: 1}}, res.NewlyEnabled)
	assert.Equal(t, []transition.ActorID{2}, res.NewlyDisabled, "The lock is held by the first actor")

	_, err = m.Execute(ctx, 2, 0)
	assert.Error(t, err, "A disabled actor can not be executed")

	for i := 0; i < 2; i++ {
		_, err = m.Execute(ctx, 1, 0)
		require.NoError(t, err)
	}
	res, err = m.Execute(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []transition.ActorID{1}, res.Finished)
	assert.Equal(t, []driver.Actor{{ID: 2, Enabled: true, MaxConsider: 1}}, res.NewlyEnabled)
	assert.Empty(t, res.NewlyDisabled)
}

func TestExecuteDescribesSteps(t *testing.T) {
	m := loadExample(t, "counter.lua")
	res, err := m.Execute(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "[(1)] Read(x) x=0", res.Transition.String())
}

func TestExecuteChoices(t *testing.T) {
	m := loadExample(t, "coin.lua")
	ctx := context.Background()
	actors, err := m.InitialActors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, actors[0].MaxConsider)

	_, err = m.Execute(ctx, 1, 2)
	assert.Error(t, err, "The step has two choices")

	res, err := m.Execute(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "tails", res.Transition.Args)
	assert.Equal(t, 1, res.Transition.TimesConsidered)

	res, err = m.Execute(ctx, 2, 0)
	require.NoError(t, err)
	require.NotNil(t, res.Violation)
	assert.Equal(t, driver.Assertion, res.Violation.Kind)
	assert.Contains(t, res.Violation.Message, "the coin landed on tails")
}

func TestExecuteViolations(t *testing.T) {
	for _, test := range violationTest {
		m, err := LoadString(test.name, test.source, quietLogger())
		require.NoError(t, err, test.name)
		res, err := m.Execute(context.Background(), 1, 0)
		require.NoError(t, err, test.name)
		require.NotNil(t, res.Violation, test.name)
		assert.Equal(t, test.kind, res.Violation.Kind, test.name)
		assert.Contains(t, res.Violation.Message, test.message, test.name)
	}
}

func TestSnapshotRestore(t *testing.T) {
	m := loadExample(t, "counter.lua")
	ctx := context.Background()

	initial, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, initial.ActorCount())
	assert.Greater(t, initial.HeapBytesUsed(), int64(0))

	for _, aid := range []transition.ActorID{1, 1} {
		_, err := m.Execute(ctx, aid, 0)
		require.NoError(t, err)
	}
	after, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, after.ActorCount())
	assert.False(t, initial.Equal(after))

	require.NoError(t, m.Restore(ctx, initial))
	again, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, initial.Equal(again))
	actors, err := m.InitialActors(ctx)
	require.NoError(t, err)
	assert.Len(t, actors, 2, "Both actors are alive again")

	res, err := m.Execute(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "[(1)] Read(x) x=0", res.Transition.String())
}

func TestRestoreIsLogged(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	m, err := Load(filepath.Join("..", "examples", "counter.lua"), logger)
	require.NoError(t, err)
	ctx := context.Background()

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)
	_, err = m.Execute(ctx, 1, 0)
	require.NoError(t, err)
	require.NoError(t, m.Restore(ctx, snap))

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.TraceLevel, last.Level)
	assert.Equal(t, "Snapshot restored", last.Message)
	assert.Equal(t, "counter.lua", filepath.Base(last.Data["model"].(string)))
}

func TestSnapshotEqualityIgnoresHistory(t *testing.T) {
	m := loadExample(t, "counter.lua")
	ctx := context.Background()

	// Reading in either order leads to the same state
	for _, aid := range []transition.ActorID{1, 2} {
		_, err := m.Execute(ctx, aid, 0)
		require.NoError(t, err)
	}
	first, err := m.Snapshot(ctx)
	require.NoError(t, err)

	other := loadExample(t, "counter.lua")
	for _, aid := range []transition.ActorID{2, 1} {
		_, err := other.Execute(ctx, aid, 0)
		require.NoError(t, err)
	}
	second, err := other.Snapshot(ctx)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.True(t, second.Equal(first))
}

func TestSnapshotEncoding(t *testing.T) {
	m := loadExample(t, "philosophers.lua")
	ctx := context.Background()
	_, err := m.Execute(ctx, 2, 0)
	require.NoError(t, err)
	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)

	content, err := m.EncodeSnapshot(snap)
	require.NoError(t, err)
	decoded, err := m.DecodeSnapshot(content)
	require.NoError(t, err)
	assert.True(t, snap.Equal(decoded))
	assert.Equal(t, snap.ActorCount(), decoded.ActorCount())

	broken := proto.Clone(content).(*structpb.Struct)
	broken.Fields["pcs"].GetListValue().Values = nil
	_, err = m.DecodeSnapshot(broken)
	assert.Error(t, err)
}

func TestSnapshotRejectsFunctions(t *testing.T) {
	m, err := LoadString("functions", `
		state = { f = function() end }
		actor("a", { step{} })
	`, quietLogger())
	require.NoError(t, err)
	_, err = m.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestExploreModels(t *testing.T) {
	for _, test := range exploreTest {
		m := loadExample(t, test.file)
		exp, err := explorer.New(explorer.StrategyDFS, m,
			explorer.WithLogger(quietLogger()),
			explorer.WithReduction(test.reduction),
		)
		require.NoError(t, err, test.file)
		res, err := exp.Run(context.Background())
		require.NoError(t, err, test.file)

		assert.Equal(t, test.outcome, res.Outcome, test.file)
		if test.outcome == explorer.OutcomeViolation {
			require.NotNil(t, res.Violation, test.file)
			assert.Equal(t, test.kind, res.Violation.Kind, test.file)
		}
		if test.trace != "" {
			assert.Equal(t, test.trace, res.RecordTrace().String(), test.file)
		}
	}
}

var loadErrorTest = []struct {
	name   string
	source string
}{
	{name: "syntax", source: `actor(`},
	{name: "no actors", source: `state = {}`},
	{name: "runtime error", source: `error("boom")`},
	{name: "state not a table", source: `state = 1; actor("a", { step{} })`},
	{name: "no steps", source: `actor("a", {})`},
	{name: "step not a table", source: `actor("a", { 1 })`},
	{name: "unknown kind", source: `actor("a", { step{ kind = "jump" } })`},
	{name: "bad choices", source: `actor("a", { step{ choices = 0 } })`},
	{name: "run not a function", source: `actor("a", { step{ run = 1 } })`},
	{name: "invariant not a function", source: `actor("a", { step{} }); invariant("i", 1)`},
}

var violationTest = []struct {
	name    string
	source  string
	kind    driver.ViolationKind
	message string
}{
	{
		name:    "assert",
		source:  `actor("a", { step{ run = function(s) assert(false, "always fails") end } })`,
		kind:    driver.Assertion,
		message: "always fails",
	},
	{
		name: "invariant",
		source: `state = { x = 0 }
			actor("a", { step{ kind = "write", resource = "x", run = function(s) s.x = 1 end } })
			invariant("x stays zero", function(s) return s.x == 0 end)`,
		kind:    driver.Invariant,
		message: "x stays zero",
	},
	{
		name: "guard error",
		source: `actor("a", {
				step{},
				step{ guard = function(s) return s.missing.field end },
			})`,
		kind:    driver.Crash,
		message: "guard of a step 2",
	},
}

var exploreTest = []struct {
	file      string
	reduction explorer.Reduction
	outcome   explorer.Outcome
	kind      driver.ViolationKind
	trace     string
}{
	{file: "counter.lua", reduction: explorer.ReductionNone, outcome: explorer.OutcomeViolation, kind: driver.Invariant, trace: "1;2;1;2"},
	{file: "counter.lua", reduction: explorer.ReductionDPOR, outcome: explorer.OutcomeViolation, kind: driver.Invariant},
	{file: "mutex.lua", reduction: explorer.ReductionNone, outcome: explorer.OutcomeNoViolation},
	{file: "mutex.lua", reduction: explorer.ReductionDPOR, outcome: explorer.OutcomeNoViolation},
	{file: "philosophers.lua", reduction: explorer.ReductionNone, outcome: explorer.OutcomeViolation, kind: driver.Deadlock},
	{file: "philosophers.lua", reduction: explorer.ReductionDPOR, outcome: explorer.OutcomeViolation, kind: driver.Deadlock},
	{file: "coin.lua", reduction: explorer.ReductionNone, outcome: explorer.OutcomeViolation, kind: driver.Assertion, trace: "1/1;2"},
}
