package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcheck/driver"
	"mcheck/explorer"
	"mcheck/transition"
)

func open(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store, path
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	store, path := open(t)
	_, err := store.SaveRun(ctx, Run{Model: "counter.lua"})
	require.NoError(t, err)

	again, err := Open(ctx, path)
	require.NoError(t, err)
	defer again.Close()
	runs, err := again.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "Reopening keeps the stored runs")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 2, applied)
}

func TestSaveAndGetRun(t *testing.T) {
	ctx := context.Background()
	store, _ := open(t)

	res := &explorer.Result{
		Outcome:   explorer.OutcomeViolation,
		Violation: &driver.Violation{Kind: driver.Invariant, Message: "no lost update"},
		Trace: []transition.Transition{
			{Actor: 1, Kind: transition.Read, Resource: "x"},
			{Actor: 2, Kind: transition.Random, TimesConsidered: 1},
		},
		Stats: explorer.Stats{ExpandedStates: 12, Backtracks: 3, Duplicates: 1, MaxDepthReached: 4, DepthLimitHits: 2},
	}
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := NewRun("counter.lua", explorer.StrategyDFS, explorer.ReductionDPOR, res, started, 1500*time.Millisecond)

	id, err := store.SaveRun(ctx, run)
	require.NoError(t, err)
	got, err := store.GetRun(ctx, id)
	require.NoError(t, err)

	run.ID = id
	assert.Equal(t, run, got)
	assert.Equal(t, "1;2/1", got.RecordTrace)
	assert.Equal(t, "invariant violated: no lost update", got.Violation)
}

func TestSaveRunRequiresModel(t *testing.T) {
	store, _ := open(t)
	_, err := store.SaveRun(context.Background(), Run{})
	assert.Error(t, err)
}

func TestGetMissingRun(t *testing.T) {
	store, _ := open(t)
	_, err := store.GetRun(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	store, _ := open(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, model := range []string{"a.lua", "b.lua", "c.lua"} {
		_, err := store.SaveRun(ctx, Run{Model: model, StartedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c.lua", runs[0].Model, "Most recent first")
	assert.Equal(t, "b.lua", runs[1].Model)

	runs, err = store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestUpMigration(t *testing.T) {
	for _, test := range upMigrationTest {
		assert.Equal(t, test.want, upMigration(test.content))
	}
}

var upMigrationTest = []struct {
	content string
	want    string
}{
	{content: "CREATE TABLE t (a);", want: "CREATE TABLE t (a);"},
	{content: "-- +migrate Up\nCREATE TABLE t (a);\n", want: "\nCREATE TABLE t (a);\n"},
	{content: "-- +migrate Up\nCREATE TABLE t (a);\n-- +migrate Down\nDROP TABLE t;", want: "\nCREATE TABLE t (a);\n"},
}
