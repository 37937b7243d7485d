package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcheck/config"
	"mcheck/luamodel"
	"mcheck/remote"
	"mcheck/storage"
)

func example(name string) string {
	return filepath.Join("..", "..", "examples", name)
}

func baseConfig() config.Config {
	return config.Config{
		Strategy:  "dfs",
		Reduction: "none",
		MaxDepth:  1000,
		Log:       config.Log{Level: "error"},
	}
}

func TestRun(t *testing.T) {
	for _, test := range runTest {
		cfg := baseConfig()
		cfg.Model = example(test.model)
		cfg.Reduction = test.reduction
		cfg.Replay = test.replay
		var stdout, stderr bytes.Buffer

		code, err := run(context.Background(), cfg, &stdout, &stderr)
		require.NoError(t, err, test.model)
		assert.Equal(t, test.code, code, test.model)
		assert.Contains(t, stdout.String(), test.output, test.model)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := baseConfig()
	code, err := run(context.Background(), cfg, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Equal(t, exitError, code)

	cfg.Model = example("missing.lua")
	code, err = run(context.Background(), cfg, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Equal(t, exitError, code)
}

func TestRunWritesDotAndStoresRun(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig()
	cfg.Model = example("counter.lua")
	cfg.DotPath = filepath.Join(dir, "counter.dot")
	cfg.DBPath = filepath.Join(dir, "runs.db")

	code, err := run(context.Background(), cfg, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, exitViolation, code)

	dot, err := os.ReadFile(cfg.DotPath)
	require.NoError(t, err)
	assert.Contains(t, string(dot), `digraph "exploration" {`)
	assert.Contains(t, string(dot), "color=red")

	store, err := storage.Open(context.Background(), cfg.DBPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, cfg.Model, runs[0].Model)
	assert.Equal(t, "violation", runs[0].Outcome)
	assert.Equal(t, "1;2;1;2", runs[0].RecordTrace)
}

func TestRunRemote(t *testing.T) {
	quiet := logrus.New()
	quiet.SetLevel(logrus.PanicLevel)
	model, err := luamodel.Load(example("counter.lua"), quiet)
	require.NoError(t, err)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := remote.NewServer(model, model, quiet).GRPCServer()
	go gs.Serve(lis)
	defer gs.Stop()

	cfg := baseConfig()
	cfg.Remote = lis.Addr().String()
	var stdout bytes.Buffer
	code, err := run(context.Background(), cfg, &stdout, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, exitViolation, code)
	assert.Contains(t, stdout.String(), "no lost update")
}

var runTest = []struct {
	model     string
	reduction string
	replay    string
	code      int
	output    string
}{
	{model: "counter.lua", reduction: "none", code: exitViolation, output: "Violation found: invariant violated: no lost update."},
	{model: "counter.lua", reduction: "dpor", code: exitViolation, output: "Record trace:"},
	{model: "mutex.lua", reduction: "dpor", code: exitOK, output: "No violation found."},
	{model: "philosophers.lua", reduction: "dpor", code: exitViolation, output: "deadlock"},
	{model: "counter.lua", reduction: "none", replay: "1;1;2;2", code: exitOK, output: "No violation found."},
	{model: "counter.lua", reduction: "none", replay: "1;2;1;2", code: exitViolation, output: "[(2)] Write(x) x=1"},
}
