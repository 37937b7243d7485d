package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mcheck/checking"
	"mcheck/config"
	"mcheck/driver"
	"mcheck/explorer"
	"mcheck/luamodel"
	"mcheck/remote"
	"mcheck/replay"
	"mcheck/storage"
	"mcheck/telemetry"
	"mcheck/transition"
)

const (
	exitOK = iota
	exitViolation
	exitNonTermination
	exitError
)

const shutdownTimeout = 5 * time.Second

// Check or replay the configured model. Returns the exit code.
func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) (int, error) {
	if err := cfg.Validate(); err != nil {
		return exitError, err
	}
	log, err := cfg.Log.Logger(stderr)
	if err != nil {
		return exitError, err
	}
	shutdown, err := telemetry.Setup(ctx, "mcheck", cfg.Log.OTelEndpoint)
	if err != nil {
		return exitError, err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	drv, name, closeDriver, err := openDriver(cfg, log)
	if err != nil {
		return exitError, err
	}
	defer closeDriver()

	if cfg.Replay != "" {
		return replayTrace(ctx, drv, cfg.Replay, stdout)
	}
	return explore(ctx, cfg, drv, name, log, stdout)
}

func openDriver(cfg config.Config, log logrus.FieldLogger) (driver.Driver, string, func(), error) {
	if cfg.Model != "" {
		m, err := luamodel.Load(cfg.Model, log)
		if err != nil {
			return nil, "", nil, err
		}
		return m, cfg.Model, func() {}, nil
	}
	c, err := remote.Dial(cfg.Remote)
	if err != nil {
		return nil, "", nil, err
	}
	return c, cfg.Remote, func() {
		if err := c.Close(); err != nil {
			log.WithError(err).Warn("Closing the connection failed")
		}
	}, nil
}

func explore(ctx context.Context, cfg config.Config, drv driver.Driver, name string, log logrus.FieldLogger, stdout io.Writer) (int, error) {
	strategy, err := explorer.ParseStrategy(cfg.Strategy)
	if err != nil {
		return exitError, err
	}
	opts := cfg.ExplorerOptions(log)
	if cfg.DotPath != "" {
		opts = append(opts, explorer.RecordGraph())
	}
	exp, err := explorer.New(strategy, drv, opts...)
	if err != nil {
		return exitError, err
	}

	started := time.Now()
	res, err := exp.Run(ctx)
	if err != nil {
		return exitError, err
	}
	duration := time.Since(started)

	_, text := checking.Respond(res).Response()
	fmt.Fprintln(stdout, text)

	if cfg.DotPath != "" {
		if err := writeDot(cfg.DotPath, exp); err != nil {
			return exitError, err
		}
	}
	if cfg.DBPath != "" {
		reduction, _ := explorer.ParseReduction(cfg.Reduction)
		if err := saveRun(ctx, cfg.DBPath, storage.NewRun(name, strategy, reduction, res, started, duration), log); err != nil {
			return exitError, err
		}
	}

	switch res.Outcome {
	case explorer.OutcomeViolation:
		return exitViolation, nil
	case explorer.OutcomeNonTermination:
		return exitNonTermination, nil
	}
	return exitOK, nil
}

func replayTrace(ctx context.Context, drv driver.Driver, trace string, stdout io.Writer) (int, error) {
	rt, err := transition.ParseRecordTrace(trace)
	if err != nil {
		return exitError, err
	}
	res, err := replay.Run(ctx, drv, rt)
	if err != nil {
		return exitError, err
	}
	for _, t := range res.Transitions {
		fmt.Fprintln(stdout, t.String())
	}
	if res.Violation != nil {
		fmt.Fprintf(stdout, "Violation found: %v.\n", res.Violation)
		return exitViolation, nil
	}
	fmt.Fprintln(stdout, "No violation found.")
	return exitOK, nil
}

func writeDot(path string, exp explorer.Explorer) error {
	dfs, ok := exp.(*explorer.DFS)
	if !ok || dfs.Graph() == nil {
		return errors.New("the strategy does not record the explored states")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create dot file")
	}
	if err := explorer.WriteDot(f, dfs.Graph()); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "write dot file")
}

func saveRun(ctx context.Context, path string, run storage.Run, log logrus.FieldLogger) error {
	store, err := storage.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	id, err := store.SaveRun(ctx, run)
	if err != nil {
		return err
	}
	log.WithField("run", id).Info("Run stored")
	return nil
}
