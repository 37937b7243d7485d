// Package config reads the settings of the commands from the environment and the command line.
//
// Environment variables are read first, flags override them.
package config

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mcheck/explorer"
)

// Settings of the model checker
type Config struct {
	// Path of a Lua model checked in process
	Model string `env:"MCHECK_MODEL"`
	// Address of a remote driver. Exclusive with Model.
	Remote string `env:"MCHECK_REMOTE"`
	// Record trace to replay instead of exploring
	Replay string `env:"MCHECK_REPLAY"`

	Strategy         string `env:"MCHECK_STRATEGY" envDefault:"dfs"`
	Reduction        string `env:"MCHECK_REDUCTION" envDefault:"dpor"`
	MaxDepth         int    `env:"MCHECK_MAX_DEPTH" envDefault:"1000"`
	MaxVisitedStates int    `env:"MCHECK_MAX_VISITED_STATES" envDefault:"0"`
	Checkpoint       int    `env:"MCHECK_CHECKPOINT" envDefault:"0"`

	// Where to write the explored states as Graphviz DOT. Empty to skip.
	DotPath string `env:"MCHECK_DOT"`
	// SQLite database storing the runs. Empty to skip.
	DBPath string `env:"MCHECK_DB"`

	Log Log
}

// Settings of the process serving a model to a remote checker
type DriverConfig struct {
	Listen string `env:"MCHECK_LISTEN" envDefault:"localhost:50051"`
	Model  string `env:"MCHECK_MODEL"`

	Log Log
}

// Logging and tracing settings shared by the commands
type Log struct {
	Level string `env:"MCHECK_LOG_LEVEL" envDefault:"info"`
	JSON  bool   `env:"MCHECK_LOG_JSON"`
	// OTLP/HTTP endpoint receiving traces. Empty disables tracing.
	OTelEndpoint string `env:"MCHECK_OTEL_ENDPOINT"`
}

// Parse the environment, then the flags in args
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Lua model to check")
	fs.StringVar(&cfg.Remote, "remote", cfg.Remote, "Address of a remote driver to check")
	fs.StringVar(&cfg.Replay, "replay", cfg.Replay, "Replay the record trace, e.g. \"1;2/1;2\", instead of exploring")
	fs.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "Exploration strategy: dfs or udpor")
	fs.StringVar(&cfg.Reduction, "reduction", cfg.Reduction, "Reduction: none or dpor. Defaults to none when max-visited-states is set, dpor otherwise")
	fs.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, "Maximum number of transitions on one path, 0 for no bound")
	fs.IntVar(&cfg.MaxVisitedStates, "max-visited-states", cfg.MaxVisitedStates, "Number of visited states kept for duplicate detection, 0 to disable")
	fs.IntVar(&cfg.Checkpoint, "checkpoint", cfg.Checkpoint, "Snapshot every n-th state, 0 to only snapshot the initial state")
	fs.StringVar(&cfg.DotPath, "dot", cfg.DotPath, "Write the explored states to this file in Graphviz DOT format")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database storing the runs")
	cfg.Log.flags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	// The visited states reduction can not run with dpor
	if cfg.MaxVisitedStates > 0 && !isSet(fs, "reduction", "MCHECK_REDUCTION") {
		cfg.Reduction = explorer.ReductionNone.String()
	}
	return cfg, nil
}

// Whether the setting was given on the command line or in the environment
func isSet(fs *flag.FlagSet, name, envName string) bool {
	if _, ok := os.LookupEnv(envName); ok {
		return true
	}
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func ParseDriverConfig(fs *flag.FlagSet, args []string) (DriverConfig, error) {
	var cfg DriverConfig
	if err := env.Parse(&cfg); err != nil {
		return DriverConfig{}, errors.Wrap(err, "parse env")
	}
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "Address to serve the driver on")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Lua model to serve")
	cfg.Log.flags(fs)
	if err := fs.Parse(args); err != nil {
		return DriverConfig{}, err
	}
	return cfg, nil
}

func (l *Log) flags(fs *flag.FlagSet) {
	fs.StringVar(&l.Level, "log-level", l.Level, "Log level: trace, debug, info, warn or error")
	fs.BoolVar(&l.JSON, "log-json", l.JSON, "Log as JSON")
	fs.StringVar(&l.OTelEndpoint, "otel-endpoint", l.OTelEndpoint, "OTLP/HTTP endpoint receiving traces")
}

// Check that the settings can be used together
func (c Config) Validate() error {
	if (c.Model == "") == (c.Remote == "") {
		return errors.New("config: exactly one of model and remote must be set")
	}
	if _, err := explorer.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	reduction, err := explorer.ParseReduction(c.Reduction)
	if err != nil {
		return err
	}
	if c.MaxVisitedStates < 0 {
		return errors.Errorf("config: negative number of visited states %d", c.MaxVisitedStates)
	}
	if c.Checkpoint < 0 {
		return errors.Errorf("config: negative checkpoint interval %d", c.Checkpoint)
	}
	if reduction == explorer.ReductionDPOR && c.MaxVisitedStates > 0 {
		return errors.Wrap(explorer.ErrConfigurationConflict, "config: dpor can not be combined with max-visited-states")
	}
	return nil
}

func (c DriverConfig) Validate() error {
	if c.Model == "" {
		return errors.New("config: model is required")
	}
	if c.Listen == "" {
		return errors.New("config: listen address is required")
	}
	return nil
}

// The explorer options matching the settings. Validate must have succeeded.
func (c Config) ExplorerOptions(log logrus.FieldLogger) []explorer.Option {
	reduction, _ := explorer.ParseReduction(c.Reduction)
	return []explorer.Option{
		explorer.WithLogger(log),
		explorer.WithReduction(reduction),
		explorer.MaxDepth(c.MaxDepth),
		explorer.MaxVisitedStates(c.MaxVisitedStates),
		explorer.Checkpoint(c.Checkpoint),
	}
}

// A logger writing to out with the configured level and format
func (l Log) Logger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.TrimSpace(l.Level))
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	if l.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
