// Command mcheck explores the interleavings of a model for safety violations.
//
// The model is either a Lua script checked in process (-model) or a driver served by mcdriver (-remote).
// The exit code is 0 when no violation was found, 1 on a violation and 2 when some path did not terminate.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"mcheck/config"
)

func main() {
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Parse flags")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := run(ctx, cfg, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		logrus.WithError(err).Error("mcheck failed")
		os.Exit(exitError)
	}
	os.Exit(code)
}
