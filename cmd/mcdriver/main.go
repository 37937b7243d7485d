// Command mcdriver serves a Lua model to a remote mcheck.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mcheck/config"
	"mcheck/luamodel"
	"mcheck/remote"
	"mcheck/telemetry"
)

func main() {
	cfg, err := config.ParseDriverConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Parse flags")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("mcdriver failed")
	}
}

func serve(ctx context.Context, cfg config.DriverConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return err
	}
	shutdown, err := telemetry.Setup(ctx, "mcdriver", cfg.Log.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	model, err := luamodel.Load(cfg.Model, log)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Listen)
	}
	return remote.NewServer(model, model, log).Serve(ctx, lis)
}
