package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/skyrace/internal/config"
	"github.com/zeusync/skyrace/internal/core/observability/log"
	"github.com/zeusync/skyrace/internal/injector"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "skyrace:", err)
		os.Exit(1)
	}
}

func run() error {
	path := flag.String("config", "", "path to a YAML config file")
	listen := flag.String("listen", "", "override server.listen")
	flag.Parse()

	cfg := config.Default()
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	srv, cleanup, err := injector.InitializeServer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := log.Provide()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("skyrace server listening", log.String("addr", srv.Addr()))

	waitErr := srv.Wait()
	if err := srv.Stop(); err != nil {
		return err
	}
	return waitErr
}
