package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/solarflow/solarflow/pkg/actuator"
	"github.com/solarflow/solarflow/pkg/fronius"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/metrics"
	"github.com/solarflow/solarflow/pkg/monitor"
	"github.com/solarflow/solarflow/pkg/registry"
	"github.com/solarflow/solarflow/pkg/server"
	"github.com/solarflow/solarflow/pkg/storage"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	inv := fronius.Configured()
	reg := registry.Configured()
	db := storage.Configured()
	bridge := actuator.Configured()
	publisher := metrics.New()

	mon := monitor.Configured(inv, reg, bridge, db, publisher)

	// init server
	srv := server.Configured(reg, db, mon, publisher)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	log.SetDefaultLogLevel(level)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		if err := db.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()
	defer func() {
		if err := bridge.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close actuator", "error", err)
		}
	}()

	// the control loop and the HTTP server run side by side; either one
	// failing brings the process down so the supervisor can restart it
	errChan := make(chan error, 2)
	go func() {
		if err := mon.Run(ctx); err != nil {
			errChan <- fmt.Errorf("monitor: %w", err)
			return
		}
		errChan <- nil
	}()
	go func() {
		if err := srv.Run(ctx); err != nil {
			errChan <- fmt.Errorf("server: %w", err)
			return
		}
		errChan <- nil
	}()

	for range 2 {
		if err := <-errChan; err != nil {
			cancel()
			log.Ctx(ctx).ErrorContext(ctx, "run failed", "error", err)
			os.Exit(1)
		}
	}
	log.Ctx(ctx).InfoContext(ctx, "exited cleanly")
}
