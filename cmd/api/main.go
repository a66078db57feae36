package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/config"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/jobs/misseddose"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/router"
)

// @title Hunde Medisin API
// @version 1.0
// @description Medisinplaner, doseregistrering og varsler for kjæledyr.
// @BasePath /
func main() {
	log := logger.NewFromEnv()
	err := run(log)
	if zl, ok := log.(*logger.ZapLogger); ok {
		_ = zl.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

// run devuelve en vez de salir para que los defer cierren DB y redis.
func run(log logger.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid config", map[string]any{"error": err})
		return err
	}

	opts, cleanup, err := router.OpenOptions(cfg, log)
	defer cleanup()
	if err != nil {
		log.Error("startup failed", map[string]any{"error": err})
		return err
	}

	app := router.New(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sweep.InProcess {
		runner := misseddose.NewRunner(app.Job, cfg.Sweep.Interval, log)
		go func() { _ = runner.Start(ctx) }()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting server", map[string]any{"addr": srv.Addr, "sweep_in_process": cfg.Sweep.InProcess})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", map[string]any{"error": err})
		return err
	}
	return nil
}
