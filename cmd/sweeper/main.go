package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/config"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/jobs/misseddose"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/router"
)

var errNoDatabase = errors.New("DB_DSN is required for the sweeper")

func main() {
	once := flag.Bool("once", false, "corre un solo sweep y termina")
	interval := flag.Duration("interval", 0, "intervalo entre sweeps (default SWEEP_INTERVAL)")
	flag.Parse()

	log := logger.NewFromEnv().With(map[string]any{"cmd": "sweeper"})
	err := run(log, *once, *interval)
	if zl, ok := log.(*logger.ZapLogger); ok {
		_ = zl.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

func run(log logger.Logger, once bool, interval time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid config", map[string]any{"error": err})
		return err
	}
	if cfg.DatabaseDSN == "" {
		// in-memory no comparte datos con el API
		log.Error(errNoDatabase.Error(), nil)
		return errNoDatabase
	}

	opts, cleanup, err := router.OpenOptions(cfg, log)
	defer cleanup()
	if err != nil {
		log.Error("startup failed", map[string]any{"error": err})
		return err
	}
	job := router.New(opts).Job

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		rep, err := job.Run(ctx)
		if err != nil {
			log.Error("sweep failed", map[string]any{"error": err})
			return err
		}
		log.Info("sweep done", map[string]any{"alerts_sent": rep.AlertsSent, "pets_failed": rep.PetsFailed})
		return nil
	}

	every := cfg.Sweep.Interval
	if interval > 0 {
		every = interval
	}
	if err := misseddose.NewRunner(job, every, log).Start(ctx); err != nil && ctx.Err() == nil {
		log.Error("sweeper stopped", map[string]any{"error": err})
		return err
	}
	return nil
}
