package misseddose

import (
	"context"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
)

// Runner dispara el sweep en un intervalo fijo dentro del proceso.
// Las ejecuciones son secuenciales: un Runner nunca solapa dos sweeps.
type Runner struct {
	job      *Job
	interval time.Duration
	log      logger.Logger
}

func NewRunner(job *Job, interval time.Duration, log logger.Logger) *Runner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{job: job, interval: interval, log: log}
}

// Start ejecuta un sweep inmediato y luego uno por tick hasta que ctx se cancele.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("missed dose runner started", map[string]any{"interval": r.interval.String()})

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("missed dose runner stopped", nil)
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	if _, err := r.job.Run(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("missed dose sweep failed", map[string]any{"error": err})
	}
}
