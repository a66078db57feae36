package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "hunde-medisin.medication"
)

// Recorder agrupa los contadores del motor de dosis y del sweep.
// Sin SDK instalado, otel entrega un meter no-op.
type Recorder struct {
	sweeps         metric.Int64Counter
	sweepFailures  metric.Int64Counter
	alertsSent     metric.Int64Counter
	dispatchErrors metric.Int64Counter
	endpointsGone  metric.Int64Counter
	doseLogs       metric.Int64Counter
}

func New() (*Recorder, error) {
	meter := otel.Meter(meterName)

	sweeps, err := meter.Int64Counter(
		"missed_dose_sweeps_total",
		metric.WithDescription("Total number of missed-dose sweeps run"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return nil, err
	}

	sweepFailures, err := meter.Int64Counter(
		"missed_dose_pet_failures_total",
		metric.WithDescription("Pets skipped during a sweep because of store errors"),
		metric.WithUnit("{pet}"),
	)
	if err != nil {
		return nil, err
	}

	alertsSent, err := meter.Int64Counter(
		"missed_dose_alerts_total",
		metric.WithDescription("Missed-dose alert batches dispatched"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchErrors, err := meter.Int64Counter(
		"missed_dose_dispatch_errors_total",
		metric.WithDescription("Push dispatch errors per endpoint"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	endpointsGone, err := meter.Int64Counter(
		"push_endpoints_pruned_total",
		metric.WithDescription("Push endpoints deleted after the relay reported them gone"),
		metric.WithUnit("{endpoint}"),
	)
	if err != nil {
		return nil, err
	}

	doseLogs, err := meter.Int64Counter(
		"dose_logs_recorded_total",
		metric.WithDescription("Dose logs inserted, by source"),
		metric.WithUnit("{log}"),
	)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		sweeps:         sweeps,
		sweepFailures:  sweepFailures,
		alertsSent:     alertsSent,
		dispatchErrors: dispatchErrors,
		endpointsGone:  endpointsGone,
		doseLogs:       doseLogs,
	}, nil
}

// Nop devuelve un Recorder cuyos métodos no hacen nada (nil-safe).
func Nop() *Recorder {
	return nil
}

func (r *Recorder) RecordSweep(ctx context.Context, petsFailed int) {
	if r == nil {
		return
	}
	r.sweeps.Add(ctx, 1)
	if petsFailed > 0 {
		r.sweepFailures.Add(ctx, int64(petsFailed))
	}
}

// RecordAlert cuenta un lote de aviso. Solo lleva atributos de cardinalidad
// acotada: el número de destinatarios va agrupado en buckets.
func (r *Recorder) RecordAlert(ctx context.Context, recipients int) {
	if r == nil {
		return
	}
	r.alertsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("recipients", recipientBucket(recipients))))
}

func recipientBucket(n int) string {
	switch {
	case n <= 0:
		return "0"
	case n == 1:
		return "1"
	case n <= 5:
		return "2-5"
	default:
		return "6+"
	}
}

func (r *Recorder) RecordDispatchError(ctx context.Context, kind string) {
	if r == nil {
		return
	}
	r.dispatchErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (r *Recorder) RecordEndpointPruned(ctx context.Context) {
	if r == nil {
		return
	}
	r.endpointsGone.Add(ctx, 1)
}

func (r *Recorder) RecordDoseLogs(ctx context.Context, source string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.doseLogs.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}
