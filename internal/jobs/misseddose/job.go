package misseddose

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/notifications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/pets"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/metrics"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/push"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

// PetSource lo cumple *pets.Service.
type PetSource interface {
	ListWithMissedDoseAlerts(ctx context.Context) ([]pets.Pet, error)
	DefaultLocation() *time.Location
}

// PlanSource lo cumple *medications.Service.
type PlanSource interface {
	ActivePlansForPet(ctx context.Context, petID string) ([]medications.ActivePlan, error)
}

// LogCounter lo cumple doses.Repository.
type LogCounter interface {
	CountByPlanBetween(ctx context.Context, planID string, from, to time.Time) (int, error)
}

// Deliverer lo cumple *notifications.Service.
type Deliverer interface {
	Deliver(ctx context.Context, userIDs []string, msg push.Message) (notifications.DeliveryReport, error)
}

type Deps struct {
	Pets       PetSource
	Plans      PlanSource
	Logs       LogCounter
	Sent       notifications.SentRepository
	Recipients notifications.RecipientResolver
	Deliverer  Deliverer

	Clock   Clock
	Logger  logger.Logger
	Metrics *metrics.Recorder

	// RetentionDays > 0 borra SentNotification más antiguas al final de cada sweep.
	RetentionDays int
}

// Report resume un sweep.
type Report struct {
	StartedAt time.Time `json:"started_at"`

	PetsScanned     int `json:"pets_scanned"`
	PetsFailed      int `json:"pets_failed"`
	PlansEvaluated  int `json:"plans_evaluated"`
	AlertsSent      int `json:"alerts_sent"`
	EndpointsPruned int `json:"endpoints_pruned"`
	DispatchErrors  int `json:"dispatch_errors"`
	SentPruned      int `json:"sent_pruned"`
}

// Job es el sweep de dosis omitidas. Sin estado propio: todo sale del store.
// Supone una sola ejecución a la vez; dos sweeps solapados pueden duplicar avisos.
type Job struct {
	pets       PetSource
	plans      PlanSource
	logs       LogCounter
	sent       notifications.SentRepository
	recipients notifications.RecipientResolver
	deliverer  Deliverer

	clock         Clock
	log           logger.Logger
	metrics       *metrics.Recorder
	retentionDays int
}

func New(d Deps) *Job {
	clock := d.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Job{
		pets:          d.Pets,
		plans:         d.Plans,
		logs:          d.Logs,
		sent:          d.Sent,
		recipients:    d.Recipients,
		deliverer:     d.Deliverer,
		clock:         clock,
		log:           log.With(map[string]any{"job": "missed_dose"}),
		metrics:       d.Metrics,
		retentionDays: d.RetentionDays,
	}
}

// Run evalúa todas las mascotas con alertas activas. Un fallo de una mascota
// se registra y no impide evaluar las demás.
func (j *Job) Run(ctx context.Context) (Report, error) {
	now := j.clock.Now()
	rep := Report{StartedAt: now}

	list, err := j.pets.ListWithMissedDoseAlerts(ctx)
	if err != nil {
		return rep, fmt.Errorf("list pets: %w", err)
	}

	for _, p := range list {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.PetsScanned++

		if err := j.sweepPet(ctx, p, now, &rep); err != nil {
			rep.PetsFailed++
			j.log.Error("missed dose sweep failed for pet", map[string]any{
				"pet_id": p.ID,
				"error":  err,
			})
		}
	}

	j.prune(ctx, now, &rep)
	j.metrics.RecordSweep(ctx, rep.PetsFailed)

	j.log.Info("missed dose sweep finished", map[string]any{
		"pets_scanned":     rep.PetsScanned,
		"pets_failed":      rep.PetsFailed,
		"plans_evaluated":  rep.PlansEvaluated,
		"alerts_sent":      rep.AlertsSent,
		"endpoints_pruned": rep.EndpointsPruned,
		"dispatch_errors":  rep.DispatchErrors,
	})
	return rep, nil
}

func (j *Job) sweepPet(ctx context.Context, p pets.Pet, now time.Time, rep *Report) error {
	loc := p.Location(j.pets.DefaultLocation())
	today := schedule.DateOf(now, loc)
	nowMin := schedule.MinutesOfDay(now, loc)
	delay := p.AlertDelayMinutes
	if delay < 0 {
		delay = 0
	}

	plans, err := j.plans.ActivePlansForPet(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("active plans: %w", err)
	}

	from, to := today.Bounds(loc)

	var recipients []string
	resolved := false

	for _, plan := range plans {
		if !plan.CoversDay(today, loc) {
			continue
		}
		rep.PlansEvaluated++

		due := dueSlots(plan.ScheduleTimes, delay, nowMin)
		if due == 0 {
			continue
		}

		// conteo grueso del día, sin emparejamiento posicional
		logged, err := j.logs.CountByPlanBetween(ctx, plan.ID, from, to)
		if err != nil {
			return fmt.Errorf("count logs plan %s: %w", plan.ID, err)
		}
		missing := due - logged

		sent, err := j.sent.Count(ctx, plan.ID, today)
		if err != nil {
			return fmt.Errorf("count sent plan %s: %w", plan.ID, err)
		}
		// una fila por (plan, día) suprime el resto del día
		if missing <= sent || sent > 0 {
			continue
		}

		if !resolved {
			recipients, err = j.recipients.AlertRecipients(ctx, p.ID, p.OwnerUserID, accessgrants.AlertMissedDoses)
			if err != nil {
				return fmt.Errorf("resolve recipients: %w", err)
			}
			resolved = true
		}
		if len(recipients) == 0 {
			j.log.Debug("missed dose without recipients", map[string]any{
				"pet_id":  p.ID,
				"plan_id": plan.ID,
			})
			continue
		}

		if err := j.alert(ctx, p, plan, today, missing, delay, recipients, now, rep); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) alert(ctx context.Context, p pets.Pet, plan medications.ActivePlan, today schedule.Date, missing, delay int, recipients []string, now time.Time, rep *Report) error {
	msg := push.Message{
		Title: fmt.Sprintf("%s: %s ikke gitt", p.Name, plan.MedicationName),
		Body:  fmt.Sprintf("%d dose(r) er mer enn %d minutter forsinket.", missing, delay),
		URL:   "/pets/" + p.ID,
	}

	dr, err := j.deliverer.Deliver(ctx, recipients, msg)
	if err != nil {
		return fmt.Errorf("deliver plan %s: %w", plan.ID, err)
	}
	rep.EndpointsPruned += dr.Pruned
	rep.DispatchErrors += dr.Failed

	if dr.Endpoints == 0 {
		j.log.Debug("missed dose recipients without push endpoints", map[string]any{
			"pet_id":  p.ID,
			"plan_id": plan.ID,
		})
		return nil
	}

	err = j.sent.Insert(ctx, notifications.SentNotification{
		ID:         uuid.NewString(),
		PlanID:     plan.ID,
		PetID:      p.ID,
		LogDate:    today,
		Recipients: recipients,
		SentAt:     now,
	})
	if err != nil && !errors.Is(err, notifications.ErrAlreadySent) {
		return fmt.Errorf("record sent plan %s: %w", plan.ID, err)
	}
	if errors.Is(err, notifications.ErrAlreadySent) {
		j.log.Warn("missed dose alert already recorded", map[string]any{
			"pet_id":  p.ID,
			"plan_id": plan.ID,
			"date":    today.String(),
		})
	}

	rep.AlertsSent++
	j.metrics.RecordAlert(ctx, len(recipients))
	j.log.Info("missed dose alert sent", map[string]any{
		"pet_id":     p.ID,
		"plan_id":    plan.ID,
		"missing":    missing,
		"recipients": len(recipients),
		"delivered":  dr.Delivered,
	})
	return nil
}

func (j *Job) prune(ctx context.Context, now time.Time, rep *Report) {
	if j.retentionDays <= 0 {
		return
	}
	cutoff := schedule.DateOf(now, j.pets.DefaultLocation()).AddDays(-j.retentionDays)
	n, err := j.sent.DeleteBefore(ctx, cutoff)
	if err != nil {
		j.log.Warn("prune sent notifications failed", map[string]any{"error": err})
		return
	}
	rep.SentPruned = n
}

// dueSlots cuenta los horarios cuyo plazo (hora + delay) ya venció hoy.
func dueSlots(times []string, delay, nowMin int) int {
	n := 0
	for _, t := range times {
		m, err := schedule.MinutesSinceMidnight(t)
		if err != nil {
			continue
		}
		if m+delay < nowMin {
			n++
		}
	}
	return n
}
