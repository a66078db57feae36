package doses

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/metrics"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrFutureDoseNotAllowed = errors.New("future dose not allowed")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// ConfirmationRequiredError: dar una dosis de un día pasado exige confirmar fecha y hora.
type ConfirmationRequiredError struct {
	Date schedule.Date
	Time string
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("confirmation required for %s %s", e.Date, e.Time)
}

func (e *ConfirmationRequiredError) Is(target error) bool {
	return target == ErrConfirmationRequired
}

const defaultNotifyTimeout = 10 * time.Second

type Deps struct {
	Repo     Repository
	Plans    PlanSource
	Notifier Notifier // opcional
	Logger   logger.Logger
	Metrics  *metrics.Recorder

	NotifyTimeout time.Duration
}

type Service struct {
	repo     Repository
	plans    PlanSource
	notifier Notifier
	log      logger.Logger
	metrics  *metrics.Recorder

	notifyTimeout time.Duration
	now           func() time.Time
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	timeout := d.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Service{
		repo:          d.Repo,
		plans:         d.Plans,
		notifier:      d.Notifier,
		log:           log,
		metrics:       d.Metrics,
		notifyTimeout: timeout,
		now:           time.Now,
	}
}

// Now expone el reloj del servicio (los handlers lo usan para "hoy").
func (s *Service) Now() time.Time {
	return s.now()
}

// DayEvents deriva los eventos de un día para la mascota.
// Emparejamiento posicional: el i-ésimo horario queda cubierto por el i-ésimo registro del día.
// Hoy nunca hay "overdue": lo pendiente de hoy es "due".
func (s *Service) DayEvents(ctx context.Context, petID string, loc *time.Location, day schedule.Date, now time.Time) ([]DoseEvent, error) {
	if loc == nil {
		loc = time.UTC
	}

	plans, err := s.plans.ActivePlansForPet(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}

	from, to := day.Bounds(loc)
	class := schedule.ClassifyDay(day, now, loc)

	out := make([]DoseEvent, 0)
	for _, p := range plans {
		if !p.CoversDay(day, loc) {
			continue
		}

		logs, err := s.repo.ListByPlanBetween(ctx, p.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("list dose logs for plan %s: %w", p.ID, err)
		}
		sort.SliceStable(logs, func(i, j int) bool {
			return logs[i].TakenAt.Before(logs[j].TakenAt)
		})

		for i, t := range schedule.SortTimes(p.ScheduleTimes) {
			at, err := schedule.SlotTimestamp(day, t, loc)
			if err != nil {
				return nil, fmt.Errorf("plan %s: %w", p.ID, err)
			}

			ev := DoseEvent{
				PlanID:         p.ID,
				MedicationID:   p.MedicationID,
				MedicationName: p.MedicationName,
				Strength:       p.Strength,
				Color:          p.Color,
				DoseText:       p.DoseText,
				Date:           day,
				Time:           t,
				ScheduledAt:    at,
			}

			if i < len(logs) {
				takenAt := logs[i].TakenAt
				ev.Status = EventTaken
				ev.LogID = logs[i].ID
				ev.TakenAt = &takenAt
				ev.TakenBy = logs[i].TakenBy
			} else {
				switch class {
				case schedule.DayPast:
					ev.Status = EventOverdue
				case schedule.DayFuture:
					ev.Status = EventUpcoming
				default:
					ev.Status = EventDue
				}
			}
			out = append(out, ev)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		mi, _ := schedule.MinutesSinceMidnight(out[i].Time)
		mj, _ := schedule.MinutesSinceMidnight(out[j].Time)
		if mi != mj {
			return mi < mj
		}
		if out[i].MedicationName != out[j].MedicationName {
			return out[i].MedicationName < out[j].MedicationName
		}
		return out[i].PlanID < out[j].PlanID
	})

	return out, nil
}

type RecordInput struct {
	PlanID string
	Day    schedule.Date
	Time   string // HH:MM del slot

	// UseScheduledTime registra TakenAt = día + hora del slot en lugar de now.
	UseScheduledTime bool
	// Confirmed: el cuidador confirmó explícitamente una dosis de un día pasado.
	Confirmed bool
	Notes     string
}

// RecordDose inserta un registro. No es idempotente: dos llamadas crean dos registros.
// El plan debe estar activo y cubrir el día; si no, ErrInvalidInput.
func (s *Service) RecordDose(ctx context.Context, actor, petID string, loc *time.Location, in RecordInput, now time.Time) (DoseLog, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return DoseLog{}, ErrUnauthorized
	}
	if loc == nil {
		loc = time.UTC
	}

	tod, err := schedule.ParseTimeOfDay(in.Time)
	if err != nil {
		return DoseLog{}, err
	}
	slot := tod.String()
	if in.Day.IsZero() {
		return DoseLog{}, fmt.Errorf("%w: date required", ErrInvalidInput)
	}

	useScheduled := in.UseScheduledTime
	switch schedule.ClassifyDay(in.Day, now, loc) {
	case schedule.DayFuture:
		return DoseLog{}, ErrFutureDoseNotAllowed
	case schedule.DayPast:
		if !in.Confirmed {
			return DoseLog{}, &ConfirmationRequiredError{Date: in.Day, Time: slot}
		}
		useScheduled = true
	}

	plan, err := s.plans.GetPlan(ctx, in.PlanID)
	if errors.Is(err, medications.ErrNotFound) {
		return DoseLog{}, ErrNotFound
	}
	if err != nil {
		return DoseLog{}, fmt.Errorf("get plan: %w", err)
	}
	if plan.PetID != petID {
		return DoseLog{}, ErrNotFound
	}
	// solo planes que DayEvents muestra ese día
	if !plan.Active {
		return DoseLog{}, fmt.Errorf("%w: plan is not active", ErrInvalidInput)
	}
	if !plan.CoversDay(in.Day, loc) {
		return DoseLog{}, fmt.Errorf("%w: %s outside plan window", ErrInvalidInput, in.Day)
	}

	takenAt := now
	if useScheduled {
		takenAt, err = schedule.SlotTimestamp(in.Day, slot, loc)
		if err != nil {
			return DoseLog{}, err
		}
	}

	l := DoseLog{
		ID:           uuid.NewString(),
		PlanID:       plan.ID,
		MedicationID: plan.MedicationID,
		PetID:        plan.PetID,
		TakenAt:      takenAt,
		TakenBy:      actor,
		Status:       StatusTaken,
		Source:       SourceManual,
		Notes:        strings.TrimSpace(in.Notes),
		CreatedAt:    now,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return DoseLog{}, err
	}
	s.metrics.RecordDoseLogs(ctx, string(SourceManual), 1)

	s.notifyGiven(ctx, l)
	return l, nil
}

// notifyGiven no bloquea ni propaga errores: corre con un contexto propio con timeout.
func (s *Service) notifyGiven(ctx context.Context, l DoseLog) {
	if s.notifier == nil {
		return
	}

	name := ""
	if m, err := s.plans.GetMedication(ctx, l.MedicationID); err == nil {
		name = m.Name
	}
	notice := GivenNotice{
		PetID:          l.PetID,
		PlanID:         l.PlanID,
		MedicationID:   l.MedicationID,
		MedicationName: name,
		ActorUserID:    l.TakenBy,
		TakenAt:        l.TakenAt,
	}

	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyDoseGiven(nctx, notice); err != nil {
			s.log.Warn("dose given notification failed", map[string]any{
				"pet_id":  notice.PetID,
				"plan_id": notice.PlanID,
				"error":   err,
			})
		}
	}()
}

// UndoDose borra el registro. Si ya no existe es un no-op.
func (s *Service) UndoDose(ctx context.Context, actor, petID, logID string) error {
	if strings.TrimSpace(actor) == "" {
		return ErrUnauthorized
	}
	logID = strings.TrimSpace(logID)
	if logID == "" {
		return ErrInvalidInput
	}

	l, found, err := s.repo.Get(ctx, logID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if l.PetID != petID {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, logID)
}

func (s *Service) GetLog(ctx context.Context, id string) (DoseLog, error) {
	l, found, err := s.repo.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return DoseLog{}, err
	}
	if !found {
		return DoseLog{}, ErrNotFound
	}
	return l, nil
}
