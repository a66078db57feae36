package doses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/metrics"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

// Ledger implementa medications.DoseLedger sobre el repositorio de registros.
type Ledger struct {
	repo    Repository
	metrics *metrics.Recorder
}

var _ medications.DoseLedger = (*Ledger)(nil)

func NewLedger(repo Repository, rec *metrics.Recorder) *Ledger {
	return &Ledger{repo: repo, metrics: rec}
}

// BackfillPlan da por tomadas las dosis de un plan que empieza en el pasado:
// todos los días desde el de inicio hasta ayer (en loc), slots con
// StartDate <= ts < now. Devuelve cuántos registros se insertaron antes de un error.
func (l *Ledger) BackfillPlan(ctx context.Context, plan medications.Plan, actor string, loc *time.Location, now time.Time) (int, error) {
	if strings.TrimSpace(actor) == "" {
		return 0, ErrUnauthorized
	}
	if !plan.StartDate.Before(now) {
		return 0, nil
	}
	if loc == nil {
		loc = time.UTC
	}

	times := schedule.SortTimes(plan.ScheduleTimes)
	today := schedule.DateOf(now, loc)
	inserted := 0

	for day := schedule.DateOf(plan.StartDate, loc); day.Before(today); day = day.AddDays(1) {
		if plan.EndDate != nil && schedule.DateOf(*plan.EndDate, loc).Before(day) {
			break
		}
		for _, t := range times {
			ts, err := schedule.SlotTimestamp(day, t, loc)
			if err != nil {
				return inserted, err
			}
			if !ts.Before(now) || ts.Before(plan.StartDate) {
				continue
			}

			log := DoseLog{
				ID:           uuid.NewString(),
				PlanID:       plan.ID,
				MedicationID: plan.MedicationID,
				PetID:        plan.PetID,
				TakenAt:      ts,
				TakenBy:      actor,
				Status:       StatusTaken,
				Source:       SourceBackfill,
				Notes:        backfillNote,
				CreatedAt:    now,
			}
			if err := l.repo.Create(ctx, log); err != nil {
				l.metrics.RecordDoseLogs(ctx, string(SourceBackfill), inserted)
				return inserted, fmt.Errorf("backfill %s %s: %w", day, t, err)
			}
			inserted++
		}
	}

	l.metrics.RecordDoseLogs(ctx, string(SourceBackfill), inserted)
	return inserted, nil
}

func (l *Ledger) PurgeMedication(ctx context.Context, medicationID string) error {
	return l.repo.DeleteByMedication(ctx, medicationID)
}
