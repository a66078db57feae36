package doses_test

import (
	"context"
	"testing"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/storage/memory"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/doses"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

// Plan creado "hace 2 días" a las 10:00 de hoy: 4 tomas rellenadas y las de hoy pendientes.
func TestBackfillThroughPlanCreation(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("CET", 60*60)
	now := time.Now().In(loc)
	today := schedule.DateOf(now, loc)
	startDay := today.AddDays(-2)

	logRepo := memory.NewDoseLogRepo()
	ledger := doses.NewLedger(logRepo, nil)
	meds := medications.NewService(memory.NewMedicationRepo(), ledger, logger.Nop())
	svc := doses.NewService(doses.Deps{Repo: logRepo, Plans: meds})

	m, err := meds.CreateMedication(ctx, "owner-1", "pet-1", medications.MedicationInput{Name: "Apoquel"})
	if err != nil {
		t.Fatalf("CreateMedication: %v", err)
	}
	start := startDay.Start(loc)
	plan, err := meds.CreatePlan(ctx, "owner-1", m.ID, medications.PlanInput{
		StartDate:     &start,
		ScheduleTimes: []string{"08:00", "20:00"},
	}, loc)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	for _, d := range []schedule.Date{startDay, startDay.AddDays(1)} {
		events, err := svc.DayEvents(ctx, "pet-1", loc, d, now)
		if err != nil {
			t.Fatalf("DayEvents: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("%s: expected 2 events, got %d", d, len(events))
		}
		for _, ev := range events {
			if ev.Status != doses.EventTaken {
				t.Fatalf("%s %s: expected backfilled taken, got %s", d, ev.Time, ev.Status)
			}
		}
	}

	events, err := svc.DayEvents(ctx, "pet-1", loc, today, now)
	if err != nil {
		t.Fatalf("DayEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events today, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Status != doses.EventDue {
			t.Fatalf("today %s: expected due, got %s", ev.Time, ev.Status)
		}
	}

	from, _ := startDay.Bounds(loc)
	_, to := today.Bounds(loc)
	n, err := logRepo.CountByPlanBetween(ctx, plan.ID, from, to)
	if err != nil {
		t.Fatalf("CountByPlanBetween: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 logs in total, got %d", n)
	}

	// editar el plan no repite el relleno
	if _, err := meds.UpdatePlan(ctx, "owner-1", plan.ID, medications.PlanPatch{ScheduleTimes: []string{"08:00", "14:00", "20:00"}}); err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	n, _ = logRepo.CountByPlanBetween(ctx, plan.ID, from, to)
	if n != 4 {
		t.Fatalf("expected still 4 logs after edit, got %d", n)
	}
}

func TestDeleteMedicationPurgesLogs(t *testing.T) {
	ctx := context.Background()
	loc := time.UTC
	now := time.Now().In(loc)

	logRepo := memory.NewDoseLogRepo()
	meds := medications.NewService(memory.NewMedicationRepo(), doses.NewLedger(logRepo, nil), logger.Nop())
	svc := doses.NewService(doses.Deps{Repo: logRepo, Plans: meds})

	m, _ := meds.CreateMedication(ctx, "owner-1", "pet-1", medications.MedicationInput{Name: "Metacam"})
	plan, err := meds.CreatePlan(ctx, "owner-1", m.ID, medications.PlanInput{ScheduleTimes: []string{"08:00"}}, loc)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	l, err := svc.RecordDose(ctx, "owner-1", "pet-1", loc, doses.RecordInput{
		PlanID: plan.ID,
		Day:    schedule.DateOf(now, loc),
		Time:   "08:00",
	}, now)
	if err != nil {
		t.Fatalf("RecordDose: %v", err)
	}

	if err := meds.DeleteMedication(ctx, "owner-1", m.ID); err != nil {
		t.Fatalf("DeleteMedication: %v", err)
	}
	if _, err := svc.GetLog(ctx, l.ID); err == nil {
		t.Fatalf("expected log to be purged")
	}
}
