package doses

import (
	"context"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
)

type Repository interface {
	Create(ctx context.Context, l DoseLog) error
	Get(ctx context.Context, id string) (DoseLog, bool, error)
	// Delete sobre un id inexistente no es error.
	Delete(ctx context.Context, id string) error

	// ListByPlanBetween devuelve los registros con from <= TakenAt <= to, ordenados por TakenAt asc.
	ListByPlanBetween(ctx context.Context, planID string, from, to time.Time) ([]DoseLog, error)
	CountByPlanBetween(ctx context.Context, planID string, from, to time.Time) (int, error)

	DeleteByMedication(ctx context.Context, medicationID string) error
}

// PlanSource es lo que el reconciliador necesita de medicaciones (lo cumple *medications.Service).
type PlanSource interface {
	ActivePlansForPet(ctx context.Context, petID string) ([]medications.ActivePlan, error)
	GetPlan(ctx context.Context, id string) (medications.Plan, error)
	GetMedication(ctx context.Context, id string) (medications.Medication, error)
}

// Notifier avisa a los co-cuidadores de una dosis dada. Best-effort.
type Notifier interface {
	NotifyDoseGiven(ctx context.Context, n GivenNotice) error
}
