package medications

import (
	"context"
	"time"
)

type Repository interface {
	CreateMedication(ctx context.Context, m Medication) error
	UpdateMedication(ctx context.Context, m Medication) error
	GetMedication(ctx context.Context, id string) (Medication, error)
	ListMedicationsByPet(ctx context.Context, petID string) ([]Medication, error)
	DeleteMedication(ctx context.Context, id string) error

	CreatePlan(ctx context.Context, p Plan) error
	UpdatePlan(ctx context.Context, p Plan) error
	GetPlan(ctx context.Context, id string) (Plan, error)
	// ListPlansByMedication ordena por CreatedAt descendente.
	ListPlansByMedication(ctx context.Context, medicationID string) ([]Plan, error)
	ListActivePlansByPet(ctx context.Context, petID string) ([]Plan, error)
	DeletePlansByMedication(ctx context.Context, medicationID string) error
}

// DoseLedger es el lado de registros de dosis que necesita el ciclo de vida de planes.
// Lo implementa doses.Ledger; la interfaz vive aquí para evitar el ciclo de imports.
type DoseLedger interface {
	// BackfillPlan registra como dadas las tomas pasadas de un plan que empieza en el pasado.
	BackfillPlan(ctx context.Context, plan Plan, actor string, loc *time.Location, now time.Time) (int, error)
	PurgeMedication(ctx context.Context, medicationID string) error
}
