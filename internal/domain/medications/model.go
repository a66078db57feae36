package medications

import (
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

// Medication pertenece a una mascota. Borrarla elimina sus planes y registros de dosis.
type Medication struct {
	ID    string
	PetID string

	Name     string
	Strength string // opcional, ej: "50 mg"
	Notes    string
	Color    string // opcional, color de UI

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Plan es el esquema recurrente de una medicación.
// A lo sumo un plan activo por medicación; si hubiera varios gana el CreatedAt más reciente.
type Plan struct {
	ID           string
	MedicationID string
	PetID        string

	StartDate time.Time
	EndDate   *time.Time // nil => continuo

	// HH:MM, ordenadas ascendente y sin duplicados.
	ScheduleTimes []string
	DoseText      string

	Active   bool
	PausedAt *time.Time // solo mientras está pausado

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Paused: inactivo por una pausa (no un plan reemplazado).
func (p Plan) Paused() bool {
	return !p.Active && p.PausedAt != nil
}

// CoversDay indica si el día cae dentro de [StartDate, EndDate] en días calendario de loc.
func (p Plan) CoversDay(day schedule.Date, loc *time.Location) bool {
	if schedule.DateOf(p.StartDate, loc).After(day) {
		return false
	}
	if p.EndDate != nil && schedule.DateOf(*p.EndDate, loc).Before(day) {
		return false
	}
	return true
}

// ActivePlan es el plan vigente junto con los datos de la medicación que necesita la vista del día.
type ActivePlan struct {
	Plan

	MedicationName string
	Strength       string
	Color          string
}

type ResumeMode string

const (
	// ResumeRemaining conserva la duración restante del curso.
	ResumeRemaining ResumeMode = "remaining"
	// ResumeNew descarta el fin anterior y reanuda como tratamiento continuo.
	ResumeNew ResumeMode = "new"
)
