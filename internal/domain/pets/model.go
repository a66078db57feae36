package pets

import (
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

// Species define las especies soportadas.
// @Enum dog, cat, other
type Species string

const (
	SpeciesDog   Species = "dog"
	SpeciesCat   Species = "cat"
	SpeciesOther Species = "other"
)

// Sex define el sexo de la mascota.
// @Enum male, female, unknown
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

// Pet es el agregado dueño de medicamentos y planes.
// Timezone, MissedDoseAlerts y AlertDelayMinutes son la configuración
// que consume el motor de dosis y el sweep de dosis omitidas.
type Pet struct {
	ID          string
	OwnerUserID string

	Name    string
	Species Species
	Breed   string
	Sex     Sex

	BirthDate *time.Time
	Microchip string

	Notes string

	// IANA (ej: Europe/Oslo). Vacío => zona por defecto del servicio.
	Timezone          string
	MissedDoseAlerts  bool
	AlertDelayMinutes int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resuelve la zona horaria de la mascota.
func (p Pet) Location(fallback *time.Location) *time.Location {
	return schedule.LoadLocation(p.Timezone, fallback)
}
