package accessgrants

import "time"

type Scope string

const (
	ScopePetRead        Scope = "pet:read"
	ScopePetEditProfile Scope = "pet:edit_profile"
	ScopeMedsRead       Scope = "meds:read"
	ScopeMedsLog        Scope = "meds:log"
	ScopeMedsManage     Scope = "meds:manage"
)

type Status string

const (
	StatusInvited Status = "invited"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Grant: el dueño comparte una mascota con un co-cuidador.
type Grant struct {
	ID string

	PetID string

	OwnerUserID   string // quien comparte
	GranteeUserID string // delegado

	Scopes []Scope
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AlertKind identifica el tipo de aviso push al que un miembro puede suscribirse.
type AlertKind string

const (
	AlertMissedDoses AlertKind = "missed_doses"
	AlertDoseGiven   AlertKind = "dose_given"
)

// AlertPreference es la suscripción de un miembro a avisos de una mascota.
// Sin registro => no suscrito (opt-in explícito).
type AlertPreference struct {
	PetID  string
	UserID string

	MissedDoses bool
	DoseGiven   bool

	UpdatedAt time.Time
}

func (p AlertPreference) Wants(kind AlertKind) bool {
	switch kind {
	case AlertMissedDoses:
		return p.MissedDoses
	case AlertDoseGiven:
		return p.DoseGiven
	default:
		return false
	}
}
