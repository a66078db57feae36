package doses

import (
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

type Status string

const (
	// StatusTaken es el único estado que se escribe hoy; el resto queda reservado.
	StatusTaken Status = "taken"
)

type Source string

const (
	SourceManual   Source = "manual"
	SourceBackfill Source = "backfill"
)

const backfillNote = "system backfill"

// DoseLog registra una dosis dada. No se liga a un horario concreto:
// el emparejamiento con los slots del día es posicional.
type DoseLog struct {
	ID           string
	PlanID       string
	MedicationID string
	PetID        string

	TakenAt time.Time
	TakenBy string
	Status  Status
	Source  Source
	Notes   string

	CreatedAt time.Time
}

type EventStatus string

const (
	EventTaken    EventStatus = "taken"
	EventDue      EventStatus = "due"
	EventOverdue  EventStatus = "overdue"
	EventUpcoming EventStatus = "upcoming"
)

// DoseEvent es un slot esperado de un día con su estado derivado.
type DoseEvent struct {
	PlanID         string
	MedicationID   string
	MedicationName string
	Strength       string
	Color          string
	DoseText       string

	Date        schedule.Date
	Time        string // HH:MM
	ScheduledAt time.Time

	Status EventStatus

	// Solo con Status == EventTaken.
	LogID   string
	TakenAt *time.Time
	TakenBy string
}

// GivenNotice describe una dosis recién registrada para avisar a los demás cuidadores.
type GivenNotice struct {
	PetID          string
	PlanID         string
	MedicationID   string
	MedicationName string
	ActorUserID    string
	TakenAt        time.Time
}
