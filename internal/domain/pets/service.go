package pets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/storage"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrNotFound        = errors.New("pet not found")
)

const DefaultAlertDelayMinutes = 30

// Defaults son los valores por defecto del servicio para la configuración por mascota.
type Defaults struct {
	Location          *time.Location
	AlertDelayMinutes int
}

type Service struct {
	repo     Repository
	defaults Defaults
	now      func() time.Time
}

func NewService(repo Repository, defaults Defaults) *Service {
	if defaults.Location == nil {
		defaults.Location = time.UTC
	}
	if defaults.AlertDelayMinutes < 0 {
		defaults.AlertDelayMinutes = DefaultAlertDelayMinutes
	}
	return &Service{
		repo:     repo,
		defaults: defaults,
		now:      time.Now,
	}
}

// DefaultLocation es la zona usada cuando la mascota no define una.
func (s *Service) DefaultLocation() *time.Location {
	return s.defaults.Location
}

type CreateInput struct {
	Name      string
	Species   string
	Breed     string
	Sex       string
	BirthDate *time.Time
	Microchip string
	Notes     string

	Timezone          string
	MissedDoseAlerts  bool
	AlertDelayMinutes *int
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Pet, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Pet{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Name) == "" {
		return Pet{}, ErrInvalidInput
	}

	tz, err := validateTimezone(in.Timezone)
	if err != nil {
		return Pet{}, err
	}

	delay := s.defaults.AlertDelayMinutes
	if in.AlertDelayMinutes != nil {
		if *in.AlertDelayMinutes < 0 {
			return Pet{}, ErrInvalidInput
		}
		delay = *in.AlertDelayMinutes
	}

	species := Species(strings.ToLower(strings.TrimSpace(in.Species)))
	if species == "" {
		species = SpeciesDog
	}
	sex := Sex(strings.ToLower(strings.TrimSpace(in.Sex)))
	if sex == "" {
		sex = SexUnknown
	}

	now := s.now()
	p := Pet{
		ID:                uuid.NewString(),
		OwnerUserID:       ownerUserID,
		Name:              strings.TrimSpace(in.Name),
		Species:           species,
		Breed:             strings.TrimSpace(in.Breed),
		Sex:               sex,
		BirthDate:         in.BirthDate,
		Microchip:         strings.TrimSpace(in.Microchip),
		Notes:             strings.TrimSpace(in.Notes),
		Timezone:          tz,
		MissedDoseAlerts:  in.MissedDoseAlerts,
		AlertDelayMinutes: delay,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Pet, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Pet{}, ErrNotFound
	}
	if err != nil {
		return Pet{}, fmt.Errorf("get pet: %w", err)
	}
	return p, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Pet, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}

func (s *Service) ListWithMissedDoseAlerts(ctx context.Context) ([]Pet, error) {
	return s.repo.ListWithMissedDoseAlerts(ctx)
}

// PatchBirthDate distingue "no enviado" de "null" (limpiar).
type PatchBirthDate struct {
	Present bool
	Value   *string
}

// UpdateProfileInput usa punteros para PATCH real: nil = no tocar.
type UpdateProfileInput struct {
	Name      *string
	Species   *string
	Breed     *string
	Sex       *string
	BirthDate PatchBirthDate
	Microchip *string
	Notes     *string

	Timezone          *string
	MissedDoseAlerts  *bool
	AlertDelayMinutes *int
}

func (s *Service) UpdateProfile(ctx context.Context, petID, actorUserID string, in UpdateProfileInput) (Pet, error) {
	if strings.TrimSpace(petID) == "" || strings.TrimSpace(actorUserID) == "" {
		return Pet{}, ErrInvalidInput
	}

	p, err := s.GetByID(ctx, petID)
	if err != nil {
		return Pet{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Pet{}, ErrInvalidInput
		}
		p.Name = name
	}
	if in.Species != nil {
		p.Species = Species(strings.ToLower(strings.TrimSpace(*in.Species)))
	}
	if in.Breed != nil {
		p.Breed = strings.TrimSpace(*in.Breed)
	}
	if in.Sex != nil {
		p.Sex = Sex(strings.ToLower(strings.TrimSpace(*in.Sex)))
	}
	if in.BirthDate.Present {
		if in.BirthDate.Value == nil || strings.TrimSpace(*in.BirthDate.Value) == "" {
			p.BirthDate = nil
		} else {
			t, err := time.Parse("2006-01-02", strings.TrimSpace(*in.BirthDate.Value))
			if err != nil {
				return Pet{}, ErrInvalidInput
			}
			p.BirthDate = &t
		}
	}
	if in.Microchip != nil {
		p.Microchip = strings.TrimSpace(*in.Microchip)
	}
	if in.Notes != nil {
		p.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.Timezone != nil {
		tz, err := validateTimezone(*in.Timezone)
		if err != nil {
			return Pet{}, err
		}
		p.Timezone = tz
	}
	if in.MissedDoseAlerts != nil {
		p.MissedDoseAlerts = *in.MissedDoseAlerts
	}
	if in.AlertDelayMinutes != nil {
		if *in.AlertDelayMinutes < 0 {
			return Pet{}, ErrInvalidInput
		}
		p.AlertDelayMinutes = *in.AlertDelayMinutes
	}

	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

func validateTimezone(raw string) (string, error) {
	tz := strings.TrimSpace(raw)
	if tz == "" {
		return "", nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", ErrInvalidTimezone
	}
	return tz, nil
}

// OwnerOf expone el ownerUserID de una mascota. found=false si no existe;
// err solo para fallos del store.
func (s *Service) OwnerOf(ctx context.Context, petID string) (string, bool, error) {
	p, err := s.GetByID(ctx, petID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.OwnerUserID, true, nil
}
