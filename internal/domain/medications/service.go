package medications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/storage"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNoActivePlan      = errors.New("no active plan")
	ErrNoPausedPlan      = errors.New("no paused plan")
	ErrInvalidResumeMode = errors.New("invalid resume mode")
)

type Service struct {
	repo   Repository
	ledger DoseLedger
	log    logger.Logger
	now    func() time.Time
}

func NewService(repo Repository, ledger DoseLedger, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:   repo,
		ledger: ledger,
		log:    log,
		now:    time.Now,
	}
}

// -------------------------
// Medications
// -------------------------

type MedicationInput struct {
	Name     string
	Strength string
	Notes    string
	Color    string
}

func (s *Service) CreateMedication(ctx context.Context, actor, petID string, in MedicationInput) (Medication, error) {
	if strings.TrimSpace(actor) == "" {
		return Medication{}, ErrUnauthorized
	}
	petID = strings.TrimSpace(petID)
	name := strings.TrimSpace(in.Name)
	if petID == "" || name == "" {
		return Medication{}, ErrInvalidInput
	}

	now := s.now()
	m := Medication{
		ID:        uuid.NewString(),
		PetID:     petID,
		Name:      name,
		Strength:  strings.TrimSpace(in.Strength),
		Notes:     strings.TrimSpace(in.Notes),
		Color:     strings.TrimSpace(in.Color),
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateMedication(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) GetMedication(ctx context.Context, id string) (Medication, error) {
	m, err := s.repo.GetMedication(ctx, strings.TrimSpace(id))
	if errors.Is(err, storage.ErrNotFound) {
		return Medication{}, ErrNotFound
	}
	if err != nil {
		return Medication{}, fmt.Errorf("get medication: %w", err)
	}
	return m, nil
}

func (s *Service) ListMedications(ctx context.Context, petID string) ([]Medication, error) {
	items, err := s.repo.ListMedicationsByPet(ctx, petID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

// MedicationPatch: nil = no tocar.
type MedicationPatch struct {
	Name     *string
	Strength *string
	Notes    *string
	Color    *string
}

func (s *Service) UpdateMedication(ctx context.Context, actor, id string, in MedicationPatch) (Medication, error) {
	if strings.TrimSpace(actor) == "" {
		return Medication{}, ErrUnauthorized
	}
	m, err := s.GetMedication(ctx, id)
	if err != nil {
		return Medication{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Medication{}, ErrInvalidInput
		}
		m.Name = name
	}
	if in.Strength != nil {
		m.Strength = strings.TrimSpace(*in.Strength)
	}
	if in.Notes != nil {
		m.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.Color != nil {
		m.Color = strings.TrimSpace(*in.Color)
	}
	m.UpdatedAt = s.now()

	if err := s.repo.UpdateMedication(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// DeleteMedication borra en cascada: registros de dosis, planes y la medicación.
func (s *Service) DeleteMedication(ctx context.Context, actor, id string) error {
	if strings.TrimSpace(actor) == "" {
		return ErrUnauthorized
	}
	m, err := s.GetMedication(ctx, id)
	if err != nil {
		return err
	}

	if s.ledger != nil {
		if err := s.ledger.PurgeMedication(ctx, m.ID); err != nil {
			return fmt.Errorf("purge dose logs: %w", err)
		}
	}
	if err := s.repo.DeletePlansByMedication(ctx, m.ID); err != nil {
		return fmt.Errorf("delete plans: %w", err)
	}
	if err := s.repo.DeleteMedication(ctx, m.ID); err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}

	s.log.Info("medication deleted", map[string]any{
		"medication_id": m.ID,
		"pet_id":        m.PetID,
		"actor":         actor,
	})
	return nil
}

// -------------------------
// Plans
// -------------------------

type PlanInput struct {
	StartDate     *time.Time // nil => ahora
	EndDate       *time.Time
	ScheduleTimes []string
	DoseText      string
}

// CreatePlan desactiva el plan vigente e inserta el nuevo como activo.
// Si empieza en el pasado, rellena las tomas pasadas una única vez (best-effort).
func (s *Service) CreatePlan(ctx context.Context, actor, medicationID string, in PlanInput, loc *time.Location) (Plan, error) {
	if strings.TrimSpace(actor) == "" {
		return Plan{}, ErrUnauthorized
	}

	times, err := schedule.NormalizeTimes(in.ScheduleTimes)
	if err != nil {
		return Plan{}, err
	}
	if len(times) == 0 {
		return Plan{}, fmt.Errorf("%w: schedule_times required", ErrInvalidInput)
	}

	m, err := s.GetMedication(ctx, medicationID)
	if err != nil {
		return Plan{}, err
	}

	now := s.now()
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil && in.EndDate.Before(start) {
		return Plan{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidInput)
	}

	if err := s.retirePlans(ctx, m.ID, now); err != nil {
		return Plan{}, err
	}

	p := Plan{
		ID:            uuid.NewString(),
		MedicationID:  m.ID,
		PetID:         m.PetID,
		StartDate:     start,
		EndDate:       in.EndDate,
		ScheduleTimes: times,
		DoseText:      strings.TrimSpace(in.DoseText),
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreatePlan(ctx, p); err != nil {
		return Plan{}, err
	}

	if start.Before(now) && s.ledger != nil {
		n, err := s.ledger.BackfillPlan(ctx, p, actor, loc, now)
		if err != nil {
			// El plan queda creado aunque el backfill falle.
			s.log.Error("plan backfill failed", map[string]any{
				"plan_id":    p.ID,
				"backfilled": n,
				"error":      err,
			})
		} else {
			s.log.Info("plan backfilled", map[string]any{
				"plan_id":    p.ID,
				"backfilled": n,
			})
		}
	}

	return p, nil
}

// retirePlans desactiva el plan activo y descarta pausas previas: solo el plan nuevo es reanudable.
func (s *Service) retirePlans(ctx context.Context, medicationID string, now time.Time) error {
	plans, err := s.repo.ListPlansByMedication(ctx, medicationID)
	if err != nil {
		return err
	}
	for _, p := range plans {
		if !p.Active && p.PausedAt == nil {
			continue
		}
		p.Active = false
		p.PausedAt = nil
		p.UpdatedAt = now
		if err := s.repo.UpdatePlan(ctx, p); err != nil {
			return fmt.Errorf("deactivate plan %s: %w", p.ID, err)
		}
	}
	return nil
}

// PatchTime distingue "no enviado" de null.
type PatchTime struct {
	Present bool
	Value   *time.Time
}

type PlanPatch struct {
	ScheduleTimes []string // nil => no tocar
	DoseText      *string
	EndDate       PatchTime
}

// UpdatePlan edita un plan existente. Nunca vuelve a ejecutar el backfill.
func (s *Service) UpdatePlan(ctx context.Context, actor, planID string, in PlanPatch) (Plan, error) {
	if strings.TrimSpace(actor) == "" {
		return Plan{}, ErrUnauthorized
	}
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return Plan{}, err
	}

	if in.ScheduleTimes != nil {
		times, err := schedule.NormalizeTimes(in.ScheduleTimes)
		if err != nil {
			return Plan{}, err
		}
		if len(times) == 0 {
			return Plan{}, fmt.Errorf("%w: schedule_times required", ErrInvalidInput)
		}
		p.ScheduleTimes = times
	}
	if in.DoseText != nil {
		p.DoseText = strings.TrimSpace(*in.DoseText)
	}
	if in.EndDate.Present {
		if in.EndDate.Value != nil && in.EndDate.Value.Before(p.StartDate) {
			return Plan{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidInput)
		}
		p.EndDate = in.EndDate.Value
	}
	p.UpdatedAt = s.now()

	if err := s.repo.UpdatePlan(ctx, p); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func (s *Service) GetPlan(ctx context.Context, id string) (Plan, error) {
	p, err := s.repo.GetPlan(ctx, strings.TrimSpace(id))
	if errors.Is(err, storage.ErrNotFound) {
		return Plan{}, ErrNotFound
	}
	if err != nil {
		return Plan{}, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

// CurrentPlan devuelve el plan activo o, si no hay, el pausado más reciente.
func (s *Service) CurrentPlan(ctx context.Context, medicationID string) (Plan, bool, error) {
	plans, err := s.repo.ListPlansByMedication(ctx, medicationID)
	if err != nil {
		return Plan{}, false, err
	}
	if p, ok := latest(plans, func(p Plan) bool { return p.Active }); ok {
		return p, true, nil
	}
	if p, ok := latest(plans, Plan.Paused); ok {
		return p, true, nil
	}
	return Plan{}, false, nil
}

// ActivePlansForPet devuelve el plan activo más reciente de cada medicación de la mascota.
func (s *Service) ActivePlansForPet(ctx context.Context, petID string) ([]ActivePlan, error) {
	meds, err := s.repo.ListMedicationsByPet(ctx, petID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Medication, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}

	plans, err := s.repo.ListActivePlansByPet(ctx, petID)
	if err != nil {
		return nil, err
	}

	winners := map[string]Plan{}
	for _, p := range plans {
		if !p.Active {
			continue
		}
		if cur, ok := winners[p.MedicationID]; !ok || p.CreatedAt.After(cur.CreatedAt) {
			winners[p.MedicationID] = p
		}
	}

	out := make([]ActivePlan, 0, len(winners))
	for medID, p := range winners {
		m, ok := byID[medID]
		if !ok {
			// plan huérfano: medicación borrada a medias
			continue
		}
		out = append(out, ActivePlan{
			Plan:           p,
			MedicationName: m.Name,
			Strength:       m.Strength,
			Color:          m.Color,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MedicationName != out[j].MedicationName {
			return out[i].MedicationName < out[j].MedicationName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// -------------------------
// Pause / resume
// -------------------------

// Pause: ACTIVE -> PAUSED. at cero usa el reloj del servicio.
// Se puede fechar hacia atrás dentro de [StartDate, ahora]; fuera de ese
// rango es ErrInvalidInput.
func (s *Service) Pause(ctx context.Context, actor, medicationID string, at time.Time) (Plan, error) {
	if strings.TrimSpace(actor) == "" {
		return Plan{}, ErrUnauthorized
	}
	now := s.now()
	if at.IsZero() {
		at = now
	}
	if at.After(now) {
		return Plan{}, fmt.Errorf("%w: paused_at in the future", ErrInvalidInput)
	}

	plans, err := s.repo.ListPlansByMedication(ctx, medicationID)
	if err != nil {
		return Plan{}, err
	}
	p, ok := latest(plans, func(p Plan) bool { return p.Active })
	if !ok {
		return Plan{}, ErrNoActivePlan
	}
	if at.Before(p.StartDate) {
		return Plan{}, fmt.Errorf("%w: paused_at before start_date", ErrInvalidInput)
	}

	pausedAt := at
	p.Active = false
	p.PausedAt = &pausedAt
	p.UpdatedAt = now

	if err := s.repo.UpdatePlan(ctx, p); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Resume: PAUSED -> ACTIVE.
//   - remaining: con EndDate conserva max(0, EndDate-PausedAt) a partir de ahora; sin EndDate sigue continuo.
//   - new: reanuda como tratamiento continuo (EndDate nil).
func (s *Service) Resume(ctx context.Context, actor, medicationID string, mode ResumeMode) (Plan, error) {
	if strings.TrimSpace(actor) == "" {
		return Plan{}, ErrUnauthorized
	}
	if mode != ResumeRemaining && mode != ResumeNew {
		return Plan{}, ErrInvalidResumeMode
	}

	plans, err := s.repo.ListPlansByMedication(ctx, medicationID)
	if err != nil {
		return Plan{}, err
	}
	p, ok := latest(plans, Plan.Paused)
	if !ok {
		return Plan{}, ErrNoPausedPlan
	}

	now := s.now()
	switch mode {
	case ResumeRemaining:
		if p.EndDate != nil {
			remaining := p.EndDate.Sub(*p.PausedAt)
			if remaining < 0 {
				remaining = 0
			}
			end := now.Add(remaining)
			p.EndDate = &end
		}
	case ResumeNew:
		p.EndDate = nil
	}

	p.StartDate = now
	p.PausedAt = nil
	p.Active = true
	p.UpdatedAt = now

	if err := s.repo.UpdatePlan(ctx, p); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func ParseResumeMode(raw string) (ResumeMode, error) {
	switch ResumeMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ResumeRemaining:
		return ResumeRemaining, nil
	case ResumeNew:
		return ResumeNew, nil
	default:
		return "", ErrInvalidResumeMode
	}
}

// latest elige el plan más reciente por CreatedAt que cumpla match.
func latest(plans []Plan, match func(Plan) bool) (Plan, bool) {
	var winner Plan
	found := false
	for _, p := range plans {
		if !match(p) {
			continue
		}
		if !found || p.CreatedAt.After(winner.CreatedAt) {
			winner = p
			found = true
		}
	}
	return winner, found
}
