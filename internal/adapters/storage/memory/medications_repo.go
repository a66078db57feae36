package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
)

type medicationRepo struct {
	mu    sync.RWMutex
	meds  map[string]medications.Medication
	plans map[string]medications.Plan
}

func NewMedicationRepo() medications.Repository {
	return &medicationRepo{
		meds:  make(map[string]medications.Medication),
		plans: make(map[string]medications.Plan),
	}
}

func (r *medicationRepo) CreateMedication(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(m.ID) == "" {
		return errors.New("medication id required")
	}
	if _, exists := r.meds[m.ID]; exists {
		return errors.New("medication already exists")
	}
	r.meds[m.ID] = m
	return nil
}

func (r *medicationRepo) UpdateMedication(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.meds[m.ID]; !exists {
		return ErrNotFound
	}
	r.meds[m.ID] = m
	return nil
}

func (r *medicationRepo) GetMedication(ctx context.Context, id string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.meds[id]
	if !ok {
		return medications.Medication{}, ErrNotFound
	}
	return m, nil
}

func (r *medicationRepo) ListMedicationsByPet(ctx context.Context, petID string) ([]medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medications.Medication, 0)
	for _, m := range r.meds {
		if m.PetID == petID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *medicationRepo) DeleteMedication(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.meds, id)
	return nil
}

func (r *medicationRepo) CreatePlan(ctx context.Context, p medications.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(p.ID) == "" {
		return errors.New("plan id required")
	}
	if _, exists := r.plans[p.ID]; exists {
		return errors.New("plan already exists")
	}
	r.plans[p.ID] = clonePlan(p)
	return nil
}

func (r *medicationRepo) UpdatePlan(ctx context.Context, p medications.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plans[p.ID]; !exists {
		return ErrNotFound
	}
	r.plans[p.ID] = clonePlan(p)
	return nil
}

func (r *medicationRepo) GetPlan(ctx context.Context, id string) (medications.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plans[id]
	if !ok {
		return medications.Plan{}, ErrNotFound
	}
	return clonePlan(p), nil
}

func (r *medicationRepo) ListPlansByMedication(ctx context.Context, medicationID string) ([]medications.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medications.Plan, 0)
	for _, p := range r.plans {
		if p.MedicationID == medicationID {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *medicationRepo) ListActivePlansByPet(ctx context.Context, petID string) ([]medications.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medications.Plan, 0)
	for _, p := range r.plans {
		if p.PetID == petID && p.Active {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *medicationRepo) DeletePlansByMedication(ctx context.Context, medicationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.plans {
		if p.MedicationID == medicationID {
			delete(r.plans, id)
		}
	}
	return nil
}

// clonePlan evita compartir el slice de horarios entre llamadas.
func clonePlan(p medications.Plan) medications.Plan {
	p.ScheduleTimes = append([]string(nil), p.ScheduleTimes...)
	return p
}
