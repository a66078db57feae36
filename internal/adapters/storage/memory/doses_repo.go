package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/doses"
)

type doseLogRepo struct {
	mu   sync.RWMutex
	byID map[string]doses.DoseLog
}

func NewDoseLogRepo() doses.Repository {
	return &doseLogRepo{
		byID: make(map[string]doses.DoseLog),
	}
}

func (r *doseLogRepo) Create(ctx context.Context, l doses.DoseLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(l.ID) == "" {
		return errors.New("dose log id required")
	}
	if _, exists := r.byID[l.ID]; exists {
		return errors.New("dose log already exists")
	}
	r.byID[l.ID] = l
	return nil
}

func (r *doseLogRepo) Get(ctx context.Context, id string) (doses.DoseLog, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.byID[id]
	return l, ok, nil
}

func (r *doseLogRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, id)
	return nil
}

func (r *doseLogRepo) ListByPlanBetween(ctx context.Context, planID string, from, to time.Time) ([]doses.DoseLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]doses.DoseLog, 0)
	for _, l := range r.byID {
		if l.PlanID == planID && inRange(l.TakenAt, from, to) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TakenAt.Equal(out[j].TakenAt) {
			return out[i].TakenAt.Before(out[j].TakenAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *doseLogRepo) CountByPlanBetween(ctx context.Context, planID string, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, l := range r.byID {
		if l.PlanID == planID && inRange(l.TakenAt, from, to) {
			n++
		}
	}
	return n, nil
}

func (r *doseLogRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, l := range r.byID {
		if l.MedicationID == medicationID {
			delete(r.byID, id)
		}
	}
	return nil
}

// inRange: from <= t <= to.
func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
