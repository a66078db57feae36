package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
)

// grantRepo ordena igual que el repo Postgres: por pet, created_at ASC;
// por grantee, updated_at DESC.
type grantRepo struct {
	mu   sync.RWMutex
	byID map[string]accessgrants.Grant
}

func NewAccessGrantsRepo() accessgrants.Repository {
	return &grantRepo{
		byID: make(map[string]accessgrants.Grant),
	}
}

// cloneGrant evita compartir el slice de scopes con el llamador.
func cloneGrant(g accessgrants.Grant) accessgrants.Grant {
	g.Scopes = append([]accessgrants.Scope(nil), g.Scopes...)
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		g.RevokedAt = &t
	}
	return g
}

func (r *grantRepo) Create(ctx context.Context, g accessgrants.Grant) error {
	if g.ID == "" {
		return errors.New("grant id required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.byID[g.ID] = cloneGrant(g)
	return nil
}

func (r *grantRepo) Update(ctx context.Context, g accessgrants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[g.ID]; !exists {
		return ErrNotFound
	}
	r.byID[g.ID] = cloneGrant(g)
	return nil
}

func (r *grantRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byID[id]
	if !ok {
		return accessgrants.Grant{}, ErrNotFound
	}
	return cloneGrant(g), nil
}

func (r *grantRepo) ListByPet(ctx context.Context, petID string) ([]accessgrants.Grant, error) {
	out := r.filter(func(g accessgrants.Grant) bool { return g.PetID == petID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *grantRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]accessgrants.Grant, error) {
	out := r.filter(func(g accessgrants.Grant) bool { return g.GranteeUserID == granteeUserID })
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// GetActiveGrant: si hubiera varios activos gana el más reciente por updated_at.
func (r *grantRepo) GetActiveGrant(ctx context.Context, petID, granteeUserID string) (accessgrants.Grant, error) {
	active := r.filter(func(g accessgrants.Grant) bool {
		return g.PetID == petID && g.GranteeUserID == granteeUserID && g.Status == accessgrants.StatusActive
	})
	if len(active) == 0 {
		return accessgrants.Grant{}, ErrNotFound
	}
	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return active[0], nil
}

func (r *grantRepo) filter(keep func(accessgrants.Grant) bool) []accessgrants.Grant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Grant, 0)
	for _, g := range r.byID {
		if keep(g) {
			out = append(out, cloneGrant(g))
		}
	}
	return out
}

type preferenceRepo struct {
	mu    sync.RWMutex
	byKey map[string]accessgrants.AlertPreference
}

func NewAlertPreferenceRepo() accessgrants.PreferenceRepository {
	return &preferenceRepo{
		byKey: make(map[string]accessgrants.AlertPreference),
	}
}

func preferenceKey(petID, userID string) string {
	return petID + "|" + userID
}

func (r *preferenceRepo) Get(ctx context.Context, petID, userID string) (accessgrants.AlertPreference, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byKey[preferenceKey(petID, userID)]
	return p, ok, nil
}

func (r *preferenceRepo) Upsert(ctx context.Context, p accessgrants.AlertPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.PetID == "" || p.UserID == "" {
		return errors.New("pet id and user id required")
	}
	r.byKey[preferenceKey(p.PetID, p.UserID)] = p
	return nil
}

func (r *preferenceRepo) ListByPet(ctx context.Context, petID string) ([]accessgrants.AlertPreference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.AlertPreference, 0)
	for _, p := range r.byKey {
		if p.PetID == petID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
