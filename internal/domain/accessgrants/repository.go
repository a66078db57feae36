package accessgrants

import "context"

type Repository interface {
	Create(ctx context.Context, g Grant) error
	Update(ctx context.Context, g Grant) error
	GetByID(ctx context.Context, id string) (Grant, error)
	ListByPet(ctx context.Context, petID string) ([]Grant, error)
	ListByGrantee(ctx context.Context, granteeUserID string) ([]Grant, error)
	GetActiveGrant(ctx context.Context, petID, granteeUserID string) (Grant, error)
}

// PreferenceRepository guarda AlertPreference por (pet, user).
type PreferenceRepository interface {
	// Get devuelve found=false si el miembro nunca configuró preferencias.
	Get(ctx context.Context, petID, userID string) (AlertPreference, bool, error)
	Upsert(ctx context.Context, p AlertPreference) error
	ListByPet(ctx context.Context, petID string) ([]AlertPreference, error)
}
