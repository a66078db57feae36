package pets

import "context"

type Repository interface {
	Create(ctx context.Context, p Pet) error
	Update(ctx context.Context, p Pet) error
	GetByID(ctx context.Context, id string) (Pet, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Pet, error)

	// ListWithMissedDoseAlerts alimenta el sweep de dosis omitidas.
	ListWithMissedDoseAlerts(ctx context.Context) ([]Pet, error)
}
