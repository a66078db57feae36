package notifications

import (
	"context"
	"errors"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

// ErrAlreadySent: conflicto de unicidad (plan, día) al insertar.
var ErrAlreadySent = errors.New("notification already sent")

type EndpointRepository interface {
	// Upsert reemplaza la suscripción existente del mismo usuario con la misma URL.
	Upsert(ctx context.Context, e PushEndpoint) (PushEndpoint, error)
	Get(ctx context.Context, id string) (PushEndpoint, bool, error)
	ListByUser(ctx context.Context, userID string) ([]PushEndpoint, error)
	ListByUsers(ctx context.Context, userIDs []string) ([]PushEndpoint, error)
	// Delete sobre un id inexistente no es error.
	Delete(ctx context.Context, id string) error
}

type SentRepository interface {
	Count(ctx context.Context, planID string, day schedule.Date) (int, error)
	// Insert devuelve ErrAlreadySent si ya existe una fila para (plan, día).
	Insert(ctx context.Context, n SentNotification) error
	// DeleteBefore borra filas con LogDate < day y devuelve cuántas.
	DeleteBefore(ctx context.Context, day schedule.Date) (int, error)
}
