package push

import (
	"context"
	"errors"
)

//go:generate mockgen -source=dispatcher.go -destination=dispatcher_mock.go -package=push

// ErrEndpointGone indica que el endpoint ya no es válido (suscripción expirada o eliminada).
// Quien llama debe borrar el endpoint guardado.
var ErrEndpointGone = errors.New("push endpoint gone")

// Endpoint describe el destino de una notificación web push.
type Endpoint struct {
	ID     string
	UserID string
	URL    string
	P256dh string
	Auth   string
}

type Message struct {
	Title string
	Body  string
	// URL opcional para abrir al tocar la notificación.
	URL string
}

// Dispatcher entrega un mensaje a un endpoint.
// Errores: ErrEndpointGone (envuelto o no) o cualquier error transitorio.
type Dispatcher interface {
	Send(ctx context.Context, endpoint Endpoint, msg Message) error
}
