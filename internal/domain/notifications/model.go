package notifications

import (
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/push"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

// PushEndpoint es una suscripción web push de un usuario (un dispositivo).
type PushEndpoint struct {
	ID     string
	UserID string

	Endpoint   string
	P256dh     string
	Auth       string
	DeviceName string

	CreatedAt time.Time
}

func (e PushEndpoint) target() push.Endpoint {
	return push.Endpoint{
		ID:     e.ID,
		UserID: e.UserID,
		URL:    e.Endpoint,
		P256dh: e.P256dh,
		Auth:   e.Auth,
	}
}

// SentNotification marca que ya se avisó de dosis omitidas para (plan, día).
// Una fila suprime cualquier otro aviso de ese plan durante el resto del día.
type SentNotification struct {
	ID      string
	PlanID  string
	PetID   string
	LogDate schedule.Date // día local de la mascota

	Recipients []string
	SentAt     time.Time
}

// DeliveryReport resume un envío a varios usuarios.
type DeliveryReport struct {
	Recipients int
	Endpoints  int
	Delivered  int
	Pruned     int
	Failed     int
}
