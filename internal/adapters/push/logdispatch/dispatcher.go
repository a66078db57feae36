package logdispatch

import (
	"context"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/push"
)

// Dispatcher solo registra el mensaje. Se usa cuando no hay relay configurado (modo dev).
type Dispatcher struct {
	log logger.Logger
}

func New(log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{log: log.With(map[string]any{"dispatcher": "log"})}
}

func (d *Dispatcher) Send(_ context.Context, endpoint push.Endpoint, msg push.Message) error {
	d.log.Info("push message", map[string]any{
		"endpoint_id": endpoint.ID,
		"user_id":     endpoint.UserID,
		"title":       msg.Title,
		"body":        msg.Body,
		"url":         msg.URL,
	})
	return nil
}
