package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/doses"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/pets"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/metrics"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/push"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// RecipientResolver resuelve los miembros que quieren un tipo de alerta (lo cumple *accessgrants.Service).
type RecipientResolver interface {
	AlertRecipients(ctx context.Context, petID, ownerUserID string, kind accessgrants.AlertKind) ([]string, error)
}

// PetLookup lo cumple *pets.Service.
type PetLookup interface {
	GetByID(ctx context.Context, id string) (pets.Pet, error)
	DefaultLocation() *time.Location
}

type Service struct {
	endpoints  EndpointRepository
	dispatcher push.Dispatcher
	recipients RecipientResolver
	pets       PetLookup
	log        logger.Logger
	metrics    *metrics.Recorder
	now        func() time.Time
}

var _ doses.Notifier = (*Service)(nil)

func NewService(endpoints EndpointRepository, dispatcher push.Dispatcher, recipients RecipientResolver, petLookup PetLookup, log logger.Logger, rec *metrics.Recorder) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		endpoints:  endpoints,
		dispatcher: dispatcher,
		recipients: recipients,
		pets:       petLookup,
		log:        log,
		metrics:    rec,
		now:        time.Now,
	}
}

// -------------------------
// Endpoints
// -------------------------

type EndpointInput struct {
	Endpoint   string
	P256dh     string
	Auth       string
	DeviceName string
}

func (s *Service) RegisterEndpoint(ctx context.Context, userID string, in EndpointInput) (PushEndpoint, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return PushEndpoint{}, ErrInvalidInput
	}

	raw := strings.TrimSpace(in.Endpoint)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return PushEndpoint{}, fmt.Errorf("%w: endpoint must be an https url", ErrInvalidInput)
	}
	if strings.TrimSpace(in.P256dh) == "" || strings.TrimSpace(in.Auth) == "" {
		return PushEndpoint{}, fmt.Errorf("%w: p256dh and auth required", ErrInvalidInput)
	}

	return s.endpoints.Upsert(ctx, PushEndpoint{
		ID:         uuid.NewString(),
		UserID:     userID,
		Endpoint:   raw,
		P256dh:     strings.TrimSpace(in.P256dh),
		Auth:       strings.TrimSpace(in.Auth),
		DeviceName: strings.TrimSpace(in.DeviceName),
		CreatedAt:  s.now(),
	})
}

func (s *Service) ListEndpoints(ctx context.Context, userID string) ([]PushEndpoint, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.endpoints.ListByUser(ctx, userID)
}

func (s *Service) DeleteEndpoint(ctx context.Context, userID, id string) error {
	e, found, err := s.endpoints.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !found || e.UserID != userID {
		return ErrNotFound
	}
	return s.endpoints.Delete(ctx, e.ID)
}

// -------------------------
// Delivery
// -------------------------

// Deliver envía msg a todos los endpoints de los usuarios. Nunca corta el lote:
// ErrEndpointGone borra el endpoint, cualquier otro error se registra y se sigue.
// Solo devuelve error si no se pudieron leer los endpoints.
func (s *Service) Deliver(ctx context.Context, userIDs []string, msg push.Message) (DeliveryReport, error) {
	rep := DeliveryReport{Recipients: len(userIDs)}
	if len(userIDs) == 0 {
		return rep, nil
	}

	targets, err := s.endpoints.ListByUsers(ctx, userIDs)
	if err != nil {
		return rep, fmt.Errorf("list push endpoints: %w", err)
	}
	rep.Endpoints = len(targets)

	for _, e := range targets {
		err := s.dispatcher.Send(ctx, e.target(), msg)
		switch {
		case err == nil:
			rep.Delivered++
		case errors.Is(err, push.ErrEndpointGone):
			if derr := s.endpoints.Delete(ctx, e.ID); derr != nil {
				s.log.Warn("prune push endpoint failed", map[string]any{
					"endpoint_id": e.ID,
					"error":       derr,
				})
			}
			rep.Pruned++
			s.metrics.RecordEndpointPruned(ctx)
		default:
			rep.Failed++
			s.metrics.RecordDispatchError(ctx, "transient")
			s.log.Warn("push dispatch failed", map[string]any{
				"endpoint_id": e.ID,
				"user_id":     e.UserID,
				"error":       err,
			})
		}
	}

	return rep, nil
}

// NotifyDoseGiven avisa a los miembros con la preferencia "dose_given", excepto a quien la dio.
func (s *Service) NotifyDoseGiven(ctx context.Context, n doses.GivenNotice) error {
	pet, err := s.pets.GetByID(ctx, n.PetID)
	if err != nil {
		return fmt.Errorf("load pet: %w", err)
	}

	users, err := s.recipients.AlertRecipients(ctx, pet.ID, pet.OwnerUserID, accessgrants.AlertDoseGiven)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	filtered := make([]string, 0, len(users))
	for _, u := range users {
		if u != n.ActorUserID {
			filtered = append(filtered, u)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	loc := pet.Location(s.pets.DefaultLocation())
	name := n.MedicationName
	if name == "" {
		name = "medisin"
	}
	msg := push.Message{
		Title: fmt.Sprintf("%s: %s gitt", pet.Name, name),
		Body:  fmt.Sprintf("Dosen ble registrert kl. %s.", n.TakenAt.In(loc).Format("15:04")),
		URL:   "/pets/" + pet.ID,
	}

	rep, err := s.Deliver(ctx, filtered, msg)
	if err != nil {
		return err
	}
	s.log.Debug("dose given notification sent", map[string]any{
		"pet_id":    pet.ID,
		"delivered": rep.Delivered,
		"pruned":    rep.Pruned,
		"failed":    rep.Failed,
	})
	return nil
}
