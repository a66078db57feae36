package doses

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/pets"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/middleware"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, petsSvc *pets.Service, grantsSvc *accessgrants.Service) {
	r.Route("/pets/{petID}/doses", func(dr chi.Router) {
		dr.Get("/", dayEventsHandler(svc, petsSvc, grantsSvc))
		dr.Post("/", recordDoseHandler(svc, petsSvc, grantsSvc))
		dr.Delete("/{logID}", undoDoseHandler(svc, petsSvc, grantsSvc))
	})
}

type eventResponse struct {
	PlanID         string     `json:"plan_id"`
	MedicationID   string     `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	Strength       string     `json:"strength,omitempty"`
	Color          string     `json:"color,omitempty"`
	DoseText       string     `json:"dose_text"`
	Time           string     `json:"time"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	Status         string     `json:"status" enums:"taken,due,overdue,upcoming"`
	LogID          string     `json:"log_id,omitempty"`
	TakenAt        *time.Time `json:"taken_at,omitempty"`
	TakenBy        string     `json:"taken_by,omitempty"`
}

type dayResponse struct {
	Date     string          `json:"date"`
	DayClass string          `json:"day_class" enums:"past,today,future"`
	Timezone string          `json:"timezone"`
	Events   []eventResponse `json:"events"`
}

type recordRequest struct {
	PlanID           string `json:"plan_id"`
	Date             string `json:"date"` // YYYY-MM-DD; vacío => hoy
	Time             string `json:"time"` // HH:MM
	UseScheduledTime bool   `json:"use_scheduled_time"`
	Confirmed        bool   `json:"confirmed"`
	Notes            string `json:"notes"`
}

type logResponse struct {
	ID           string    `json:"id"`
	PlanID       string    `json:"plan_id"`
	MedicationID string    `json:"medication_id"`
	PetID        string    `json:"pet_id"`
	TakenAt      time.Time `json:"taken_at"`
	TakenBy      string    `json:"taken_by"`
	Status       string    `json:"status"`
	Source       string    `json:"source"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type confirmationResponse struct {
	Error string `json:"error"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// resolvePet: claims + mascota + scope. Devuelve la zona horaria efectiva.
func resolvePet(w http.ResponseWriter, r *http.Request, petsSvc *pets.Service, grantsSvc *accessgrants.Service, scope accessgrants.Scope) (string, pets.Pet, *time.Location, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", pets.Pet{}, nil, false
	}

	petID := chi.URLParam(r, "petID")
	p, err := petsSvc.GetByID(r.Context(), petID)
	if errors.Is(err, pets.ErrNotFound) {
		http.Error(w, "pet not found", http.StatusNotFound)
		return "", pets.Pet{}, nil, false
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return "", pets.Pet{}, nil, false
	}

	if !grantsSvc.Allowed(r.Context(), petID, p.OwnerUserID, claims.UserID, scope) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", pets.Pet{}, nil, false
	}
	return claims.UserID, p, p.Location(petsSvc.DefaultLocation()), true
}

// dayEventsHandler godoc
// @Summary Dosis del día
// @Description Eventos de dosis esperados para un día (zona horaria de la mascota) con su estado: taken, due (hoy), overdue (días pasados) o upcoming (días futuros).
// @Tags doses
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param date query string false "Día YYYY-MM-DD (default: hoy)"
// @Success 200 {object} dayResponse
// @Failure 400 {string} string "date must be YYYY-MM-DD"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Failure 500 {string} string "internal error"
// @Router /pets/{petID}/doses [get]
func dayEventsHandler(svc *Service, petsSvc *pets.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, p, loc, ok := resolvePet(w, r, petsSvc, grantsSvc, accessgrants.ScopeMedsRead)
		if !ok {
			return
		}

		now := svc.Now()
		day := schedule.DateOf(now, loc)
		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			d, err := schedule.ParseDate(raw)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			day = d
		}

		events, err := svc.DayEvents(r.Context(), p.ID, loc, day, now)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := dayResponse{
			Date:     day.String(),
			DayClass: string(schedule.ClassifyDay(day, now, loc)),
			Timezone: loc.String(),
			Events:   make([]eventResponse, 0, len(events)),
		}
		for _, ev := range events {
			out.Events = append(out.Events, eventResponse{
				PlanID:         ev.PlanID,
				MedicationID:   ev.MedicationID,
				MedicationName: ev.MedicationName,
				Strength:       ev.Strength,
				Color:          ev.Color,
				DoseText:       ev.DoseText,
				Time:           ev.Time,
				ScheduledAt:    ev.ScheduledAt,
				Status:         string(ev.Status),
				LogID:          ev.LogID,
				TakenAt:        ev.TakenAt,
				TakenBy:        ev.TakenBy,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// recordDoseHandler godoc
// @Summary Registrar dosis dada
// @Description Hoy: libre. Día pasado: responde 409 con fecha y hora hasta que se reenvíe con confirmed=true (se registra a la hora programada). Día futuro: 422.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param payload body recordRequest true "Dosis"
// @Success 201 {object} logResponse
// @Failure 400 {string} string "invalid json / hora inválida"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet / plan not found"
// @Failure 409 {object} confirmationResponse
// @Failure 422 {string} string "future dose not allowed"
// @Router /pets/{petID}/doses [post]
func recordDoseHandler(svc *Service, petsSvc *pets.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, p, loc, ok := resolvePet(w, r, petsSvc, grantsSvc, accessgrants.ScopeMedsLog)
		if !ok {
			return
		}

		var req recordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		now := svc.Now()
		day := schedule.DateOf(now, loc)
		if raw := strings.TrimSpace(req.Date); raw != "" {
			d, err := schedule.ParseDate(raw)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			day = d
		}

		l, err := svc.RecordDose(r.Context(), actor, p.ID, loc, RecordInput{
			PlanID:           req.PlanID,
			Day:              day,
			Time:             req.Time,
			UseScheduledTime: req.UseScheduledTime,
			Confirmed:        req.Confirmed,
			Notes:            req.Notes,
		}, now)
		if err != nil {
			var confirm *ConfirmationRequiredError
			if errors.As(err, &confirm) {
				writeJSON(w, http.StatusConflict, confirmationResponse{
					Error: "confirmation_required",
					Date:  confirm.Date.String(),
					Time:  confirm.Time,
				})
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLogResponse(l))
	}
}

// undoDoseHandler godoc
// @Summary Deshacer dosis
// @Description Borra el registro. Idempotente: un registro ya borrado responde 204.
// @Tags doses
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param logID path string true "ID del registro"
// @Success 204
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /pets/{petID}/doses/{logID} [delete]
func undoDoseHandler(svc *Service, petsSvc *pets.Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, p, _, ok := resolvePet(w, r, petsSvc, grantsSvc, accessgrants.ScopeMedsLog)
		if !ok {
			return
		}

		if err := svc.UndoDose(r.Context(), actor, p.ID, chi.URLParam(r, "logID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, schedule.ErrInvalidTimeFormat), errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrFutureDoseNotAllowed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toLogResponse(l DoseLog) logResponse {
	return logResponse{
		ID:           l.ID,
		PlanID:       l.PlanID,
		MedicationID: l.MedicationID,
		PetID:        l.PetID,
		TakenAt:      l.TakenAt,
		TakenBy:      l.TakenBy,
		Status:       string(l.Status),
		Source:       string(l.Source),
		Notes:        l.Notes,
		CreatedAt:    l.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
