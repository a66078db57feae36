package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/me/push-endpoints", func(er chi.Router) {
		er.Post("/", registerEndpointHandler(svc))
		er.Get("/", listEndpointsHandler(svc))
		er.Delete("/{endpointID}", deleteEndpointHandler(svc))
	})
}

type endpointKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// endpointRequest sigue el formato de PushSubscription.toJSON() del navegador.
type endpointRequest struct {
	Endpoint   string       `json:"endpoint"`
	Keys       endpointKeys `json:"keys"`
	DeviceName string       `json:"device_name"`
}

type endpointResponse struct {
	ID         string    `json:"id"`
	Endpoint   string    `json:"endpoint"`
	DeviceName string    `json:"device_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// registerEndpointHandler godoc
// @Summary Registrar suscripción push
// @Description Guarda la suscripción web push del dispositivo. Re-registrar la misma URL la reemplaza.
// @Tags push
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body endpointRequest true "PushSubscription"
// @Success 201 {object} endpointResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 401 {string} string "unauthorized"
// @Router /me/push-endpoints [post]
func registerEndpointHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req endpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		e, err := svc.RegisterEndpoint(r.Context(), claims.UserID, EndpointInput{
			Endpoint:   req.Endpoint,
			P256dh:     req.Keys.P256dh,
			Auth:       req.Keys.Auth,
			DeviceName: req.DeviceName,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, toEndpointResponse(e))
	}
}

// listEndpointsHandler godoc
// @Summary Mis suscripciones push
// @Tags push
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} endpointResponse
// @Failure 401 {string} string "unauthorized"
// @Router /me/push-endpoints [get]
func listEndpointsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListEndpoints(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]endpointResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEndpointResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// deleteEndpointHandler godoc
// @Summary Borrar suscripción push
// @Tags push
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param endpointID path string true "ID de la suscripción"
// @Success 204
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "not found"
// @Router /me/push-endpoints/{endpointID} [delete]
func deleteEndpointHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		err := svc.DeleteEndpoint(r.Context(), claims.UserID, chi.URLParam(r, "endpointID"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toEndpointResponse(e PushEndpoint) endpointResponse {
	return endpointResponse{
		ID:         e.ID,
		Endpoint:   e.Endpoint,
		DeviceName: e.DeviceName,
		CreatedAt:  e.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
