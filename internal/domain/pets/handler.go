package pets

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, grantsSvc *accessgrants.Service) {
	r.Route("/pets", func(pr chi.Router) {
		pr.Post("/", createPetHandler(svc))
		pr.Get("/", listPetsHandler(svc))

		// Perfil (owner o delegado con pet:read)
		pr.Get("/{petID}", getPetHandler(svc, grantsSvc))

		// Perfil + ajustes de alertas (owner o delegado con pet:edit_profile)
		pr.Patch("/{petID}", updatePetHandler(svc, grantsSvc))
	})

	// Mascotas compartidas conmigo (delegado)
	r.Get("/me/pets", listMySharedPetsHandler(svc, grantsSvc))
}

// createPetRequest es el cuerpo para registrar una mascota.
type createPetRequest struct {
	Name              string `json:"name"`
	Species           string `json:"species" enums:"dog,cat,other"`
	Breed             string `json:"breed"`
	Sex               string `json:"sex" enums:"male,female,unknown"`
	BirthDate         string `json:"birth_date"` // YYYY-MM-DD opcional
	Microchip         string `json:"microchip"`
	Notes             string `json:"notes"`
	Timezone          string `json:"timezone"` // IANA opcional
	MissedDoseAlerts  bool   `json:"missed_dose_alerts"`
	AlertDelayMinutes *int   `json:"alert_delay_minutes"`
}

// petResponse es la mascota devuelta por la API.
type petResponse struct {
	ID                string     `json:"id"`
	OwnerUserID       string     `json:"owner_user_id"`
	Name              string     `json:"name"`
	Species           Species    `json:"species"`
	Breed             string     `json:"breed"`
	Sex               Sex        `json:"sex"`
	BirthDate         *time.Time `json:"birth_date,omitempty"`
	Microchip         string     `json:"microchip,omitempty"`
	Notes             string     `json:"notes"`
	Timezone          string     `json:"timezone"`
	MissedDoseAlerts  bool       `json:"missed_dose_alerts"`
	AlertDelayMinutes int        `json:"alert_delay_minutes"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// updatePetRequest: nil = no tocar. birth_date admite null para limpiar.
type updatePetRequest struct {
	Name              *string `json:"name"`
	Species           *string `json:"species"`
	Breed             *string `json:"breed"`
	Sex               *string `json:"sex"`
	BirthDate         *string `json:"birth_date"`
	Microchip         *string `json:"microchip"`
	Notes             *string `json:"notes"`
	Timezone          *string `json:"timezone"`
	MissedDoseAlerts  *bool   `json:"missed_dose_alerts"`
	AlertDelayMinutes *int    `json:"alert_delay_minutes"`
}

type sharedPetResponse struct {
	Pet    petResponse          `json:"pet"`
	Grant  sharedGrantSummary   `json:"grant"`
	Scopes []accessgrants.Scope `json:"scopes"`
}

type sharedGrantSummary struct {
	ID     string              `json:"id"`
	Status accessgrants.Status `json:"status"`
}

// createPetHandler godoc
// @Summary Registrar mascota
// @Description Crea una mascota cuyo dueño es el usuario autenticado. Incluye la configuración de alertas de dosis omitidas (zona horaria, activación y retraso en minutos).
// @Tags pets
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createPetRequest true "Datos de la mascota"
// @Success 201 {object} petResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 401 {string} string "unauthorized"
// @Router /pets [post]
func createPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createPetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var bd *time.Time
		if strings.TrimSpace(req.BirthDate) != "" {
			t, err := time.Parse("2006-01-02", req.BirthDate)
			if err != nil {
				http.Error(w, "birth_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			bd = &t
		}

		p, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			Name:              req.Name,
			Species:           req.Species,
			Breed:             req.Breed,
			Sex:               req.Sex,
			BirthDate:         bd,
			Microchip:         req.Microchip,
			Notes:             req.Notes,
			Timezone:          req.Timezone,
			MissedDoseAlerts:  req.MissedDoseAlerts,
			AlertDelayMinutes: req.AlertDelayMinutes,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toPetResponse(p))
	}
}

// listPetsHandler godoc
// @Summary Listar mis mascotas
// @Description Lista las mascotas cuyo dueño es el usuario autenticado (sin las compartidas).
// @Tags pets
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} petResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "internal error"
// @Router /pets [get]
func listPetsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]petResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPetResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getPetHandler godoc
// @Summary Ver mascota
// @Description Devuelve el perfil de la mascota. Dueño siempre; delegado con scope `pet:read`.
// @Tags pets
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Success 200 {object} petResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID} [get]
func getPetHandler(svc *Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		petID := chi.URLParam(r, "petID")
		p, err := svc.GetByID(r.Context(), petID)
		if err != nil {
			writePetLookupError(w, err)
			return
		}

		if !grantsSvc.Allowed(r.Context(), petID, p.OwnerUserID, claims.UserID, accessgrants.ScopePetRead) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, toPetResponse(p))
	}
}

// updatePetHandler godoc
// @Summary Actualizar mascota
// @Description PATCH del perfil y de los ajustes de alertas. Dueño siempre; delegado con scope `pet:edit_profile`. `birth_date: null` limpia la fecha.
// @Tags pets
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param payload body updatePetRequest true "Campos a modificar"
// @Success 200 {object} petResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID} [patch]
func updatePetHandler(svc *Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		petID := chi.URLParam(r, "petID")
		current, err := svc.GetByID(r.Context(), petID)
		if err != nil {
			writePetLookupError(w, err)
			return
		}

		if !grantsSvc.Allowed(r.Context(), petID, current.OwnerUserID, claims.UserID, accessgrants.ScopePetEditProfile) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		// Decodificamos a map para detectar presencia de birth_date (null = limpiar).
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var req updatePetRequest
		b, _ := json.Marshal(raw)
		dec := json.NewDecoder(strings.NewReader(string(b)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		bd := PatchBirthDate{}
		if v, exists := raw["birth_date"]; exists {
			bd.Present = true
			if string(v) != "null" {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					http.Error(w, "birth_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				bd.Value = &s
			}
		}

		updated, err := svc.UpdateProfile(r.Context(), petID, claims.UserID, UpdateProfileInput{
			Name:              req.Name,
			Species:           req.Species,
			Breed:             req.Breed,
			Sex:               req.Sex,
			BirthDate:         bd,
			Microchip:         req.Microchip,
			Notes:             req.Notes,
			Timezone:          req.Timezone,
			MissedDoseAlerts:  req.MissedDoseAlerts,
			AlertDelayMinutes: req.AlertDelayMinutes,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidTimezone):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "pet not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toPetResponse(updated))
	}
}

// listMySharedPetsHandler godoc
// @Summary Mascotas compartidas conmigo
// @Description Lista las mascotas con un grant activo hacia el usuario autenticado que incluya `pet:read` o `meds:read`.
// @Tags pets
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} sharedPetResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "internal error"
// @Router /me/pets [get]
func listMySharedPetsHandler(svc *Service, grantsSvc *accessgrants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grants, err := grantsSvc.ListByGrantee(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		seen := map[string]struct{}{}
		out := make([]sharedPetResponse, 0)

		for _, g := range grants {
			if g.Status != accessgrants.StatusActive {
				continue
			}
			if !accessgrants.HasScope(g, accessgrants.ScopePetRead) && !accessgrants.HasScope(g, accessgrants.ScopeMedsRead) {
				continue
			}
			if _, ok := seen[g.PetID]; ok {
				continue
			}
			seen[g.PetID] = struct{}{}

			p, err := svc.GetByID(r.Context(), g.PetID)
			if errors.Is(err, ErrNotFound) {
				// grant huérfano (mascota borrada)
				continue
			}
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			out = append(out, sharedPetResponse{
				Pet:    toPetResponse(p),
				Grant:  sharedGrantSummary{ID: g.ID, Status: g.Status},
				Scopes: g.Scopes,
			})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func toPetResponse(p Pet) petResponse {
	return petResponse{
		ID:                p.ID,
		OwnerUserID:       p.OwnerUserID,
		Name:              p.Name,
		Species:           p.Species,
		Breed:             p.Breed,
		Sex:               p.Sex,
		BirthDate:         p.BirthDate,
		Microchip:         p.Microchip,
		Notes:             p.Notes,
		Timezone:          p.Timezone,
		MissedDoseAlerts:  p.MissedDoseAlerts,
		AlertDelayMinutes: p.AlertDelayMinutes,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// writeJSON está duplicado en cada módulo para no crear un paquete de helpers compartido.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePetLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "pet not found", http.StatusNotFound)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}
