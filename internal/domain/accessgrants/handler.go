package accessgrants

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// PetOwnerLookup evita importar el paquete pets (rompe ciclos).
type PetOwnerLookup interface {
	// OwnerOf: found=false si la mascota no existe; err es un fallo del store.
	OwnerOf(ctx context.Context, petID string) (ownerID string, found bool, err error)
}

// lookupOwner responde 404 o 500 y devuelve false si no hay owner.
func lookupOwner(w http.ResponseWriter, r *http.Request, petOwners PetOwnerLookup, petID string) (string, bool) {
	ownerID, found, err := petOwners.OwnerOf(r.Context(), petID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return "", false
	}
	if !found || strings.TrimSpace(ownerID) == "" {
		http.Error(w, "pet not found", http.StatusNotFound)
		return "", false
	}
	return ownerID, true
}

func RegisterRoutes(r chi.Router, svc *Service, petOwners PetOwnerLookup) {
	// Owner actions scoped by pet
	r.Route("/pets/{petID}/grants", func(gr chi.Router) {
		gr.Post("/", inviteGrantHandler(svc, petOwners))
		gr.Get("/", listGrantsByPetHandler(svc, petOwners))
	})

	// Grantee/Owner actions scoped by grant id
	r.Route("/grants/{grantID}", func(gr chi.Router) {
		gr.Post("/accept", acceptGrantHandler(svc))
		gr.Post("/revoke", revokeGrantHandler(svc))
	})

	// Delegado: ver sus invitaciones / grants
	r.Route("/me/grants", func(mr chi.Router) {
		mr.Get("/", listMyGrantsHandler(svc))
	})

	// Preferencias de avisos del miembro autenticado
	r.Route("/pets/{petID}/alert-preferences/me", func(ar chi.Router) {
		ar.Get("/", getMyPreferenceHandler(svc, petOwners))
		ar.Put("/", putMyPreferenceHandler(svc, petOwners))
	})
}

type inviteGrantRequest struct {
	GranteeUserID string  `json:"grantee_user_id"`
	Scopes        []Scope `json:"scopes"`
}

type preferenceRequest struct {
	MissedDoses bool `json:"missed_doses"`
	DoseGiven   bool `json:"dose_given"`
}

type preferenceResponse struct {
	PetID       string     `json:"pet_id"`
	UserID      string     `json:"user_id"`
	MissedDoses bool       `json:"missed_doses"`
	DoseGiven   bool       `json:"dose_given"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type grantResponse struct {
	ID            string     `json:"id"`
	PetID         string     `json:"pet_id"`
	OwnerUserID   string     `json:"owner_user_id"`
	GranteeUserID string     `json:"grantee_user_id"`
	Scopes        []Scope    `json:"scopes"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

// inviteGrantHandler godoc
// @Summary Invitar co-cuidador
// @Description Solo el dueño. Crea (o actualiza, si ya existe uno vigente) un grant con los scopes indicados. Sin scopes => `pet:read` + `meds:read`.
// @Tags grants
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param payload body inviteGrantRequest true "Delegado y scopes (pet:read, pet:edit_profile, meds:read, meds:log, meds:manage)"
// @Success 201 {object} grantResponse
// @Failure 400 {string} string "invalid json / scope desconocido"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID}/grants [post]
func inviteGrantHandler(svc *Service, petOwners PetOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		petID := chi.URLParam(r, "petID")

		ownerID, ok := lookupOwner(w, r, petOwners, petID)
		if !ok {
			return
		}
		if ownerID != claims.UserID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req inviteGrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.GranteeUserID) == "" {
			http.Error(w, "grantee_user_id required", http.StatusBadRequest)
			return
		}

		g, err := svc.Invite(r.Context(), InviteInput{
			PetID:         petID,
			OwnerUserID:   claims.UserID,
			GranteeUserID: strings.TrimSpace(req.GranteeUserID),
			Scopes:        req.Scopes,
		})
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toGrantResponse(g))
	}
}

// listGrantsByPetHandler godoc
// @Summary Listar grants de una mascota
// @Description Solo el dueño.
// @Tags grants
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Success 200 {array} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID}/grants [get]
func listGrantsByPetHandler(svc *Service, petOwners PetOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		petID := chi.URLParam(r, "petID")

		ownerID, ok := lookupOwner(w, r, petOwners, petID)
		if !ok {
			return
		}
		if ownerID != claims.UserID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListByPet(r.Context(), petID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]grantResponse, 0, len(items))
		for _, g := range items {
			out = append(out, toGrantResponse(g))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// listMyGrantsHandler godoc
// @Summary Mis grants
// @Description Grants donde el usuario autenticado es delegado. Filtro opcional `status` (CSV).
// @Tags grants
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param status query string false "invited,active,revoked"
// @Success 200 {array} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Router /me/grants [get]
func listMyGrantsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// status=invited,active (CSV opcional)
		allowed := parseStatusFilter(r.URL.Query().Get("status"))

		items, err := svc.ListByGrantee(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		// Filtrar por status si se especificó
		if len(allowed) > 0 {
			filtered := make([]Grant, 0, len(items))
			for _, g := range items {
				if _, ok := allowed[g.Status]; ok {
					filtered = append(filtered, g)
				}
			}
			items = filtered
		}

		out := make([]grantResponse, 0, len(items))
		for _, g := range items {
			out = append(out, toGrantResponse(g))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// acceptGrantHandler godoc
// @Summary Aceptar invitación
// @Tags grants
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param grantID path string true "ID del grant"
// @Success 200 {object} grantResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "invalid state"
// @Router /grants/{grantID}/accept [post]
func acceptGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grantID := chi.URLParam(r, "grantID")
		g, err := svc.Accept(r.Context(), grantID, claims.UserID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

// revokeGrantHandler godoc
// @Summary Revocar grant
// @Description Solo el dueño. Idempotente.
// @Tags grants
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param grantID path string true "ID del grant"
// @Success 200 {object} grantResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /grants/{grantID}/revoke [post]
func revokeGrantHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grantID := chi.URLParam(r, "grantID")
		g, err := svc.Revoke(r.Context(), grantID, claims.UserID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

// getMyPreferenceHandler godoc
// @Summary Ver mis preferencias de avisos
// @Description Preferencias del miembro autenticado (dueño o delegado activo). Sin registro previo => ambos avisos desactivados.
// @Tags alert-preferences
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Success 200 {object} preferenceResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID}/alert-preferences/me [get]
func getMyPreferenceHandler(svc *Service, petOwners PetOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		petID := chi.URLParam(r, "petID")
		ownerID, ok := lookupOwner(w, r, petOwners, petID)
		if !ok {
			return
		}
		if !svc.IsMember(r.Context(), petID, ownerID, claims.UserID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		p, err := svc.GetPreference(r.Context(), petID, claims.UserID)
		if err != nil {
			writeGrantError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPreferenceResponse(p))
	}
}

// putMyPreferenceHandler godoc
// @Summary Guardar mis preferencias de avisos
// @Description Activa o desactiva los avisos de dosis omitidas y de dosis dada para el miembro autenticado.
// @Tags alert-preferences
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param payload body preferenceRequest true "Preferencias"
// @Success 200 {object} preferenceResponse
// @Failure 400 {string} string "invalid json"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID}/alert-preferences/me [put]
func putMyPreferenceHandler(svc *Service, petOwners PetOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		petID := chi.URLParam(r, "petID")
		ownerID, ok := lookupOwner(w, r, petOwners, petID)
		if !ok {
			return
		}
		if !svc.IsMember(r.Context(), petID, ownerID, claims.UserID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req preferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.SetPreference(r.Context(), petID, claims.UserID, PreferenceInput{
			MissedDoses: req.MissedDoses,
			DoseGiven:   req.DoseGiven,
		})
		if err != nil {
			writeGrantError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPreferenceResponse(p))
	}
}

func toPreferenceResponse(p AlertPreference) preferenceResponse {
	out := preferenceResponse{
		PetID:       p.PetID,
		UserID:      p.UserID,
		MissedDoses: p.MissedDoses,
		DoseGiven:   p.DoseGiven,
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func writeGrantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toGrantResponse(g Grant) grantResponse {
	return grantResponse{
		ID:            g.ID,
		PetID:         g.PetID,
		OwnerUserID:   g.OwnerUserID,
		GranteeUserID: g.GranteeUserID,
		Scopes:        g.Scopes,
		Status:        g.Status,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		RevokedAt:     g.RevokedAt,
	}
}

func parseStatusFilter(raw string) map[Status]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := map[Status]struct{}{}
	for _, p := range parts {
		s := Status(strings.TrimSpace(p))
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}

// writeJSON está duplicado en cada módulo para no crear un paquete de helpers compartido.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
