package medications

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
	h := &handler{svc: svc, pets: petsSvc, grants: grantsSvc}

	r.Route("/pets/{petID}/medications", func(mr chi.Router) {
		mr.Post("/", h.createMedication)
		mr.Get("/", h.listMedications)

		mr.Route("/{medicationID}", func(ir chi.Router) {
			ir.Get("/", h.getMedication)
			ir.Patch("/", h.updateMedication)
			ir.Delete("/", h.deleteMedication)

			ir.Post("/plans", h.createPlan)
			ir.Patch("/plans/{planID}", h.updatePlan)
			ir.Post("/pause", h.pause)
			ir.Post("/resume", h.resume)
		})
	})
}

type handler struct {
	svc    *Service
	pets   *pets.Service
	grants *accessgrants.Service
}

type medicationRequest struct {
	Name     string `json:"name"`
	Strength string `json:"strength"`
	Notes    string `json:"notes"`
	Color    string `json:"color"`
}

type medicationPatchRequest struct {
	Name     *string `json:"name"`
	Strength *string `json:"strength"`
	Notes    *string `json:"notes"`
	Color    *string `json:"color"`
}

// planRequest: fechas en RFC3339 o YYYY-MM-DD (inicio del día en la zona de la mascota).
type planRequest struct {
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	ScheduleTimes []string `json:"schedule_times"`
	DoseText      string   `json:"dose_text"`
}

type planPatchRequest struct {
	ScheduleTimes []string `json:"schedule_times"`
	DoseText      *string  `json:"dose_text"`
	EndDate       *string  `json:"end_date"` // null => continuo
}

type pauseRequest struct {
	PausedAt string `json:"paused_at"` // RFC3339 opcional, default reloj del servicio
}

type resumeRequest struct {
	Mode string `json:"mode" enums:"remaining,new"`
}

type planResponse struct {
	ID            string     `json:"id"`
	MedicationID  string     `json:"medication_id"`
	PetID         string     `json:"pet_id"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	ScheduleTimes []string   `json:"schedule_times"`
	DoseText      string     `json:"dose_text"`
	Active        bool       `json:"active"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type medicationResponse struct {
	ID        string        `json:"id"`
	PetID     string        `json:"pet_id"`
	Name      string        `json:"name"`
	Strength  string        `json:"strength,omitempty"`
	Notes     string        `json:"notes"`
	Color     string        `json:"color,omitempty"`
	CreatedBy string        `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Plan      *planResponse `json:"plan,omitempty"`
}

// authorize resuelve claims + mascota y exige scope (owner bypass).
func (h *handler) authorize(w http.ResponseWriter, r *http.Request, scope accessgrants.Scope) (string, pets.Pet, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", pets.Pet{}, false
	}

	petID := chi.URLParam(r, "petID")
	p, err := h.pets.GetByID(r.Context(), petID)
	if errors.Is(err, pets.ErrNotFound) {
		http.Error(w, "pet not found", http.StatusNotFound)
		return "", pets.Pet{}, false
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return "", pets.Pet{}, false
	}

	if !h.grants.Allowed(r.Context(), petID, p.OwnerUserID, claims.UserID, scope) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", pets.Pet{}, false
	}
	return claims.UserID, p, true
}

// medicationOfPet evita operar sobre medicaciones de otra mascota vía URL.
func (h *handler) medicationOfPet(w http.ResponseWriter, r *http.Request, petID string) (Medication, bool) {
	m, err := h.svc.GetMedication(r.Context(), chi.URLParam(r, "medicationID"))
	if err != nil && !errors.Is(err, ErrNotFound) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return Medication{}, false
	}
	if err != nil || m.PetID != petID {
		http.Error(w, "medication not found", http.StatusNotFound)
		return Medication{}, false
	}
	return m, true
}

// createMedication godoc
// @Summary Crear medicación
// @Description Dueño o delegado con scope `meds:manage`.
// @Tags medications
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param payload body medicationRequest true "Medicación"
// @Success 201 {object} medicationResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID}/medications [post]
func (h *handler) createMedication(w http.ResponseWriter, r *http.Request) {
	actor, p, ok := h.authorize(w, r, accessgrants.ScopeMedsManage)
	if !ok {
		return
	}

	var req medicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	m, err := h.svc.CreateMedication(r.Context(), actor, p.ID, MedicationInput{
		Name:     req.Name,
		Strength: req.Strength,
		Notes:    req.Notes,
		Color:    req.Color,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMedicationResponse(m, nil))
}

// listMedications godoc
// @Summary Listar medicaciones
// @Description Medicaciones de la mascota con su plan actual (activo o pausado). Dueño o delegado con `meds:read`.
// @Tags medications
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Success 200 {array} medicationResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Failure 500 {string} string "internal error"
// @Router /pets/{petID}/medications [get]
func (h *handler) listMedications(w http.ResponseWriter, r *http.Request) {
	_, p, ok := h.authorize(w, r, accessgrants.ScopeMedsRead)
	if !ok {
		return
	}

	items, err := h.svc.ListMedications(r.Context(), p.ID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]medicationResponse, 0, len(items))
	for _, m := range items {
		plan, found, err := h.svc.CurrentPlan(r.Context(), m.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if found {
			out = append(out, toMedicationResponse(m, &plan))
		} else {
			out = append(out, toMedicationResponse(m, nil))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// getMedication godoc
// @Summary Ver medicación
// @Tags medications
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param medicationID path string true "ID de la medicación"
// @Success 200 {object} medicationResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /pets/{petID}/medications/{medicationID} [get]
func (h *handler) getMedication(w http.ResponseWriter, r *http.Request) {
	_, p, ok := h.authorize(w, r, accessgrants.ScopeMedsRead)
	if !ok {
		return
	}
	m, ok := h.medicationOfPet(w, r, p.ID)
	if !ok {
		return
	}

	plan, found, err := h.svc.CurrentPlan(r.Context(), m.ID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if found {
		writeJSON(w, http.StatusOK, toMedicationResponse(m, &plan))
		return
	}
	writeJSON(w, http.StatusOK, toMedicationResponse(m, nil))
}

// updateMedication godoc
// @Summary Editar medicación
// @Tags medications
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param medicationID path string true "ID de la medicación"
// @Param payload body medicationPatchRequest true "Campos a modificar"
// @Success 200 {object} medicationResponse
// @Failure 400 {string} string "invalid json / datos inválidos"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /pets/{petID}/medications/{medicationID} [patch]
func (h *handler) updateMedication(w http.ResponseWriter, r *http.Request) {
	actor, p, ok := h.authorize(w, r, accessgrants.ScopeMedsManage)
	if !ok {
		return
	}
	m, ok := h.medicationOfPet(w, r, p.ID)
	if !ok {
		return
	}

	var req medicationPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	updated, err := h.svc.UpdateMedication(r.Context(), actor, m.ID, MedicationPatch{
		Name:     req.Name,
		Strength: req.Strength,
		Notes:    req.Notes,
		Color:    req.Color,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMedicationResponse(updated, nil))
}

// deleteMedication godoc
// @Summary Borrar medicación
// @Description Borra la medicación junto con sus planes y registros de dosis.
// @Tags medications
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param medicationID path string true "ID de la medicación"
// @Success 204
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Failure 500 {string} string "internal error"
// @Router /pets/{petID}/medications/{medicationID} [delete]
func (h *handler) deleteMedication(w http.ResponseWriter, r *http.Request) {
	actor, p, ok := h.authorize(w, r, accessgrants.ScopeMedsManage)
	if !ok {
		return
	}
	m, ok := h.medicationOfPet(w, r, p.ID)
	if !ok {
		return
	}

	if err := h.svc.DeleteMedication(r.Context(), actor, m.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// createPlan godoc
// @Summary Crear plan de medicación
// @Description Reemplaza el plan vigente. Si start_date está en el pasado, las tomas anteriores a ahora se registran como dadas (backfill, una sola vez).
// @Tags plans
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param medicationID path string true "ID de la medicación"
// @Param payload body planRequest true "Plan; schedule_times en HH:MM"
// @Success 201 {object} planResponse
// @Failure 400 {string} string "invalid json / hora inválida / fechas inválidas"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /pets/{petID}/medications/{medicationID}/plans [post]
func (h *handler) createPlan(w http.ResponseWriter, r *http.Request) {
	actor, p, ok := h.authorize(w, r, accessgrants.ScopeMedsManage)
	if !ok {
		return
	}
	m, ok := h.medicationOfPet(w, r, p.ID)
	if !ok {
		return
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	loc := p.Location(h.pets.DefaultLocation())

	start, err := parseInstant(req.StartDate, loc)
	if err != nil {
		http.Error(w, "start_date must be RFC3339 or YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := parseInstant(req.EndDate, loc)
	if err != nil {
		http.Error(w, "end_date must be RFC3339 or YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	plan, err := h.svc.CreatePlan(r.Context(), actor, m.ID, PlanInput{
		StartDate:     start,
		EndDate:       end,
		ScheduleTimes: req.ScheduleTimes,
		DoseText:      req.DoseText,
	}, loc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanResponse(plan))
}

// updatePlan godoc
// @Summary Editar plan
// @Description Cambia horarios, texto de dosis o fecha de fin. No vuelve a ejecutar el backfill.
// @Tags plans
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param medicationID path string true "ID de la medicación"
// @Param planID path string true "ID del plan"
// @Param payload body planPatchRequest true "Campos a modificar"
// @Success 200 {object} planResponse
// @Failure 400 {string} string "invalid json / hora inválida"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /pets/{petID}/medications/{medicationID}/plans/{planID} [patch]
func (h *handler) updatePlan(w http.ResponseWriter, r *http.Request) {
	actor, p, ok := h.authorize(w, r, accessgrants.ScopeMedsManage)
	if !ok {
		return
	}
	m, ok := h.medicationOfPet(w, r, p.ID)
	if !ok {
		return
	}

	plan, err := h.svc.GetPlan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil && !errors.Is(err, ErrNotFound) {
		writeError(w, err)
		return
	}
	if err != nil || plan.MedicationID != m.ID {
		http.Error(w, "plan not found", http.StatusNotFound)
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var req planPatchRequest
	b, _ := json.Marshal(raw)
	if err := json.Unmarshal(b, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	patch := PlanPatch{
		ScheduleTimes: req.ScheduleTimes,
		DoseText:      req.DoseText,
	}
	if _, exists := raw["end_date"]; exists {
		patch.EndDate.Present = true
		if req.EndDate != nil {
			end, err := parseInstant(*req.EndDate, p.Location(h.pets.DefaultLocation()))
			if err != nil {
				http.Error(w, "end_date must be RFC3339, YYYY-MM-DD or null", http.StatusBadRequest)
				return
			}
			patch.EndDate.Value = end
		}
	}

	updated, err := h.svc.UpdatePlan(r.Context(), actor, plan.ID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(updated))
}

// pause godoc
// @Summary Pausar medicación
// @Description Pausa el plan activo. paused_at puede fecharse hacia atrás hasta el inicio del plan; futuro => 400. 409 si no hay plan activo.
// @Tags plans
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param medicationID path string true "ID de la medicación"
// @Param payload body pauseRequest false "Instante de pausa opcional"
// @Success 200 {object} planResponse
// @Failure 400 {string} string "invalid paused_at"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "no active plan"
// @Router /pets/{petID}/medications/{medicationID}/pause [post]
func (h *handler) pause(w http.ResponseWriter, r *http.Request) {
	actor, p, ok := h.authorize(w, r, accessgrants.ScopeMedsManage)
	if !ok {
		return
	}
	m, ok := h.medicationOfPet(w, r, p.ID)
	if !ok {
		return
	}

	var at time.Time
	var req pauseRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	if strings.TrimSpace(req.PausedAt) != "" {
		t, err := time.Parse(time.RFC3339, req.PausedAt)
		if err != nil {
			http.Error(w, "paused_at must be RFC3339", http.StatusBadRequest)
			return
		}
		at = t
	}

	plan, err := h.svc.Pause(r.Context(), actor, m.ID, at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(plan))
}

// resume godoc
// @Summary Reanudar medicación
// @Description `remaining` conserva la duración restante del curso; `new` reanuda como tratamiento continuo. 409 si no hay plan pausado.
// @Tags plans
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param medicationID path string true "ID de la medicación"
// @Param payload body resumeRequest true "Modo de reanudación"
// @Success 200 {object} planResponse
// @Failure 400 {string} string "invalid resume mode"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "no paused plan"
// @Router /pets/{petID}/medications/{medicationID}/resume [post]
func (h *handler) resume(w http.ResponseWriter, r *http.Request) {
	actor, p, ok := h.authorize(w, r, accessgrants.ScopeMedsManage)
	if !ok {
		return
	}
	m, ok := h.medicationOfPet(w, r, p.ID)
	if !ok {
		return
	}

	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	mode, err := ParseResumeMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}

	plan, err := h.svc.Resume(r.Context(), actor, m.ID, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(plan))
}

// parseInstant acepta vacío (nil), RFC3339 o YYYY-MM-DD (inicio del día en loc).
func parseInstant(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	d, err := schedule.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	t := d.Start(loc)
	return &t, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, schedule.ErrInvalidTimeFormat), errors.Is(err, ErrInvalidResumeMode):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrNoActivePlan), errors.Is(err, ErrNoPausedPlan):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toPlanResponse(p Plan) planResponse {
	times := p.ScheduleTimes
	if times == nil {
		times = []string{}
	}
	return planResponse{
		ID:            p.ID,
		MedicationID:  p.MedicationID,
		PetID:         p.PetID,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		ScheduleTimes: times,
		DoseText:      p.DoseText,
		Active:        p.Active,
		PausedAt:      p.PausedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toMedicationResponse(m Medication, plan *Plan) medicationResponse {
	out := medicationResponse{
		ID:        m.ID,
		PetID:     m.PetID,
		Name:      m.Name,
		Strength:  m.Strength,
		Notes:     m.Notes,
		Color:     m.Color,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if plan != nil {
		pr := toPlanResponse(*plan)
		out.Plan = &pr
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
