package misseddose

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const tokenHeader = "X-Job-Token"

// RegisterRoutes expone el sweep para un scheduler externo (cron, Cloud Scheduler...).
// Sin token configurado la ruta no se registra.
func RegisterRoutes(r chi.Router, job *Job, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	r.Post("/internal/jobs/missed-doses", triggerHandler(job, token))
}

// triggerHandler godoc
// @Summary Ejecutar sweep de dosis omitidas
// @Description Evalúa todas las mascotas con alertas activas y envía como mucho un aviso por plan y día.
// @Tags jobs
// @Produce json
// @Param X-Job-Token header string true "Token del disparador"
// @Success 200 {object} Report
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "sweep failed"
// @Router /internal/jobs/missed-doses [post]
func triggerHandler(job *Job, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(tokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rep, err := job.Run(r.Context())
		if err != nil {
			http.Error(w, "sweep failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(rep)
	}
}
