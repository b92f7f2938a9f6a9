package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"janus/api/model"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) GetHealthHistory(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	checks, err := h.db.ListHealthChecks(r.Context(), appID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if checks == nil {
		checks = []model.HealthCheck{}
	}
	writeJSON(w, checks)
}
