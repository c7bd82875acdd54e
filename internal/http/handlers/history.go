package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pixelbatch/internal/domain"
)

func (a *App) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := a.History.Recent(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": jobs})
}

func (a *App) GetHistoryJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.History.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}
