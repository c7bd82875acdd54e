package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *App) ListWildcards(w http.ResponseWriter, r *http.Request) {
	lists, err := a.Wildcards.GetAll(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"wildcards": lists})
}

func (a *App) GetActiveWildcards(w http.ResponseWriter, r *http.Request) {
	active, err := a.Wildcards.GetActive(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"active": active})
}

type setActiveRequest struct {
	Active []string `json:"active"`
}

func (a *App) SetActiveWildcards(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		req.Active = []string{}
	}
	if err := a.Wildcards.SetActive(r.Context(), req.Active); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "active": req.Active})
}

type saveWildcardRequest struct {
	Content string `json:"content"`
}

func (a *App) SaveWildcard(w http.ResponseWriter, r *http.Request) {
	var req saveWildcardRequest
	if !a.decode(w, r, &req) {
		return
	}
	name, err := a.Wildcards.Save(r.Context(), chi.URLParam(r, "name"), req.Content)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "name": name})
}

func (a *App) DeleteWildcard(w http.ResponseWriter, r *http.Request) {
	if err := a.Wildcards.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true})
}

type renameWildcardRequest struct {
	NewName string `json:"newName"`
}

func (a *App) RenameWildcard(w http.ResponseWriter, r *http.Request) {
	var req renameWildcardRequest
	if !a.decode(w, r, &req) {
		return
	}
	name, err := a.Wildcards.Rename(r.Context(), chi.URLParam(r, "name"), req.NewName)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "name": name})
}

func (a *App) ExportWildcards(w http.ResponseWriter, r *http.Request) {
	lists, err := a.Wildcards.GetAll(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"wildcards": lists, "count": len(lists)})
}
