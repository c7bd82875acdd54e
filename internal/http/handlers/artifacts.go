package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pixelbatch/internal/artifacts"
	"pixelbatch/internal/domain"
)

func (a *App) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	items := a.Artifacts.List()
	if items == nil {
		items = []domain.Artifact{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (a *App) GetArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, err := a.Artifacts.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.ImageBytes)))
	w.Header().Set("Content-Disposition", `inline; filename="`+artifacts.Filename(artifact, 1)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.ImageBytes)
}

func (a *App) ExportArtifacts(w http.ResponseWriter, r *http.Request) {
	archive, err := a.Artifacts.Export()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifacts.ArchiveName(time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) ClearArtifacts(w http.ResponseWriter, r *http.Request) {
	a.Artifacts.Clear()
	a.json(w, http.StatusOK, map[string]any{"success": true})
}
