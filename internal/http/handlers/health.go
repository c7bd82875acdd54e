package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	dir := ""
	if a.Config != nil {
		dir = a.Config.WildcardsDir
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "wildcards_dir": dir})
}
