package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"pixelbatch/internal/artifacts"
	"pixelbatch/internal/domain"
	"pixelbatch/internal/infra"
	"pixelbatch/internal/resolver"
	"pixelbatch/internal/scheduler"
	"pixelbatch/internal/wildcard"
)

const maxJSONBody = 1 << 20

// HistoryReader is the read side of the optional job-history store.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]domain.Job, error)
	GetByID(ctx context.Context, id string) (*domain.Job, error)
}

type App struct {
	Config    *infra.Config
	Logger    *infra.Logger
	Wildcards *wildcard.Store
	Scheduler *scheduler.Scheduler
	Builder   scheduler.Builder
	Artifacts *artifacts.Library
	// History is nil when no database is configured.
	History HistoryReader
	// RunCtx bounds batches started over HTTP. Runs outlive the request that
	// started them and end when RunCtx is cancelled.
	RunCtx context.Context
	Random resolver.Source
}

func (a *App) runContext() context.Context {
	if a.RunCtx != nil {
		return a.RunCtx
	}
	return context.Background()
}

func (a *App) logger() *infra.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	l := infra.Logger(zerolog.Nop())
	return &l
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": message, "code": code})
}

// fail maps a domain error onto an HTTP status and writes it.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		a.error(w, http.StatusBadRequest, "validation", vErr.Message)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrAlreadyRunning):
		a.error(w, http.StatusConflict, "already_running", "a batch is already running")
	case errors.Is(err, artifacts.ErrEmpty):
		a.error(w, http.StatusNotFound, "empty", "no images to export")
	default:
		a.logger().Error().Err(err).Str("path", r.URL.Path).Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			a.error(w, http.StatusBadRequest, "invalid_json", "request body is required")
			return false
		}
		a.error(w, http.StatusBadRequest, "invalid_json", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}
