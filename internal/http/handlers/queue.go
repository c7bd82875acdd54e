package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/scheduler"
)

type queueResponse struct {
	Mode      scheduler.Mode `json:"mode"`
	Processed int            `json:"processed"`
	Jobs      []domain.Job   `json:"jobs"`
}

func (a *App) queueState() queueResponse {
	jobs := a.Scheduler.Jobs()
	if jobs == nil {
		jobs = []domain.Job{}
	}
	return queueResponse{Mode: a.Scheduler.Mode(), Processed: a.Scheduler.Processed(), Jobs: jobs}
}

// buildJobs resolves a batch request against the current wildcard snapshot.
func (a *App) buildJobs(w http.ResponseWriter, r *http.Request) ([]domain.Job, bool) {
	var req scheduler.BatchRequest
	if !a.decode(w, r, &req) {
		return nil, false
	}
	snap, err := a.Wildcards.Snapshot(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	jobs, err := a.Builder.Build(req, snap.Lists, snap.Active, a.Random)
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return jobs, true
}

// CreateBatch replaces the queue with a new batch and starts it.
func (a *App) CreateBatch(w http.ResponseWriter, r *http.Request) {
	jobs, ok := a.buildJobs(w, r)
	if !ok {
		return
	}
	if _, err := a.Scheduler.Generate(a.runContext(), jobs); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger().Info().Int("batch_size", len(jobs)).Msg("http: batch started")
	a.json(w, http.StatusAccepted, a.queueState())
}

// EnqueueJobs adds a batch to the live queue without starting it.
func (a *App) EnqueueJobs(w http.ResponseWriter, r *http.Request) {
	jobs, ok := a.buildJobs(w, r)
	if !ok {
		return
	}
	added := a.Scheduler.Enqueue(context.WithoutCancel(r.Context()), jobs)
	if added == nil {
		added = []domain.Job{}
	}
	a.json(w, http.StatusCreated, map[string]any{"jobs": added})
}

func (a *App) GetQueue(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.queueState())
}

func (a *App) GetQueueJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.Scheduler.Job(chi.URLParam(r, "id"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, job)
}

// StartQueue runs every pending job in the live queue.
func (a *App) StartQueue(w http.ResponseWriter, r *http.Request) {
	if _, err := a.Scheduler.Begin(a.runContext(), nil); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, a.queueState())
}

func (a *App) StopQueue(w http.ResponseWriter, r *http.Request) {
	a.Scheduler.Stop(context.WithoutCancel(r.Context()))
	a.json(w, http.StatusOK, a.queueState())
}

func (a *App) ClearQueue(w http.ResponseWriter, r *http.Request) {
	a.Scheduler.Clear(context.WithoutCancel(r.Context()))
	a.json(w, http.StatusOK, map[string]any{"success": true})
}

func (a *App) RemoveQueueJob(w http.ResponseWriter, r *http.Request) {
	if err := a.Scheduler.Remove(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true})
}
