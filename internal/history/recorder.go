// Package history mirrors scheduler job transitions into PostgreSQL.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/infra"
	"pixelbatch/internal/sqlinline"
)

const defaultRecentLimit = 50

// Recorder persists job rows. It implements domain.JobRepository and the
// scheduler observer contract.
type Recorder struct {
	exec   infra.SQLExecutor
	logger *infra.Logger
}

// NewRecorder wraps an executor, usually an *infra.SQLRunner.
func NewRecorder(exec infra.SQLExecutor, logger *infra.Logger) *Recorder {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Recorder{exec: exec, logger: logger}
}

// EnsureSchema creates the history table when missing.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.exec.Exec(ctx, sqlinline.QJobHistoryEnsureTable); err != nil {
		return fmt.Errorf("history: ensure schema: %w", err)
	}
	return nil
}

// JobUpdated records the latest state of job.
func (r *Recorder) JobUpdated(ctx context.Context, job domain.Job) error {
	return r.Upsert(ctx, job)
}

// Upsert inserts the job or updates its status, reason and timestamp.
func (r *Recorder) Upsert(ctx context.Context, job domain.Job) error {
	selections := job.Prompt.Selections
	if selections == nil {
		selections = []domain.Selection{}
	}
	selectionsJSON, err := json.Marshal(selections)
	if err != nil {
		return fmt.Errorf("history: encode selections: %w", err)
	}
	paramsJSON, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("history: encode params: %w", err)
	}
	_, err = r.exec.Exec(ctx, sqlinline.QJobHistoryUpsert,
		job.ID,
		job.Prompt.Text,
		job.OriginalTemplate,
		selectionsJSON,
		paramsJSON,
		job.Seed,
		string(job.Status),
		job.FailureReason,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: upsert %s: %w", job.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (domain.Job, error) {
	var (
		job            domain.Job
		status         string
		selectionsJSON []byte
		paramsJSON     []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Prompt.Text,
		&job.OriginalTemplate,
		&selectionsJSON,
		&paramsJSON,
		&job.Seed,
		&status,
		&job.FailureReason,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return domain.Job{}, err
	}
	job.Status = domain.JobStatus(status)
	job.Prompt.Selections = []domain.Selection{}
	if len(selectionsJSON) > 0 {
		if err := json.Unmarshal(selectionsJSON, &job.Prompt.Selections); err != nil {
			return domain.Job{}, fmt.Errorf("history: decode selections: %w", err)
		}
	}
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &job.Params); err != nil {
			return domain.Job{}, fmt.Errorf("history: decode params: %w", err)
		}
	}
	return job, nil
}

// GetByID fetches one recorded job.
func (r *Recorder) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(r.exec.QueryRow(ctx, sqlinline.QJobHistoryGet, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("history: job %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("history: get %s: %w", id, err)
	}
	return &job, nil
}

// Recent lists the newest recorded jobs.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := r.exec.Query(ctx, sqlinline.QJobHistoryRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()
	jobs := make([]domain.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list rows: %w", err)
	}
	return jobs, nil
}

var _ domain.JobRepository = (*Recorder)(nil)
