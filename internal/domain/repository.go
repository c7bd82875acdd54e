package domain

import "context"

// JobRepository persists job status history.
type JobRepository interface {
	Upsert(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
}
