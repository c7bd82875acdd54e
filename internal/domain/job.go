package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Failure reasons attached to jobs that never reached the generation call or
// were interrupted by the operator.
const (
	ReasonCancelled = "cancelled"
	ReasonStopped   = "stopped"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next respects
// pending -> processing -> {completed, failed}. Pending jobs may fail directly
// when a batch is stopped before they start.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// GenerationParams carries the image settings sent with every request of a batch.
type GenerationParams struct {
	NegativeDescription string  `json:"negative_description,omitempty" yaml:"negative_description"`
	Width               int     `json:"width" yaml:"width"`
	Height              int     `json:"height" yaml:"height"`
	GuidanceScale       float64 `json:"text_guidance_scale" yaml:"text_guidance_scale"`
	NoBackground        bool    `json:"no_background" yaml:"no_background"`
	Outline             string  `json:"outline" yaml:"outline"`
	Shading             string  `json:"shading" yaml:"shading"`
	Detail              string  `json:"detail" yaml:"detail"`
}

// Defaults applied to params left at their zero value.
const (
	DefaultWidth         = 64
	DefaultHeight        = 64
	DefaultGuidanceScale = 8.0
	DefaultOutline       = "single color black outline"
	DefaultShading       = "basic shading"
	DefaultDetail        = "medium detail"
)

// WithDefaults fills zero-valued dimensions, guidance and style fields.
func (p GenerationParams) WithDefaults() GenerationParams {
	if p.Width <= 0 {
		p.Width = DefaultWidth
	}
	if p.Height <= 0 {
		p.Height = DefaultHeight
	}
	if p.GuidanceScale <= 0 {
		p.GuidanceScale = DefaultGuidanceScale
	}
	if p.Outline == "" {
		p.Outline = DefaultOutline
	}
	if p.Shading == "" {
		p.Shading = DefaultShading
	}
	if p.Detail == "" {
		p.Detail = DefaultDetail
	}
	return p
}

// Job is one scheduled unit of generation work with fully resolved parameters.
type Job struct {
	ID               string           `json:"id"`
	Prompt           ResolvedPrompt   `json:"prompt"`
	OriginalTemplate string           `json:"original_prompt"`
	Params           GenerationParams `json:"params"`
	Seed             int64            `json:"seed"`
	Status           JobStatus        `json:"status"`
	FailureReason    string           `json:"error,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// GenerationRequest is what a generation client receives for one job.
type GenerationRequest struct {
	JobID  string
	Prompt string
	Params GenerationParams
	Seed   int64
}

// Request derives the generation request for the job.
func (j Job) Request() GenerationRequest {
	return GenerationRequest{
		JobID:  j.ID,
		Prompt: j.Prompt.Text,
		Params: j.Params,
		Seed:   j.Seed,
	}
}

// GenerationResult holds the raw image returned by a generation client.
type GenerationResult struct {
	ImageBytes []byte
	MIME       string
}
