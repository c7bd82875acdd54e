package scheduler

import (
	"strings"

	"github.com/google/uuid"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/resolver"
)

// maxRandomSeed bounds seeds drawn when no base seed is given.
const maxRandomSeed = 1000000

// BatchRequest asks for Count independent resolutions of one template.
type BatchRequest struct {
	Template string `json:"description" yaml:"description"`
	Count    int    `json:"count" yaml:"count"`
	// Seed is the base seed; job i receives Seed+i.
	Seed                    *int64 `json:"seed,omitempty" yaml:"seed"`
	domain.GenerationParams `yaml:",inline"`
}

// Builder turns batch requests into jobs.
type Builder struct {
	// MaxBatchSize caps Count; zero disables the cap.
	MaxBatchSize int
	// NewID defaults to uuid.NewString.
	NewID func() string
}

// Build resolves the template Count times, each with its own random draws,
// against the given wildcard lists and active names.
func (b Builder) Build(req BatchRequest, wildcards map[string]string, active []string, rng resolver.Source) ([]domain.Job, error) {
	if req.Count < 1 {
		return nil, domain.NewValidationError("count", "must be at least 1")
	}
	if b.MaxBatchSize > 0 && req.Count > b.MaxBatchSize {
		return nil, domain.NewValidationError("count", "exceeds the maximum batch size")
	}
	if strings.TrimSpace(req.Template) == "" && len(active) == 0 {
		return nil, domain.NewValidationError("description", "a prompt or at least one active wildcard is required")
	}
	if rng == nil {
		rng = resolver.DefaultSource()
	}
	newID := b.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	params := req.GenerationParams.WithDefaults()

	jobs := make([]domain.Job, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		prompt := resolver.Resolve(req.Template, wildcards, active, rng)
		var seed int64
		if req.Seed != nil {
			seed = *req.Seed + int64(i)
		} else {
			seed = int64(rng.Intn(maxRandomSeed))
		}
		jobs = append(jobs, domain.Job{
			ID:               newID(),
			Prompt:           prompt,
			OriginalTemplate: req.Template,
			Params:           params,
			Seed:             seed,
			Status:           domain.JobStatusPending,
		})
	}
	return jobs, nil
}
