package scheduler

import (
	"strconv"
	"time"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/pngmeta"
)

// GeneratorName is embedded as the Generator field of every artifact.
const GeneratorName = "Pixflux Batch Generation v2.0"

// Provenance builds the metadata embedded into the image of a completed job.
func Provenance(job domain.Job, completedAt time.Time) pngmeta.Metadata {
	params := job.Params
	guidance := params.GuidanceScale
	if guidance <= 0 {
		guidance = domain.DefaultGuidanceScale
	}
	selections := job.Prompt.Selections
	if selections == nil {
		selections = []domain.Selection{}
	}
	return pngmeta.Metadata{
		Prompt:         job.Prompt.Text,
		OriginalPrompt: job.OriginalTemplate,
		NegativePrompt: params.NegativeDescription,
		Selections:     selections,
		Width:          strconv.Itoa(params.Width),
		Height:         strconv.Itoa(params.Height),
		Outline:        params.Outline,
		Shading:        params.Shading,
		Detail:         params.Detail,
		GuidanceScale:  strconv.FormatFloat(guidance, 'f', -1, 64),
		NoBackground:   strconv.FormatBool(params.NoBackground),
		Seed:           strconv.FormatInt(job.Seed, 10),
		Timestamp:      completedAt.UTC().Format(time.RFC3339),
		Settings:       Settings(job),
		Generator:      GeneratorName,
	}
}

// Settings is the full parameter set of a job as a JSON-ready object.
func Settings(job domain.Job) map[string]any {
	p := job.Params
	return map[string]any{
		"id":                   job.ID,
		"description":          job.Prompt.Text,
		"originalPrompt":       job.OriginalTemplate,
		"negative_description": p.NegativeDescription,
		"width":                p.Width,
		"height":               p.Height,
		"text_guidance_scale":  p.GuidanceScale,
		"no_background":        p.NoBackground,
		"outline":              p.Outline,
		"shading":              p.Shading,
		"detail":               p.Detail,
		"seed":                 job.Seed,
	}
}
