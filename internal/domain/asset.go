package domain

import "time"

// Artifact is the encoded image produced once per completed job together with
// the metadata that was embedded into it.
type Artifact struct {
	JobID        string         `json:"job_id"`
	ImageBytes   []byte         `json:"-"`
	MetadataUsed map[string]any `json:"metadata"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	StorageKey   string         `json:"storage_key,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
