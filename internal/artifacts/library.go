// Package artifacts keeps the gallery of completed images and exports it.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/infra"
	"pixelbatch/pkg/zip"
)

const (
	// ExportFolder is the directory inside every exported archive.
	ExportFolder = "pixelart-batch"
	keyPrefix    = "artifacts/"
	fileStamp    = "2006-01-02T15-04-05"
)

type objectWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Library holds artifacts newest-first. When a store is configured every
// artifact is also written to it.
type Library struct {
	mu     sync.RWMutex
	items  []domain.Artifact
	store  objectWriter
	logger *infra.Logger
}

// NewLibrary constructs a Library; store may be nil.
func NewLibrary(store objectWriter, logger *infra.Logger) *Library {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Library{store: store, logger: logger}
}

// Add records a completed artifact.
func (l *Library) Add(ctx context.Context, artifact domain.Artifact) error {
	if artifact.JobID == "" {
		return domain.NewValidationError("job_id", "artifact has no job id")
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	var persistErr error
	if l.store != nil {
		key, err := l.store.Write(ctx, keyPrefix+artifact.JobID+".png", artifact.ImageBytes)
		if err != nil {
			persistErr = fmt.Errorf("artifacts: persist %s: %w", artifact.JobID, err)
		} else {
			artifact.StorageKey = key
		}
	}

	l.mu.Lock()
	l.items = append([]domain.Artifact{artifact}, l.items...)
	total := len(l.items)
	l.mu.Unlock()

	l.logger.Debug().Str("job_id", artifact.JobID).Int("total", total).Msg("artifacts: added")
	return persistErr
}

// List returns the artifacts newest-first.
func (l *Library) List() []domain.Artifact {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.Artifact(nil), l.items...)
}

// Get returns the artifact produced by the given job.
func (l *Library) Get(jobID string) (domain.Artifact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if item.JobID == jobID {
			return item, nil
		}
	}
	return domain.Artifact{}, fmt.Errorf("artifacts: %s: %w", jobID, domain.ErrNotFound)
}

// Clear drops the in-memory gallery. Persisted files are kept.
func (l *Library) Clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
}

type indexEntry struct {
	Index          int                `json:"index"`
	Prompt         any                `json:"prompt"`
	OriginalPrompt any                `json:"originalPrompt"`
	Selections     []domain.Selection `json:"selections"`
	Width          int                `json:"width"`
	Height         int                `json:"height"`
	Timestamp      any                `json:"timestamp"`
	Settings       any                `json:"settings"`
}

// ErrEmpty is returned when exporting an empty gallery.
var ErrEmpty = errors.New("artifacts: no images to export")

// Export builds a zip holding every artifact plus a metadata.json index, in
// gallery order.
func (l *Library) Export() ([]byte, error) {
	items := l.List()
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	entries := make([]zip.Entry, 0, len(items)+1)
	index := make([]indexEntry, 0, len(items))
	for i, item := range items {
		entries = append(entries, zip.Entry{
			Name:     ExportFolder + "/" + Filename(item, i+1),
			Data:     item.ImageBytes,
			Modified: item.CreatedAt,
		})
		md := item.MetadataUsed
		selections, _ := md["selections"].([]domain.Selection)
		if selections == nil {
			selections = []domain.Selection{}
		}
		index = append(index, indexEntry{
			Index:          i + 1,
			Prompt:         md["prompt"],
			OriginalPrompt: md["originalPrompt"],
			Selections:     selections,
			Width:          item.Width,
			Height:         item.Height,
			Timestamp:      md["timestamp"],
			Settings:       md["settings"],
		})
	}
	raw, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("artifacts: encode index: %w", err)
	}
	entries = append(entries, zip.Entry{Name: ExportFolder + "/metadata.json", Data: raw, Modified: time.Now().UTC()})
	return zip.Archive(entries)
}

// Filename is the archive name of an artifact at 1-based position i.
func Filename(a domain.Artifact, i int) string {
	return fmt.Sprintf("pixelart-%dx%d-%s-%d.png", a.Width, a.Height, a.CreatedAt.UTC().Format(fileStamp), i)
}

// ArchiveName is the suggested download name of an export made at t.
func ArchiveName(t time.Time) string {
	return "pixelart-batch-" + t.UTC().Format("2006-01-02") + ".zip"
}
