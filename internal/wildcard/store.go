// Package wildcard stores named option lists as one text file per list, plus a
// JSON file naming the lists that are auto-appended to every prompt.
package wildcard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pixelbatch/internal/domain"
	"pixelbatch/internal/infra"
	"pixelbatch/internal/storage"
)

const (
	listSuffix = ".txt"
	activeKey  = "_active.json"
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9_]`)

// SanitizeName lowercases name and replaces characters outside [a-z0-9_]
// with an underscore.
func SanitizeName(name string) string {
	lower := cases.Lower(language.Und).String(name)
	return unsafeNameChars.ReplaceAllString(lower, "_")
}

type objectStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, suffix string) ([]string, error)
	Remove(ctx context.Context, key string) error
	Rename(ctx context.Context, oldKey, newKey string) error
}

// Store is the file-backed wildcard store.
type Store struct {
	mu      sync.Mutex
	objects objectStore
	logger  *infra.Logger
}

// NewStore wraps an object store. A nil logger discards output.
func NewStore(objects objectStore, logger *infra.Logger) *Store {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Store{objects: objects, logger: logger}
}

// SeedDefaults writes DefaultLists when the store holds no lists yet.
func (s *Store) SeedDefaults(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, err := s.objects.List(ctx, "")
	if err != nil {
		return fmt.Errorf("wildcard: list: %w", err)
	}
	if len(keys) > 0 {
		s.logger.Info().Int("files", len(keys)).Msg("wildcard: found existing wildcards")
		return nil
	}
	names := make([]string, 0, len(DefaultLists))
	for name := range DefaultLists {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		content := strings.Join(DefaultLists[name], "\n")
		if _, err := s.objects.Write(ctx, name+listSuffix, []byte(content)); err != nil {
			return fmt.Errorf("wildcard: seed %s: %w", name, err)
		}
		s.logger.Info().Str("name", name).Msg("wildcard: created default wildcard")
	}
	return nil
}

// GetAll returns every list keyed by name with its raw content.
func (s *Store) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll(ctx)
}

func (s *Store) readAll(ctx context.Context) (map[string]string, error) {
	keys, err := s.objects.List(ctx, listSuffix)
	if err != nil {
		return nil, fmt.Errorf("wildcard: list: %w", err)
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		data, err := s.objects.Read(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("wildcard: read %s: %w", key, err)
		}
		out[strings.TrimSuffix(key, listSuffix)] = string(data)
	}
	return out, nil
}

// GetActive returns the active names. When no active set was ever saved,
// every stored list is considered active.
func (s *Store) GetActive(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.objects.Read(ctx, activeKey)
	if err == nil {
		var active []string
		if jsonErr := json.Unmarshal(data, &active); jsonErr == nil {
			if active == nil {
				active = []string{}
			}
			return active, nil
		}
		s.logger.Warn().Msg("wildcard: active file unreadable, falling back to all wildcards")
	} else if !errors.Is(err, storage.ErrNotExist) {
		return nil, fmt.Errorf("wildcard: read active: %w", err)
	}
	keys, err := s.objects.List(ctx, listSuffix)
	if err != nil {
		return nil, fmt.Errorf("wildcard: list: %w", err)
	}
	active := make([]string, 0, len(keys))
	for _, key := range keys {
		active = append(active, strings.TrimSuffix(key, listSuffix))
	}
	return active, nil
}

// SetActive replaces the active set.
func (s *Store) SetActive(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if names == nil {
		names = []string{}
	}
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("wildcard: encode active: %w", err)
	}
	if _, err := s.objects.Write(ctx, activeKey, data); err != nil {
		return fmt.Errorf("wildcard: write active: %w", err)
	}
	return nil
}

// Save creates or replaces a list and returns the sanitized name it was
// stored under.
func (s *Store) Save(ctx context.Context, name, content string) (string, error) {
	if strings.TrimSpace(name) == "" || content == "" {
		return "", domain.NewValidationError("wildcard", "Name and content are required")
	}
	safe := SanitizeName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.objects.Write(ctx, safe+listSuffix, []byte(content)); err != nil {
		return "", fmt.Errorf("wildcard: save %s: %w", safe, err)
	}
	return safe, nil
}

// Delete removes a list.
func (s *Store) Delete(ctx context.Context, name string) error {
	safe := SanitizeName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.objects.Remove(ctx, safe+listSuffix); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return fmt.Errorf("wildcard %q: %w", safe, domain.ErrNotFound)
		}
		return fmt.Errorf("wildcard: delete %s: %w", safe, err)
	}
	return nil
}

// Rename moves a list to a new sanitized name and returns that name.
func (s *Store) Rename(ctx context.Context, oldName, newName string) (string, error) {
	if strings.TrimSpace(newName) == "" {
		return "", domain.NewValidationError("newName", "New name is required")
	}
	oldSafe := SanitizeName(oldName)
	newSafe := SanitizeName(newName)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.objects.Rename(ctx, oldSafe+listSuffix, newSafe+listSuffix); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return "", fmt.Errorf("wildcard %q: %w", oldSafe, domain.ErrNotFound)
		}
		return "", fmt.Errorf("wildcard: rename %s: %w", oldSafe, err)
	}
	return newSafe, nil
}

// Snapshot is the pair of inputs the prompt resolver consumes.
type Snapshot struct {
	Lists  map[string]string
	Active []string
}

// Snapshot reads all lists and the active set in one call.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	lists, err := s.GetAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	active, err := s.GetActive(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Lists: lists, Active: active}, nil
}
