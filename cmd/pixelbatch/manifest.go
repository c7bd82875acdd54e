package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pixelbatch/internal/scheduler"
)

// Manifest describes one batch run. Unset fields fall back to the environment
// configuration.
type Manifest struct {
	scheduler.BatchRequest `yaml:",inline"`

	WildcardsDir string `yaml:"wildcards_dir"`
	DelayMS      *int   `yaml:"delay_ms"`
	APIKey       string `yaml:"api_key"`
}

func loadManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return parseManifest(raw)
}

func parseManifest(raw []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Count == 0 {
		m.Count = 1
	}
	if m.DelayMS != nil && *m.DelayMS < 0 {
		return Manifest{}, fmt.Errorf("manifest: delay_ms must not be negative")
	}
	return m, nil
}
