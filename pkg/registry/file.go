package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileRegistry reads instance entries from a YAML file. The file is re-read
// on every Snapshot call so routing always sees the registry's current state.
type FileRegistry struct {
	Path string
}

// NewFileRegistry creates a registry backed by the given YAML file.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{Path: path}
}

type registryFile struct {
	Instances []Entry `yaml:"instances"`
}

// Snapshot reads and parses the registry file.
func (r *FileRegistry) Snapshot(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", r.Path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", r.Path, err)
	}

	return file.Instances, nil
}
