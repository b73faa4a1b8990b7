// Package registry keeps local aliases for backend model identifiers so a
// long id can be referred to by a short name in HF_MODEL_NAME or on the
// command line.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ModelManager provides high-level operations over the manifest store.
type ModelManager struct {
	store *Store
	now   func() time.Time
}

// NewModelManager creates a ModelManager and ensures the storage directories exist.
func NewModelManager(baseDir string) (*ModelManager, error) {
	store := NewStore(baseDir)
	if err := store.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create registry dirs: %w", err)
	}
	return &ModelManager{store: store, now: time.Now}, nil
}

// DefaultBaseDir returns the default base directory (~/.chatstream).
func DefaultBaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatstream")
}

// AddModel registers alias for modelID. backend and baseURL are optional and
// override the process settings when the alias is resolved.
func (m *ModelManager) AddModel(alias, modelID, backend, baseURL string) (*ModelManifest, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("model id must not be empty")
	}
	manifest := &ModelManifest{
		Name:    alias,
		ModelID: modelID,
		Backend: backend,
		BaseURL: baseURL,
		AddedAt: m.now().UTC(),
	}
	if err := m.store.SaveManifest(manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

// GetModel retrieves a model manifest by alias.
func (m *ModelManager) GetModel(alias string) (*ModelManifest, error) {
	return m.store.LoadManifest(alias)
}

// ListModels returns all registered model manifests.
func (m *ModelManager) ListModels() ([]ModelManifest, error) {
	return m.store.ListManifests()
}

// RemoveModel deletes an alias from the registry.
func (m *ModelManager) RemoveModel(alias string) error {
	return m.store.DeleteManifest(alias)
}

// Resolution is the outcome of ResolveModel. Backend and BaseURL are empty
// unless the alias sets them.
type Resolution struct {
	ModelID string
	Backend string
	BaseURL string
	Alias   string
}

// ResolveModel maps nameOrID through the registry. An identifier with no
// alias is returned unchanged.
func (m *ModelManager) ResolveModel(nameOrID string) (Resolution, error) {
	if validName(nameOrID) != nil {
		// ids such as "org/model" can never be aliases
		return Resolution{ModelID: nameOrID}, nil
	}
	manifest, err := m.store.LoadManifest(nameOrID)
	if errors.Is(err, ErrNotFound) {
		return Resolution{ModelID: nameOrID}, nil
	}
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		ModelID: manifest.ModelID,
		Backend: manifest.Backend,
		BaseURL: manifest.BaseURL,
		Alias:   manifest.Name,
	}, nil
}
