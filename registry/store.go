package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no manifest exists for an alias.
var ErrNotFound = errors.New("model alias not found")

const manifestExt = ".yaml"

// Store manages on-disk storage for model manifests.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// ManifestsDir returns the directory where model manifests are stored.
func (s *Store) ManifestsDir() string { return filepath.Join(s.baseDir, "models", "manifests") }

// EnsureDirs creates the manifests directory if it does not exist.
func (s *Store) EnsureDirs() error {
	return os.MkdirAll(s.ManifestsDir(), 0o755)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.ManifestsDir(), name+manifestExt)
}

// SaveManifest writes a model manifest to disk as YAML.
func (s *Store) SaveManifest(m *ModelManifest) error {
	if err := validName(m.Name); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest %s: %w", m.Name, err)
	}
	return os.WriteFile(s.path(m.Name), data, 0o644)
}

// LoadManifest reads a model manifest from disk by alias.
func (s *Store) LoadManifest(name string) (*ModelManifest, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	var m ModelManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", name, err)
	}
	return &m, nil
}

// ListManifests returns every readable manifest, sorted by alias.
func (s *Store) ListManifests() ([]ModelManifest, error) {
	entries, err := os.ReadDir(s.ManifestsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var manifests []ModelManifest
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != manifestExt {
			continue
		}
		m, err := s.LoadManifest(strings.TrimSuffix(e.Name(), manifestExt))
		if err != nil {
			continue
		}
		manifests = append(manifests, *m)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Name < manifests[j].Name })
	return manifests, nil
}

// DeleteManifest removes a model manifest from disk.
func (s *Store) DeleteManifest(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	return nil
}
