package registry

import (
	"fmt"
	"strings"
	"time"
)

// ModelManifest maps a local alias onto a backend model identifier.
type ModelManifest struct {
	Name    string    `yaml:"name"`
	ModelID string    `yaml:"model_id"`
	Backend string    `yaml:"backend,omitempty"`
	BaseURL string    `yaml:"base_url,omitempty"`
	AddedAt time.Time `yaml:"added_at"`
}

// validName rejects aliases that would escape the manifests directory.
func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid model alias %q", name)
	}
	return nil
}
