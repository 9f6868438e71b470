package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

const registryFileName = "registry.json"

// JSONStore persists the catalog as a single indented JSON snapshot.
// Map keys marshal sorted, so entries carried forward verbatim by an
// incremental sync serialize byte-equivalent to the prior snapshot.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON catalog store under the configured marker
// directory.
func NewJSONStore(config *StoreConfig) (*JSONStore, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid store configuration")
	}
	return &JSONStore{path: filepath.Join(config.storeDir(), registryFileName)}, nil
}

// Load reads the catalog snapshot.
func (s *JSONStore) Load(_ context.Context) (*catalog.Catalog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotSynced
		}
		return nil, errors.Wrap(err, "failed to read registry file")
	}

	var cat catalog.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal registry file")
	}

	if cat.Shared == nil {
		cat.Shared = catalog.NewScope("")
	}
	if cat.Projects == nil {
		cat.Projects = make(map[string]*catalog.Scope)
	}

	return &cat, nil
}

// Save writes the catalog snapshot atomically via a temp-file rename.
func (s *JSONStore) Save(_ context.Context, cat *catalog.Catalog) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create registry directory")
	}

	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal catalog")
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write temporary registry file")
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename temporary registry file")
	}

	return nil
}

// Close is a no-op for the JSON store.
func (s *JSONStore) Close() error {
	return nil
}
