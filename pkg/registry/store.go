package registry

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/stagehand-dev/stagehand/pkg/types/catalog"
)

// ErrNotSynced is returned when the catalog store has never been written.
// Callers that require a prior sync (the matcher) treat it as fatal and
// direct the user to sync first.
var ErrNotSynced = errors.New("registry not found: run 'stagehand sync' first")

// Store defines the interface for catalog persistence. Implementations must
// leave entries untouched by a partial update byte-equivalent on disk.
type Store interface {
	// Load reads the persisted catalog. It returns ErrNotSynced when no
	// catalog has ever been saved.
	Load(ctx context.Context) (*catalog.Catalog, error)
	// Save persists the catalog snapshot atomically.
	Save(ctx context.Context, cat *catalog.Catalog) error
	// Close releases any resources held by the store.
	Close() error
}

// StoreConfig selects and locates a catalog store backend.
type StoreConfig struct {
	Backend  string // "json" or "sqlite"
	BasePath string // scope root; the store file lives under <BasePath>/.stagehand
}

// NewStoreConfig returns the default store configuration: a JSON snapshot
// under the current directory's marker dir.
func NewStoreConfig() *StoreConfig {
	return &StoreConfig{
		Backend:  "json",
		BasePath: ".",
	}
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "json", "sqlite", "":
	default:
		return errors.Errorf("unknown registry backend %q (expected json or sqlite)", c.Backend)
	}
	if c.BasePath == "" {
		return errors.New("registry base path must not be empty")
	}
	return nil
}

func (c *StoreConfig) storeDir() string {
	return filepath.Join(c.BasePath, markerDir)
}
