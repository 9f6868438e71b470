package registry

import (
	"context"

	"github.com/pkg/errors"
)

// NewStore creates the catalog store implementation selected by the
// configuration. The JSON snapshot store is the default.
func NewStore(ctx context.Context, config *StoreConfig) (Store, error) {
	if config == nil {
		config = NewStoreConfig()
	}

	switch config.Backend {
	case "sqlite":
		store, err := NewSQLiteStore(ctx, config)
		return store, errors.Wrap(err, "failed to create sqlite registry store")
	case "json", "":
		store, err := NewJSONStore(config)
		return store, errors.Wrap(err, "failed to create json registry store")
	default:
		return nil, errors.Errorf("unknown registry backend %q", config.Backend)
	}
}
