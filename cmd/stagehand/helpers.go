package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/stagehand-dev/stagehand/pkg/docstate"
	"github.com/stagehand-dev/stagehand/pkg/registry"
)

// storeConfigFromViper builds the catalog store configuration from the
// resolved configuration.
func storeConfigFromViper() *registry.StoreConfig {
	config := registry.NewStoreConfig()
	if basePath := viper.GetString("base_path"); basePath != "" {
		config.BasePath = basePath
	}
	if backend := viper.GetString("registry.backend"); backend != "" {
		config.Backend = backend
	}
	return config
}

// checkerFromViper builds the document-state checker from the resolved
// configuration.
func checkerFromViper() docstate.Checker {
	config := docstate.NewConfig()
	if command := viper.GetString("docs.command"); command != "" {
		config.Command = command
	}
	if endpoint := viper.GetString("docs.endpoint"); endpoint != "" {
		config.Endpoint = endpoint
	}
	if timeout := viper.GetDuration("docs.timeout"); timeout > 0 {
		config.Timeout = timeout
	}
	return docstate.NewChecker(config)
}

// openStore opens the configured catalog store.
func openStore(ctx context.Context) (registry.Store, error) {
	return registry.NewStore(ctx, storeConfigFromViper())
}

// readStdinIfPiped returns piped stdin content, or "" when stdin is a
// terminal.
func readStdinIfPiped() string {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return ""
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return string(data)
}
