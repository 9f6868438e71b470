package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stagehand-dev/stagehand/pkg/presenter"
	"github.com/stagehand-dev/stagehand/pkg/registry"
)

// SyncConfig holds configuration for the sync command.
type SyncConfig struct {
	JSONOutput bool
}

// NewSyncConfig creates a SyncConfig with default values.
func NewSyncConfig() *SyncConfig {
	return &SyncConfig{}
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scan definition files and update the registry",
	Long: `Scan the shared scope and every detected project scope for agent and
skill definitions and incrementally update the persisted registry. Entries
whose source files are unchanged are carried forward untouched; unreadable
files are skipped with a warning and never abort the sync.`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getSyncConfigFromFlags(cmd)
		ctx := cmd.Context()

		basePath := viper.GetString("base_path")
		builder, err := registry.NewBuilder(registry.WithBasePath(basePath))
		if err != nil {
			presenter.Error(err, "Failed to create registry builder")
			os.Exit(1)
		}

		store, err := openStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open registry store")
			os.Exit(1)
		}
		defer store.Close()

		existing, err := store.Load(ctx)
		if err != nil && !errors.Is(err, registry.ErrNotSynced) {
			presenter.Error(err, "Failed to load registry")
			os.Exit(1)
		}

		updated, stats, warn := builder.Sync(ctx, existing)
		if warn != nil {
			presenter.Warning(fmt.Sprintf("Some definition files were skipped: %v", warn))
		}

		if err := store.Save(ctx, updated); err != nil {
			presenter.Error(err, "Failed to save registry")
			os.Exit(1)
		}

		if config.JSONOutput {
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				presenter.Error(err, "Failed to format sync stats")
				os.Exit(1)
			}
			fmt.Println(string(out))
			return
		}

		presenter.Info("Registry sync complete:")
		presenter.Info(fmt.Sprintf("  %3d unchanged (skipped)", stats.Unchanged))
		presenter.Info(fmt.Sprintf("  + %3d added", stats.Added))
		presenter.Info(fmt.Sprintf("  ~ %3d modified", stats.Modified))
		presenter.Info(fmt.Sprintf("  - %3d removed", stats.Removed))
	},
}

func init() {
	defaults := NewSyncConfig()
	syncCmd.Flags().Bool("json", defaults.JSONOutput, "Output sync stats as JSON")
	rootCmd.AddCommand(syncCmd)
}

func getSyncConfigFromFlags(cmd *cobra.Command) *SyncConfig {
	config := NewSyncConfig()
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}
	return config
}
