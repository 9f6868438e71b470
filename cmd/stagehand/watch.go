package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stagehand-dev/stagehand/pkg/logger"
	"github.com/stagehand-dev/stagehand/pkg/presenter"
	"github.com/stagehand-dev/stagehand/pkg/registry"
)

// WatchConfig holds configuration for the watch command.
type WatchConfig struct {
	DebounceTime int
	Quiet        bool
}

// NewWatchConfig creates a WatchConfig with default values.
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceTime: 500,
	}
}

// Validate validates the WatchConfig and returns an error if invalid.
func (c *WatchConfig) Validate() error {
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	return nil
}

// fileEvent is a definition-file change with the time it was observed.
type fileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch definition directories and resync on change",
	Long: `Continuously monitor the shared and project definition directories and
re-run an incremental registry sync whenever an agent or skill file changes.
Only markdown files inside marker directories trigger a resync.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		config := getWatchConfigFromFlags(cmd)
		presenter.SetQuiet(config.Quiet)

		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		runWatchMode(ctx, config)
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
	watchCmd.Flags().BoolP("quiet", "q", defaults.Quiet, "Only report sync failures")
	rootCmd.AddCommand(watchCmd)
}

func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()
	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}
	if quiet, err := cmd.Flags().GetBool("quiet"); err == nil {
		config.Quiet = quiet
	}
	return config
}

func runWatchMode(ctx context.Context, config *WatchConfig) {
	basePath := viper.GetString("base_path")

	builder, err := registry.NewBuilder(registry.WithBasePath(basePath))
	if err != nil {
		presenter.Error(err, "Failed to create registry builder")
		logger.G(ctx).WithError(err).Fatal("Failed to create registry builder")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		presenter.Error(err, "Failed to create file watcher")
		logger.G(ctx).WithError(err).Fatal("Failed to create file watcher")
	}
	defer watcher.Close()

	events := make(chan fileEvent)
	debouncedEvents := make(chan fileEvent)

	go debounceFileEvents(ctx, events, debouncedEvents, time.Duration(config.DebounceTime)*time.Millisecond)

	go func() {
		for {
			select {
			case event, ok := <-debouncedEvents:
				if !ok {
					return
				}
				presenter.Info(fmt.Sprintf("Change detected: %s (%s)", event.Path, event.Op))
				logger.G(ctx).WithFields(map[string]interface{}{
					"file":      event.Path,
					"operation": event.Op.String(),
					"timestamp": event.Time,
				}).Debug("Definition file changed")
				resync(ctx, builder)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isDefinitionFile(event.Name) {
					// New subdirectories (e.g. a fresh skill) need watching too.
					if event.Op&fsnotify.Create != 0 {
						if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
							_ = watcher.Add(event.Name)
						}
					}
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					events <- fileEvent{
						Path: event.Name,
						Op:   event.Op,
						Time: time.Now(),
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				presenter.Error(err, "File watcher error")
				logger.G(ctx).WithError(err).Error("Error watching definition files")
			case <-ctx.Done():
				return
			}
		}
	}()

	count, err := addDefinitionDirs(watcher, basePath)
	if err != nil {
		presenter.Error(err, "Failed to watch definition directories")
		logger.G(ctx).WithError(err).Fatal("Failed to watch definition directories")
	}
	if count == 0 {
		presenter.Warning("No marker directories found; waiting for one to appear")
	}

	// An initial sync picks up changes made while the watcher was down.
	resync(ctx, builder)

	presenter.Info("Watching for definition changes... Press Ctrl+C to stop")
	logger.G(ctx).WithField("directories_count", count).Info("Definition watcher initialized")

	<-ctx.Done()
}

// addDefinitionDirs registers the shared marker directory and every project
// marker directory, recursively, and returns how many were added.
func addDefinitionDirs(watcher *fsnotify.Watcher, basePath string) (int, error) {
	roots := []string{filepath.Join(basePath, ".stagehand")}

	entries, err := os.ReadDir(basePath)
	if err != nil {
		return 0, errors.Wrap(err, "enumerating projects")
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		roots = append(roots, filepath.Join(basePath, entry.Name(), ".stagehand"))
	}

	count := 0
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if err := watcher.Add(path); err != nil {
					return err
				}
				count++
			}
			return nil
		})
		if walkErr != nil {
			return count, errors.Wrapf(walkErr, "watching %s", root)
		}
	}
	return count, nil
}

func isDefinitionFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

func resync(ctx context.Context, builder *registry.Builder) {
	store, err := openStore(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open registry store")
		return
	}
	defer store.Close()

	existing, err := store.Load(ctx)
	if err != nil && !errors.Is(err, registry.ErrNotSynced) {
		presenter.Error(err, "Failed to load registry")
		return
	}

	updated, stats, warn := builder.Sync(ctx, existing)
	if warn != nil {
		presenter.Warning(fmt.Sprintf("Some definition files were skipped: %v", warn))
	}
	if err := store.Save(ctx, updated); err != nil {
		presenter.Error(err, "Failed to save registry")
		return
	}

	presenter.Info(fmt.Sprintf("Synced: %d unchanged, %d added, %d modified, %d removed",
		stats.Unchanged, stats.Added, stats.Modified, stats.Removed))
}

// debounceFileEvents coalesces rapid successive changes to the same file so a
// single save does not trigger several resyncs.
func debounceFileEvents(ctx context.Context, input <-chan fileEvent, output chan<- fileEvent, delay time.Duration) {
	pending := make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-input:
			if !ok {
				for _, timer := range pending {
					timer.Stop()
				}
				return
			}
			if timer, exists := pending[event.Path]; exists {
				timer.Stop()
				delete(pending, event.Path)
			}

			eventCopy := event
			pending[event.Path] = time.AfterFunc(delay, func() {
				select {
				case output <- eventCopy:
				case <-ctx.Done():
				}
			})
		case <-ctx.Done():
			for _, timer := range pending {
				timer.Stop()
			}
			return
		}
	}
}
