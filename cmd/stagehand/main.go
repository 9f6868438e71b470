// Command stagehand catalogs agent and skill definitions, matches free-text
// work requirements against the catalog, and builds tier-ordered execution
// plans for an external workflow runtime.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stagehand-dev/stagehand/pkg/logger"
	"github.com/stagehand-dev/stagehand/pkg/presenter"
)

func init() {
	viper.SetEnvPrefix("STAGEHAND")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.stagehand")
	viper.AddConfigPath(".")

	// Load config file if it exists; absence is fine.
	_ = viper.ReadInConfig()

	viper.SetDefault("base_path", ".")
	viper.SetDefault("registry.backend", "json")
	viper.SetDefault("docs.command", "pdocs")
}

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Catalog agents and skills, match requirements, and plan execution",
	Long: `Stagehand maintains a registry of agent and skill definitions, matches
free-text work requirements against it, and produces validated, tier-ordered
execution plans with parallel/sequential grouping. It plans workflows; it
never runs them.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if level := viper.GetString("log_level"); level != "" {
			if err := logger.SetLogLevel(level); err != nil {
				presenter.Warning("Invalid log level " + level + ", using default")
			}
		}
		logger.SetLogFormat(viper.GetString("log_format"))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")
	rootCmd.PersistentFlags().String("base-path", ".", "Base directory scanned for shared and project scopes")
	rootCmd.PersistentFlags().String("registry-backend", "json", "Registry store backend (json, sqlite)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("base_path", rootCmd.PersistentFlags().Lookup("base-path"))
	viper.BindPFlag("registry.backend", rootCmd.PersistentFlags().Lookup("registry-backend"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
