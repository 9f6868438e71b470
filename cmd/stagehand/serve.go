package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/pkg/presenter"
	"github.com/stagehand-dev/stagehand/pkg/webapi"
)

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Host string
	Port int
}

// NewServeConfig creates a ServeConfig with default values.
func NewServeConfig() *ServeConfig {
	defaults := webapi.NewServerConfig()
	return &ServeConfig{
		Host: defaults.Host,
		Port: defaults.Port,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the registry pipeline over HTTP",
	Long: `Expose sync, match and sequence as an HTTP API for editor integrations
and workflow runtimes that prefer a long-lived process over repeated CLI
invocations.`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getServeConfigFromFlags(cmd)

		serverConfig := webapi.NewServerConfig()
		serverConfig.Host = config.Host
		serverConfig.Port = config.Port

		server, err := webapi.NewServer(serverConfig, storeConfigFromViper(), checkerFromViper())
		if err != nil {
			presenter.Error(err, "Failed to create server")
			os.Exit(1)
		}

		presenter.Info(fmt.Sprintf("Serving on http://%s:%d", config.Host, config.Port))
		if err := server.Start(cmd.Context()); err != nil {
			presenter.Error(err, "Server stopped")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host interface to bind to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()
	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	return config
}
