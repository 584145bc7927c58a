package main

import (
	"fmt"
	"os"

	"github.com/mambaweb/mamba/bootstrap"
	"github.com/mambaweb/mamba/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the mamba HTTP server.

The server will:
  - Load configuration from mamba.yaml (or --config)
  - Or load configuration from MAMBA_* environment variables
  - Load controllers and models from the module directories
  - Reload modules when their files change (reload_enabled)
  - Record module lifecycle events in the journal (database.dsn)

Environment variables (for Docker deployments):
  MAMBA_CONTROLLERS_DIR   - Controller directory (default: application/controller)
  MAMBA_MODELS_DIR        - Model directory (default: application/model)
  MAMBA_RELOAD_ENABLED    - Reload modules on change
  MAMBA_SERVER_PORT       - Server port (default: 1936)
  MAMBA_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  mamba serve
  mamba serve --config /etc/mamba/mamba.yaml
  mamba serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload configuration on file change or SIGHUP")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	opts := bootstrap.Options{Version: version}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with config file
		app, err = bootstrap.NewWithHotReload(cfgFile, opts)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Fprintln(cmd.ErrOrStderr(), "Running with environment variables (no config file)")
		}

		app, err = bootstrap.New(cfg, opts)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run(cmd.Context())
}
