package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mamba",
	Short: "Web framework with hot-reloadable controller and model modules",
	Long: `Mamba serves controllers and models discovered in module directories
and reloads them when their source files change.

Quick start:
  mamba serve       # Start the HTTP server
  mamba modules     # List discoverable modules
  mamba history     # Show the module load and reload journal
  mamba validate    # Validate configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "mamba.yaml", "config file path")
}
