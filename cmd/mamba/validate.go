package main

import (
	"fmt"
	"os"

	"github.com/mambaweb/mamba/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the mamba configuration file.

Checks:
  - YAML syntax is valid
  - Field values are in range
  - Module directories exist

Examples:
  mamba validate
  mamba validate --config /etc/mamba/mamba.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config syntax valid\n", checkMark)

	missing := 0
	for _, dir := range []string{cfg.Modules.Controllers, cfg.Modules.Models} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			fmt.Fprintf(out, "  %s Module directory %s\n", crossMark, dir)
			missing++
			continue
		}
		fmt.Fprintf(out, "  %s Module directory %s\n", checkMark, dir)
	}

	fmt.Fprintf(out, "  %s Loader: %s\n", checkMark, cfg.Modules.Loader)
	fmt.Fprintf(out, "  %s Listen: %s\n", checkMark, cfg.Server.Addr())
	if cfg.Database.DSN != "" {
		fmt.Fprintf(out, "  %s Journal: %s\n", checkMark, cfg.Database.DSN)
	}

	if missing > 0 {
		return fmt.Errorf("%d module directories missing", missing)
	}
	fmt.Fprintf(out, "\nConfiguration is valid.\n")
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
