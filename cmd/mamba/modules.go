package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mambaweb/mamba/bootstrap"
	"github.com/mambaweb/mamba/config"
	"github.com/mambaweb/mamba/core/module"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var modulesKind string

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the modules found in the module directories",
	Long: `Scan the controller and model directories once and list every module
that loads. Modules that fail to load are reported with their error.

Examples:
  mamba modules
  mamba modules --kind mamba-controller`,
	RunE: runModules,
}

func init() {
	rootCmd.AddCommand(modulesCmd)

	modulesCmd.Flags().StringVar(&modulesKind, "kind", "", "only list modules of this kind (mamba-controller, mamba-model)")
}

func runModules(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	mods, err := bootstrap.NewModules(cfg, bootstrap.ModulesOptions{Logger: zerolog.Nop()})
	if err != nil {
		return err
	}
	defer mods.Close()

	registries := mods.All()
	if modulesKind != "" {
		r, ok := mods.ByKind(modulesKind)
		if !ok {
			return fmt.Errorf("unknown module kind %q", modulesKind)
		}
		registries = []*module.Registry{r}
	}

	out := cmd.OutOrStdout()
	var loadErr error
	for _, r := range registries {
		if err := r.Setup(); err != nil {
			loadErr = err
			fmt.Fprintf(out, "%s Failed modules (%s):\n%v\n\n", crossMark, r.Kind(), err)
		}
	}

	printModules(out, registries)
	return loadErr
}

func printModules(out io.Writer, registries []*module.Registry) {
	total := 0
	for _, r := range registries {
		total += r.Count()
	}
	if total == 0 {
		fmt.Fprintln(out, "No modules found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tIMPORT PATH\tINSTANCE")
	fmt.Fprintln(w, "----\t----\t-----------\t--------")
	for _, r := range registries {
		for _, e := range r.Entries() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%T\n", e.Name, r.Kind(), e.ImportPath, e.Instance)
		}
	}
	w.Flush()
}
