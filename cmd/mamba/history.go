package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/mambaweb/mamba/bootstrap"
	"github.com/mambaweb/mamba/config"
	"github.com/mambaweb/mamba/ports"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	historyModule string
	historyKind   string
	historyEvent  string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the module journal",
	Long: `Show module load and reload events recorded in the journal database
(database.dsn), newest first.

Examples:
  mamba history
  mamba history --module blog --limit 10
  mamba history --event module.reload_failed`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyModule, "module", "", "filter by module name")
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "filter by module kind")
	historyCmd.Flags().StringVar(&historyEvent, "event", "", "filter by event name")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of entries")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("journal disabled: database.dsn is not set")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, journal, err := bootstrap.OpenJournal(ctx, cfg.Database.DSN, zerolog.Nop())
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	entries, err := journal.List(ctx, ports.JournalQuery{
		Module: historyModule,
		Kind:   historyKind,
		Event:  historyEvent,
		Limit:  historyLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list journal: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No journal entries found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tKIND\tMODULE\tRELOADS\tERROR")
	fmt.Fprintln(w, "----\t-----\t----\t------\t-------\t-----")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Event, e.Kind, e.Module, e.Reloads, e.Error)
	}
	w.Flush()
	return nil
}
