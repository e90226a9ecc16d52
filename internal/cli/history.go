package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/yapi2zod/internal/config"
)

// HistoryConfig captures the options for the history command.
type HistoryConfig struct {
	Settings *config.Config
	Limit    int
	Out      io.Writer
}

var historyRunner = runHistory

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently generated endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := applySettingsFlagOverrides(cmd.Flags(), settings); err != nil {
				return err
			}
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			if limit < 1 {
				return newUsageError(fmt.Sprintf("history: --limit must be positive, got %d", limit))
			}
			return historyRunner(cmd.Context(), &HistoryConfig{Settings: settings, Limit: limit, Out: cmd.OutOrStdout()})
		},
	}

	cmd.Flags().Int("limit", 20, "Number of entries to show")
	cmd.Flags().String("state-file", "", "SQLite file holding the history")
	return cmd
}

func runHistory(ctx context.Context, cfg *HistoryConfig) error {
	db, err := openStore(ctx, cfg.Settings)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.Recent(ctx, cfg.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cfg.Out, "No history yet.")
		return nil
	}

	tw := tabwriter.NewWriter(cfg.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tINTERFACE\tPATH\tFILE\tSTATUS\tERROR")
	for _, e := range entries {
		run := e.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), run, strconv.FormatInt(e.InterfaceID, 10),
			e.Path, e.File, e.Status, e.Error)
	}
	return tw.Flush()
}
