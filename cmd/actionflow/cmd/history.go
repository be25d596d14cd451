package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/internal/reporter"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
)

var (
	historyLimit int
	historyPrune time.Duration
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd, historyPruneCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list")
	historyPruneCmd.Flags().DurationVar(&historyPrune, "older-than", 30*24*time.Hour, "remove runs started before now minus this duration")
}

var historyCmd = &cobra.Command{
	Use:   "history [flow-name]",
	Short: "List recorded runs, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		var flowName string
		if len(args) == 1 {
			flowName = args[0]
		}
		runs, err := store.ListRuns(ctx, flowName, historyLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tFLOW\tSTATUS\tSTARTED\tDURATION\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				r.ID, r.FlowName, r.Status, r.StartedAt.Format(time.RFC3339),
				reporter.FormatDuration(r.Duration), len(r.FailedNodeIDs))
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print one run with its node executions as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := idwrap.NewText(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}
		ctx := cmd.Context()
		store, err := openStore(ctx, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		rec, err := store.GetRun(ctx, id)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		removed, err := store.DeleteRunsBefore(ctx, time.Now().Add(-historyPrune))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d run(s)\n", removed)
		return nil
	},
}
