package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cafe-review-cli/internal/model"
	"github.com/sells-group/cafe-review-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing runs and the per-candidate outcomes they recorded.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs outcomes --

var runsOutcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "List candidate outcomes; --status skipped gives the manual retry list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID, _ := cmd.Flags().GetString("run")
		unit, _ := cmd.Flags().GetString("city")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		outcomes, err := st.ListOutcomes(ctx, store.OutcomeFilter{
			RunID:  runID,
			Unit:   unit,
			Status: model.OutcomeStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs outcomes")
		}

		if len(outcomes) == 0 {
			fmt.Fprintln(os.Stderr, "No outcomes found.")
			return nil
		}

		formatOutcomes(os.Stdout, outcomes)
		return nil
	},
}

// -- runs summary --

var runsSummaryCmd = &cobra.Command{
	Use:   "summary <run-id>",
	Short: "Count a run's outcomes per city, status and stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.GetRun(ctx, args[0]); err != nil {
			return eris.Wrap(err, "runs summary")
		}
		counts, err := st.SummarizeOutcomes(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs summary")
		}
		formatSummary(os.Stdout, counts)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsOutcomesCmd.Flags().String("run", "", "filter by run id")
	runsOutcomesCmd.Flags().String("city", "", "filter by city")
	runsOutcomesCmd.Flags().String("status", "", "filter by outcome status (accepted, skipped)")
	runsOutcomesCmd.Flags().Int("limit", 200, "max number of outcomes to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsOutcomesCmd)
	runsCmd.AddCommand(runsSummaryCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tUNITS\tACCEPTED\tSKIPPED\tCREATED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t-----\t--------\t-------\t-------\t--------\t-----")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Status,
			r.Units,
			r.Accepted,
			r.Skipped,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
			truncate(r.Error, 60),
		)
	}
	_ = w.Flush()
}

// formatOutcomes writes a tabular list of outcomes to w.
func formatOutcomes(out io.Writer, outcomes []model.Outcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tCITY\tCAFE\tADDRESS\tSTATUS\tSTAGE\tREASON")
	_, _ = fmt.Fprintln(w, "---\t----\t----\t-------\t------\t-----\t------")

	for _, o := range outcomes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(o.RunID),
			o.Unit,
			o.CandidateName,
			o.Address,
			o.Status,
			o.Stage,
			truncate(o.Reason, 60),
		)
	}
	_ = w.Flush()
}

// formatSummary writes per-stage counts to w, followed by the totals per
// status.
func formatSummary(out io.Writer, counts []store.StageCount) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CITY\tSTATUS\tSTAGE\tCOUNT")
	_, _ = fmt.Fprintln(w, "----\t------\t-----\t-----")

	totals := make(map[model.OutcomeStatus]int)
	for _, c := range counts {
		totals[c.Status] += c.Count
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.Unit, c.Status, c.Stage, c.Count)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\naccepted: %d  skipped: %d\n",
		totals[model.OutcomeAccepted], totals[model.OutcomeSkipped])
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
