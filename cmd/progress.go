package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/cafe-review-cli/internal/progress"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show accepted review counts per city",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rec, err := progress.NewTracker(cfg.Pipeline.ProgressFile).Load()
		if err != nil {
			return err
		}
		if len(rec) == 0 {
			fmt.Fprintln(os.Stderr, "No progress recorded.")
			return nil
		}
		formatProgress(os.Stdout, rec)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
}

// formatProgress writes per-city counts sorted by city, then a total.
func formatProgress(out io.Writer, rec progress.Record) {
	units := make([]string, 0, len(rec))
	total := 0
	for u, n := range rec {
		units = append(units, u)
		total += n
	}
	sort.Strings(units)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CITY\tACCEPTED")
	for _, u := range units {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", u, rec[u])
	}
	_, _ = fmt.Fprintf(w, "Total\t%d\n", total)
	_ = w.Flush()
}
