package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cafe-review-cli/internal/cost"
	"github.com/sells-group/cafe-review-cli/internal/export"
	"github.com/sells-group/cafe-review-cli/internal/pipeline"
)

const (
	// exportStep is the first step that only exports existing artifacts.
	exportStep = 5
	// contentfulOnlyStep exports the CMS import file without the spreadsheet.
	contentfulOnlyStep = 6
)

// exportOptionsForStep maps --from-step to the export destinations.
func exportOptionsForStep(step int) export.Options {
	return export.Options{SkipXLSX: step >= contentfulOnlyStep}
}

// runReport is printed after the pipeline finishes.
type runReport struct {
	*pipeline.Result
	Cost []cost.Line `json:"cost"`
}

var (
	runInput    string
	runMapping  string
	runCity     string
	runFromStep int
	runNoExport bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect reviews for every city in the input file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if runFromStep < exportStep {
			units, err := pipeline.LoadUnits(runInput, runMapping)
			if err != nil {
				return err
			}

			env, err := initPipeline(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.Pipeline.Run(ctx, units, pipeline.Options{City: runCity})
			zap.L().Info("generation cost", zap.Float64("estimated_cost_usd", env.Cost.Total()))
			if result != nil {
				_ = enc.Encode(runReport{Result: result, Cost: env.Cost.Lines()})
			}
			if err != nil {
				return err
			}
		} else {
			zap.L().Info("skipping generation", zap.Int("from_step", runFromStep))
		}

		if runNoExport {
			return nil
		}
		res, err := export.Run(ctx, cfg, exportOptionsForStep(runFromStep))
		if err != nil {
			return err
		}
		return enc.Encode(res)
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "cities.csv", "CSV with City and Cafes Needed columns")
	runCmd.Flags().StringVar(&runMapping, "mapping", "city_mapping.json", "city to CMS entry id mapping (JSON or YAML)")
	runCmd.Flags().StringVar(&runCity, "city", "", "only process this city")
	runCmd.Flags().IntVar(&runFromStep, "from-step", 1, "first step to run; 5 only exports, 6 exports without the spreadsheet")
	runCmd.Flags().BoolVar(&runNoExport, "no-export", false, "skip the export step")
	rootCmd.AddCommand(runCmd)
}
