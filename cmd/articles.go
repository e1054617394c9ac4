package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cafe-review-cli/internal/article"
	"github.com/sells-group/cafe-review-cli/internal/cost"
)

var (
	articlesInput     string
	articlesOutputDir string
)

// articlesReport is printed after every article was attempted.
type articlesReport struct {
	*article.Result
	Cost []cost.Line `json:"cost"`
}

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "Write standalone coffee articles from a brief file",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := firstNonEmpty(articlesInput, cfg.Articles.Input)
		dir := firstNonEmpty(articlesOutputDir, cfg.Articles.OutputDir)

		reqs, err := article.LoadRequests(input)
		if err != nil {
			return err
		}
		zap.L().Info("articles loaded", zap.String("input", input), zap.Int("count", len(reqs)))

		w, tally, err := initArticleWriter()
		if err != nil {
			return err
		}

		res, err := w.Run(cmd.Context(), reqs, dir)
		zap.L().Info("generation cost", zap.Float64("estimated_cost_usd", tally.Total()))
		if res != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(articlesReport{Result: res, Cost: tally.Lines()})
		}
		return err
	},
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	articlesCmd.Flags().StringVar(&articlesInput, "input", "", "brief file with an \"articles\" list (default: articles.input)")
	articlesCmd.Flags().StringVar(&articlesOutputDir, "output-dir", "", "directory for article_<title>.json files (default: articles.output_dir)")
	rootCmd.AddCommand(articlesCmd)
}
