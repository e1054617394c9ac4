package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/cafe-review-cli/internal/export"
)

var exportOpts export.Options

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export accepted reviews to a Contentful import file and a spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := export.Run(cmd.Context(), cfg, exportOpts)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOpts.ContentfulPath, "contentful-output", "", "Contentful import file (default: timestamped in pipeline.output_dir)")
	exportCmd.Flags().StringVar(&exportOpts.XLSXPath, "xlsx-output", "", "review spreadsheet (default: timestamped in pipeline.output_dir)")
	exportCmd.Flags().BoolVar(&exportOpts.SkipXLSX, "no-xlsx", false, "skip the spreadsheet")
	rootCmd.AddCommand(exportCmd)
}
