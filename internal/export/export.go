// Package export turns accepted reviews into CMS import files and a review
// spreadsheet.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cafe-review-cli/internal/config"
	"github.com/sells-group/cafe-review-cli/internal/model"
	"github.com/sells-group/cafe-review-cli/internal/pipeline"
	"github.com/sells-group/cafe-review-cli/internal/schema"
)

// Options selects export destinations. Empty paths get timestamped names in
// the configured output directory.
type Options struct {
	ContentfulPath string
	XLSXPath       string
	// SkipXLSX disables the spreadsheet writer.
	SkipXLSX bool
}

// Result reports what an export wrote.
type Result struct {
	Exported       int    `json:"exported"`
	Rejected       int    `json:"rejected"`
	ContentfulPath string `json:"contentful_path"`
	XLSXPath       string `json:"xlsx_path,omitempty"`
}

// Collect reads every output set in dir and returns the records that still
// pass schema validation. Invalid records are logged and counted.
func Collect(dir string) ([]model.EnrichedRecord, int, error) {
	paths, err := pipeline.OutputSets(dir)
	if err != nil {
		return nil, 0, err
	}

	var (
		recs     []model.EnrichedRecord
		rejected int
	)
	for _, path := range paths {
		set, err := pipeline.ReadOutputSet(path)
		if err != nil {
			return nil, 0, err
		}
		for i := range set {
			if err := schema.ValidateRecord(&set[i]); err != nil {
				rejected++
				zap.L().Warn("export: dropping invalid record",
					zap.String("file", filepath.Base(path)),
					zap.String("candidate", set[i].CafeName),
					zap.Error(err),
				)
				continue
			}
			recs = append(recs, set[i])
		}
	}
	return recs, rejected, nil
}

// Run collects accepted records from the pipeline directory and writes the
// Contentful import file and the review spreadsheet concurrently.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if err := cfg.Validate("export"); err != nil {
		return nil, err
	}

	recs, rejected, err := Collect(cfg.Pipeline.Dir)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, eris.Errorf("export: no valid records in %s", cfg.Pipeline.Dir)
	}

	stamp := time.Now().Format("20060102_150405")
	res := &Result{
		Exported:       len(recs),
		Rejected:       rejected,
		ContentfulPath: opts.ContentfulPath,
	}
	if res.ContentfulPath == "" {
		res.ContentfulPath = filepath.Join(cfg.Pipeline.OutputDir, fmt.Sprintf("contentful_export_%s.json", stamp))
	}
	if !opts.SkipXLSX {
		res.XLSXPath = opts.XLSXPath
		if res.XLSXPath == "" {
			res.XLSXPath = filepath.Join(cfg.Pipeline.OutputDir, fmt.Sprintf("cafe_reviews_%s.xlsx", stamp))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		return NewContentful(cfg.Contentful).Write(res.ContentfulPath, recs)
	})
	if res.XLSXPath != "" {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return WriteXLSX(res.XLSXPath, recs)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("export: complete",
		zap.Int("exported", res.Exported),
		zap.Int("rejected", res.Rejected),
		zap.String("contentful", res.ContentfulPath),
		zap.String("xlsx", res.XLSXPath),
	)
	return res, nil
}
