// Package pipeline turns a queue of cities into validated cafe reviews.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/config"
	"github.com/sells-group/cafe-review-cli/internal/model"
	"github.com/sells-group/cafe-review-cli/internal/progress"
	"github.com/sells-group/cafe-review-cli/internal/store"
)

// Generator lists and enriches candidates.
type Generator interface {
	ListCandidates(ctx context.Context, unit model.Unit, count int, exclude []string) ([]model.Candidate, error)
	Enrich(ctx context.Context, cand model.Candidate) (*model.EnrichedRecord, error)
}

// Locator resolves a candidate to a place. Failures are reported as absent.
type Locator interface {
	Resolve(ctx context.Context, name, address, unit string) (model.Location, bool)
}

// Options narrows a run.
type Options struct {
	// City limits the run to one unit, matched case-insensitively.
	City string
}

// UnitResult summarizes one unit of a run.
type UnitResult struct {
	Unit     string `json:"unit"`
	Target   int    `json:"target"`
	Accepted int    `json:"accepted"`
	Skipped  int    `json:"skipped"`
	Status   string `json:"status"`
}

// Unit result statuses.
const (
	UnitCompleted     = "completed"
	UnitAlreadyDone   = "already_complete"
	UnitListingFailed = "listing_failed"
	UnitShort         = "short"
)

// Result summarizes a run.
type Result struct {
	RunID    string       `json:"run_id,omitempty"`
	Accepted int          `json:"accepted"`
	Skipped  int          `json:"skipped"`
	Units    []UnitResult `json:"units"`
}

// Pipeline runs units sequentially through listing, resolution, enrichment
// and validation.
type Pipeline struct {
	cfg      *config.Config
	gen      Generator
	loc      Locator
	cache    *cache.Store
	progress *progress.Tracker
	store    store.Store
}

// New creates a Pipeline. st may be nil to run without a ledger.
func New(cfg *config.Config, gen Generator, loc Locator, c *cache.Store, tracker *progress.Tracker, st store.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		gen:      gen,
		loc:      loc,
		cache:    c,
		progress: tracker,
		store:    st,
	}
}

// OrderUnits returns units sorted by descending target count. Ties keep
// their input order.
func OrderUnits(units []model.Unit) []model.Unit {
	out := append([]model.Unit(nil), units...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TargetCount > out[j].TargetCount
	})
	return out
}

// Run processes units until each reaches its target or runs out of
// candidates. Only configuration errors, fatal transport errors and
// cancellation are returned; every other failure skips a candidate or unit.
func (p *Pipeline) Run(ctx context.Context, units []model.Unit, opts Options) (*Result, error) {
	if err := p.cfg.Validate("run"); err != nil {
		return nil, err
	}

	if opts.City != "" {
		var filtered []model.Unit
		for _, u := range units {
			if strings.EqualFold(u.Name, opts.City) {
				filtered = append(filtered, u)
			}
		}
		if len(filtered) == 0 {
			return nil, eris.Errorf("pipeline: city %q not found in input", opts.City)
		}
		units = filtered
	}

	queue := OrderUnits(units)
	if err := writeArtifact(p.path(QueueFile), queue); err != nil {
		return nil, err
	}

	rec, err := p.progress.Load()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load progress")
	}

	result := &Result{}
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, len(queue))
		if err != nil {
			zap.L().Warn("pipeline: ledger unavailable, continuing without it", zap.Error(err))
			p.store = nil
		} else {
			result.RunID = run.ID
		}
	}

	log := zap.L().With(zap.String("run_id", result.RunID))
	log.Info("pipeline: starting", zap.Int("units", len(queue)))

	for _, unit := range queue {
		if err := ctx.Err(); err != nil {
			return result, p.finish(result, err)
		}
		ur, err := p.runUnit(ctx, result.RunID, unit, rec)
		result.Units = append(result.Units, ur)
		result.Accepted += ur.Accepted
		result.Skipped += ur.Skipped
		if err != nil {
			log.Error("pipeline: aborting run", zap.String("unit", unit.Name), zap.Error(err))
			return result, p.finish(result, err)
		}
	}

	log.Info("pipeline: complete",
		zap.Int("accepted", result.Accepted),
		zap.Int("skipped", result.Skipped),
	)
	return result, p.finish(result, nil)
}

// finish records the run's final status and passes runErr through.
func (p *Pipeline) finish(result *Result, runErr error) error {
	if p.store == nil || result.RunID == "" {
		return runErr
	}
	status := model.RunStatusComplete
	if runErr != nil {
		status = model.RunStatusFailed
	}
	// The run context may already be cancelled; the ledger update must still land.
	if err := p.store.FinishRun(context.Background(), result.RunID, status, runErr); err != nil {
		zap.L().Warn("pipeline: failed to finish run", zap.String("run_id", result.RunID), zap.Error(err))
	}
	return runErr
}

func (p *Pipeline) path(name string) string {
	return filepath.Join(p.cfg.Pipeline.Dir, name)
}

func (p *Pipeline) recordOutcome(ctx context.Context, o model.Outcome) {
	if p.store == nil || o.RunID == "" {
		return
	}
	if err := p.store.RecordOutcome(ctx, o); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Warn("pipeline: failed to record outcome",
			zap.String("unit", o.Unit),
			zap.String("candidate", o.CandidateName),
			zap.Error(err),
		)
	}
}
