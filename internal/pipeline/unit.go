package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/generate"
	"github.com/sells-group/cafe-review-cli/internal/model"
	"github.com/sells-group/cafe-review-cli/internal/progress"
	"github.com/sells-group/cafe-review-cli/internal/resilience"
)

// unitRun holds the state of one unit while it is processed.
type unitRun struct {
	runID      string
	unit       model.Unit
	candidates []model.Candidate
	located    []model.Candidate
	output     []model.EnrichedRecord
	accepted   int
	result     UnitResult
	log        *zap.Logger
}

// runUnit drives one unit to completion. The returned error is non-nil only
// for failures that must abort the run.
func (p *Pipeline) runUnit(ctx context.Context, runID string, unit model.Unit, rec progress.Record) (UnitResult, error) {
	u := &unitRun{
		runID:  runID,
		unit:   unit,
		result: UnitResult{Unit: unit.Name, Target: unit.TargetCount},
		log:    zap.L().With(zap.String("unit", unit.Name), zap.String("run_id", runID)),
	}

	output, err := ReadOutputSet(EnrichedPath(p.cfg.Pipeline.Dir, unit.Name))
	if err != nil {
		u.log.Warn("pipeline: ignoring unreadable output set", zap.Error(err))
		output = nil
	}
	u.output = output
	// A crash between writing the output set and saving progress leaves the
	// output set ahead; trust whichever is larger.
	u.accepted = max(rec[unit.Name], len(u.output))

	if u.accepted >= unit.TargetCount {
		u.log.Info("pipeline: unit already complete",
			zap.Int("accepted", u.accepted),
			zap.Int("target", unit.TargetCount),
		)
		u.result.Status = UnitAlreadyDone
		return u.result, nil
	}

	if p.cache != nil {
		p.cache.Load(cache.NamespaceProcessedData, candidatesKey(unit.Name), &u.candidates)
	}
	pending := p.pending(u.candidates)

	if len(pending) == 0 {
		need := unit.TargetCount - u.accepted
		exclude := make([]string, 0, len(u.candidates))
		for _, c := range u.candidates {
			exclude = append(exclude, c.Name)
		}
		u.log.Info("pipeline: listing candidates",
			zap.String("stage", string(model.StageListing)),
			zap.Int("count", need),
			zap.Int("excluded", len(exclude)),
		)
		listed, err := p.gen.ListCandidates(ctx, unit, need, exclude)
		if err != nil {
			if isFatal(ctx, err) {
				return u.result, err
			}
			u.log.Warn("pipeline: listing failed, skipping unit",
				zap.String("stage", string(model.StageListing)),
				zap.Error(err),
			)
			u.result.Status = UnitListingFailed
			return u.result, nil
		}
		u.candidates = append(u.candidates, listed...)
		pending = listed
		p.saveCandidates(u)
	}

	// Never process more candidates than the unit still needs.
	if need := unit.TargetCount - u.accepted; len(pending) > need {
		pending = pending[:need]
	}
	u.located = readCandidates(LocatedPath(p.cfg.Pipeline.Dir, unit.Name))

	for _, cand := range pending {
		if u.accepted >= unit.TargetCount {
			break
		}
		if err := ctx.Err(); err != nil {
			return u.result, err
		}
		if err := p.runCandidate(ctx, u, cand, rec); err != nil {
			return u.result, err
		}
	}

	if u.accepted >= unit.TargetCount {
		u.result.Status = UnitCompleted
	} else {
		u.result.Status = UnitShort
		u.log.Warn("pipeline: unit below target",
			zap.Int("accepted", u.accepted),
			zap.Int("target", unit.TargetCount),
		)
	}
	return u.result, nil
}

// pending returns the candidates without a terminal checkpoint.
func (p *Pipeline) pending(cands []model.Candidate) []model.Candidate {
	var out []model.Candidate
	for _, c := range cands {
		var cp checkpoint
		if p.cache != nil && p.cache.Load(cache.NamespaceCheckpoints, checkpointKey(c), &cp) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (p *Pipeline) saveCandidates(u *unitRun) {
	if p.cache != nil {
		if err := p.cache.Save(cache.NamespaceProcessedData, candidatesKey(u.unit.Name), u.candidates, 0); err != nil {
			u.log.Warn("pipeline: failed to save candidate list", zap.Error(err))
		}
	}
	if err := writeArtifact(CandidatesPath(p.cfg.Pipeline.Dir, u.unit.Name), u.candidates); err != nil {
		u.log.Warn("pipeline: failed to write candidates artifact", zap.Error(err))
	}
}

// runCandidate takes one candidate to a terminal state.
func (p *Pipeline) runCandidate(ctx context.Context, u *unitRun, cand model.Candidate, rec progress.Record) error {
	loc, ok := p.loc.Resolve(ctx, cand.Name, cand.Address, u.unit.Name)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ok {
		p.skip(ctx, u, cand, model.StageResolving, "location not resolved")
		return nil
	}
	cand.Location = &loc
	u.located = upsertCandidate(u.located, cand)
	if err := writeArtifact(LocatedPath(p.cfg.Pipeline.Dir, u.unit.Name), u.located); err != nil {
		u.log.Warn("pipeline: failed to write located artifact", zap.Error(err))
	}

	record, err := p.gen.Enrich(ctx, cand)
	if err != nil {
		if isFatal(ctx, err) {
			return err
		}
		stage := model.StageEnriching
		var ee *generate.EnrichmentError
		if errors.As(err, &ee) && ee.Stage == generate.StageValidate {
			stage = model.StageValidating
		}
		p.skip(ctx, u, cand, stage, err.Error())
		return nil
	}

	return p.accept(ctx, u, cand, record, rec)
}

// accept appends record to the unit's output set, then checkpoints the
// candidate and saves progress.
func (p *Pipeline) accept(ctx context.Context, u *unitRun, cand model.Candidate, record *model.EnrichedRecord, rec progress.Record) error {
	var appended bool
	u.output, appended = upsertRecord(u.output, *record)
	if err := writeArtifact(EnrichedPath(p.cfg.Pipeline.Dir, u.unit.Name), u.output); err != nil {
		return err
	}

	if appended {
		u.accepted++
		u.result.Accepted++
	}
	p.checkpoint(u, cand, checkpoint{Status: model.OutcomeAccepted, Stage: model.StageAccepted})

	rec[u.unit.Name] = u.accepted
	if err := p.progress.Save(rec); err != nil {
		return err
	}

	u.log.Info("pipeline: accepted",
		zap.String("candidate", cand.Name),
		zap.String("slug", record.Slug),
		zap.Int("accepted", u.accepted),
		zap.Int("target", u.unit.TargetCount),
	)
	p.recordOutcome(ctx, model.Outcome{
		RunID:         u.runID,
		Unit:          u.unit.Name,
		CandidateKey:  cand.Key(),
		CandidateName: cand.Name,
		Address:       cand.Address,
		Status:        model.OutcomeAccepted,
		Stage:         model.StageAccepted,
	})
	return nil
}

func (p *Pipeline) skip(ctx context.Context, u *unitRun, cand model.Candidate, stage model.Stage, reason string) {
	u.result.Skipped++
	u.log.Warn("pipeline: skipping candidate",
		zap.String("candidate", cand.Name),
		zap.String("address", cand.Address),
		zap.String("stage", string(stage)),
		zap.String("reason", reason),
	)
	p.checkpoint(u, cand, checkpoint{Status: model.OutcomeSkipped, Stage: stage, Reason: reason})
	p.recordOutcome(ctx, model.Outcome{
		RunID:         u.runID,
		Unit:          u.unit.Name,
		CandidateKey:  cand.Key(),
		CandidateName: cand.Name,
		Address:       cand.Address,
		Status:        model.OutcomeSkipped,
		Stage:         stage,
		Reason:        reason,
	})
}

func (p *Pipeline) checkpoint(u *unitRun, cand model.Candidate, cp checkpoint) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Save(cache.NamespaceCheckpoints, checkpointKey(cand), cp, 0); err != nil {
		u.log.Warn("pipeline: failed to checkpoint candidate",
			zap.String("candidate", cand.Name),
			zap.Error(err),
		)
	}
}

// upsertRecord replaces the record for the same place, or appends r and
// reports true.
func upsertRecord(recs []model.EnrichedRecord, r model.EnrichedRecord) ([]model.EnrichedRecord, bool) {
	for i := range recs {
		if recs[i].PlaceID == r.PlaceID && recs[i].CafeName == r.CafeName {
			recs[i] = r
			return recs, false
		}
	}
	return append(recs, r), true
}

func upsertCandidate(cands []model.Candidate, c model.Candidate) []model.Candidate {
	for i := range cands {
		if cands[i].Key() == c.Key() {
			cands[i] = c
			return cands
		}
	}
	return append(cands, c)
}

func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || resilience.IsFatal(err)
}
