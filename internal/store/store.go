// Package store persists the run ledger: one row per pipeline run and one
// row per candidate that reached a terminal state.
package store

import (
	"context"

	"github.com/sells-group/cafe-review-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// OutcomeFilter specifies criteria for listing outcomes.
type OutcomeFilter struct {
	RunID  string              `json:"run_id,omitempty"`
	Unit   string              `json:"unit,omitempty"`
	Status model.OutcomeStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

// StageCount is the number of outcomes of one unit that ended with status
// at stage.
type StageCount struct {
	Unit   string              `json:"unit"`
	Status model.OutcomeStatus `json:"status"`
	Stage  model.Stage         `json:"stage"`
	Count  int                 `json:"count"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, units int) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Outcomes
	RecordOutcome(ctx context.Context, o model.Outcome) error
	ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error)
	SummarizeOutcomes(ctx context.Context, runID string) ([]StageCount, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
