package model

import "time"

// OutcomeStatus is the terminal state of a candidate.
type OutcomeStatus string

const (
	OutcomeAccepted OutcomeStatus = "accepted"
	OutcomeSkipped  OutcomeStatus = "skipped"
)

// Stage names the point in the per-candidate flow where an outcome was decided.
type Stage string

const (
	StageListing    Stage = "listing"
	StageResolving  Stage = "resolving"
	StageEnriching  Stage = "enriching"
	StageValidating Stage = "validating"
	StageAccepted   Stage = "accepted"
)

// Outcome records how a candidate finished.
type Outcome struct {
	RunID         string        `json:"run_id"`
	Unit          string        `json:"unit"`
	CandidateKey  string        `json:"candidate_key"`
	CandidateName string        `json:"candidate_name"`
	Address       string        `json:"address,omitempty"`
	Status        OutcomeStatus `json:"status"`
	Stage         Stage         `json:"stage"`
	Reason        string        `json:"reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// RunStatus is the state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	Units     int       `json:"units"`
	Accepted  int       `json:"accepted"`
	Skipped   int       `json:"skipped"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
