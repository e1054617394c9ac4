package generate

import "fmt"

// Enrichment failure stages.
const (
	StageParse    = "parse"
	StageValidate = "validate"
)

// EnrichmentError reports a model response that could not be turned into a
// valid record. Transport failures are never wrapped in it.
type EnrichmentError struct {
	Stage     string
	Candidate string
	Err       error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("generate: %s failed for %q: %v", e.Stage, e.Candidate, e.Err)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}
