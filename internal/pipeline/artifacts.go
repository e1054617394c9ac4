package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/model"
)

// Artifact file names in the pipeline directory.
const (
	QueueFile        = "step1_unit_queue.json"
	candidatesFormat = "step2_candidates_%s.json"
	locatedFormat    = "step3_located_%s.json"
	enrichedFormat   = "step4_enriched_%s.json"
	enrichedPrefix   = "step4_enriched_"
)

// CandidatesPath returns the step 2 artifact for unit.
func CandidatesPath(dir, unit string) string {
	return filepath.Join(dir, fmt.Sprintf(candidatesFormat, model.FileSlug(unit)))
}

// LocatedPath returns the step 3 artifact for unit.
func LocatedPath(dir, unit string) string {
	return filepath.Join(dir, fmt.Sprintf(locatedFormat, model.FileSlug(unit)))
}

// EnrichedPath returns the step 4 artifact, the unit's output set.
func EnrichedPath(dir, unit string) string {
	return filepath.Join(dir, fmt.Sprintf(enrichedFormat, model.FileSlug(unit)))
}

// ReadOutputSet loads a unit's accepted records. A missing file is an empty set.
func ReadOutputSet(path string) ([]model.EnrichedRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read %s", path)
	}
	var recs []model.EnrichedRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse %s", path)
	}
	return recs, nil
}

// readCandidates loads a candidate artifact, treating any failure as empty.
func readCandidates(path string) []model.Candidate {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cands []model.Candidate
	if err := json.Unmarshal(data, &cands); err != nil {
		return nil
	}
	return cands
}

// OutputSets returns every step 4 artifact in dir, sorted by file name.
func OutputSets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: list %s", dir)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, enrichedPrefix) && strings.HasSuffix(name, ".json") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// checkpoint is the terminal state of one candidate.
type checkpoint struct {
	Status model.OutcomeStatus `json:"status"`
	Stage  model.Stage         `json:"stage"`
	Reason string              `json:"reason,omitempty"`
}

func checkpointKey(c model.Candidate) string {
	return "candidate:" + c.Key()
}

func candidatesKey(unit string) string {
	return "candidates:" + unit
}

func writeArtifact(path string, v any) error {
	return eris.Wrapf(cache.WriteJSONAtomic(path, v), "pipeline: write %s", filepath.Base(path))
}
