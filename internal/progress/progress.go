// Package progress persists the number of accepted reviews per unit.
package progress

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cafe-review-cli/internal/cache"
)

// Record maps unit name to accepted count.
type Record map[string]int

// Tracker reads and writes a single progress file.
type Tracker struct {
	mu   sync.Mutex
	path string
}

// NewTracker returns a tracker for the file at path.
func NewTracker(path string) *Tracker {
	return &Tracker{path: path}
}

// Path returns the progress file location.
func (t *Tracker) Path() string {
	return t.path
}

// Load returns the persisted record. A missing file yields an empty record;
// a file that does not decode is an error.
func (t *Tracker) Load() (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, nil
		}
		return nil, eris.Wrap(err, "progress: read")
	}

	rec := Record{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrapf(err, "progress: decode %s", t.path)
	}
	// A literal null decodes to a nil map.
	if rec == nil {
		rec = Record{}
	}
	for unit, n := range rec {
		if n < 0 {
			return nil, eris.Errorf("progress: negative count %d for %q", n, unit)
		}
	}
	return rec, nil
}

// Save replaces the persisted record. The write is atomic: a concurrent or
// later Load sees either the previous record or this one.
func (t *Tracker) Save(rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec == nil {
		rec = Record{}
	}
	return eris.Wrap(cache.WriteJSONAtomic(t.path, rec), "progress: save")
}
