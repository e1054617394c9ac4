// Package cache provides a file-backed, namespaced key/value cache with
// optional per-entry TTL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Well-known namespaces.
const (
	NamespaceAPIResponses  = "api_responses"
	NamespaceProcessedData = "processed_data"
	NamespaceCheckpoints   = "checkpoints"
)

// Namespaces lists the namespaces created on open.
var Namespaces = []string{NamespaceAPIResponses, NamespaceProcessedData, NamespaceCheckpoints}

type entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	StoredAt   time.Time       `json:"storedAt"`
	TTLSeconds *int64          `json:"ttlSeconds"`
}

// Store is a single-writer file cache. Each namespace is a directory and each
// entry a JSON file named by the SHA-256 of its key.
type Store struct {
	dir string
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates the cache directory and its namespaces.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{dir: dir, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	for _, ns := range Namespaces {
		if err := os.MkdirAll(filepath.Join(dir, ns), 0o755); err != nil {
			return nil, eris.Wrapf(err, "cache: create namespace %s", ns)
		}
	}
	return s, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(ns, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, ns, hex.EncodeToString(sum[:])+".json")
}

// Save stores payload under key, replacing any existing entry. A ttl of zero
// means the entry never expires.
func (s *Store) Save(ns, key string, payload any, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "cache: marshal %s/%s", ns, key)
	}
	e := entry{Key: key, Payload: raw, StoredAt: s.now().UTC()}
	if ttl > 0 {
		secs := int64(ttl / time.Second)
		if secs == 0 {
			secs = 1
		}
		e.TTLSeconds = &secs
	}
	data, err := json.Marshal(e)
	if err != nil {
		return eris.Wrapf(err, "cache: marshal entry %s/%s", ns, key)
	}
	if err := os.MkdirAll(filepath.Join(s.dir, ns), 0o755); err != nil {
		return eris.Wrapf(err, "cache: create namespace %s", ns)
	}
	return WriteFileAtomic(s.path(ns, key), data)
}

// Load decodes the entry for key into dst. It reports false when the entry is
// missing, malformed, stored under a different key, or expired.
func (s *Store) Load(ns, key string, dst any) bool {
	p := s.path(ns, key)
	data, err := os.ReadFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("cache: read failed", zap.String("namespace", ns), zap.Error(err))
		}
		return false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Key != key || e.StoredAt.IsZero() {
		zap.L().Debug("cache: ignoring malformed entry", zap.String("namespace", ns), zap.String("file", p))
		return false
	}

	if e.TTLSeconds != nil && *e.TTLSeconds > 0 {
		ttl := time.Duration(*e.TTLSeconds) * time.Second
		if s.now().Sub(e.StoredAt) > ttl {
			zap.L().Debug("cache: entry expired", zap.String("namespace", ns), zap.String("key", key))
			return false
		}
	}

	if err := json.Unmarshal(e.Payload, dst); err != nil {
		zap.L().Debug("cache: payload does not decode", zap.String("namespace", ns), zap.Error(err))
		return false
	}
	return true
}

// Invalidate removes the entry for key. Missing entries are not an error.
func (s *Store) Invalidate(ns, key string) error {
	if err := os.Remove(s.path(ns, key)); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "cache: invalidate %s/%s", ns, key)
	}
	return nil
}

// Clear removes every entry in ns, or in every namespace when ns is empty.
func (s *Store) Clear(ns string) error {
	targets := []string{ns}
	if ns == "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return eris.Wrap(err, "cache: list namespaces")
		}
		targets = targets[:0]
		for _, e := range entries {
			if e.IsDir() {
				targets = append(targets, e.Name())
			}
		}
	}

	for _, t := range targets {
		files, err := filepath.Glob(filepath.Join(s.dir, t, "*.json"))
		if err != nil {
			return eris.Wrapf(err, "cache: list %s", t)
		}
		for _, f := range files {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				return eris.Wrapf(err, "cache: remove %s", f)
			}
		}
		zap.L().Info("cache: cleared namespace", zap.String("namespace", t), zap.Int("entries", len(files)))
	}
	return nil
}
