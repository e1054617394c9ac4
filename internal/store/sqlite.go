package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/cafe-review-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. The parent directory is created when missing.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create directory")
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer; also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const runColumns = `id, status, units, accepted, skipped, error, created_at, updated_at`

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	units      INTEGER NOT NULL DEFAULT 0,
	accepted   INTEGER NOT NULL DEFAULT 0,
	skipped    INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS outcomes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	unit           TEXT NOT NULL,
	candidate_key  TEXT NOT NULL,
	candidate_name TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	stage          TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_outcomes_run_id ON outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, units int) (*model.Run, error) {
	id := uuid.New().String()
	now := s.now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, units, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), units, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Units:     units,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), msg, s.now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	var c conds
	c.eq("status", string(filter.Status))
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + runColumns + ` FROM runs` + c.where() +
		` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args := append(c.args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// RecordOutcome stores o and bumps the owning run's counters in one
// transaction.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, o model.Outcome) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	counter := "skipped"
	if o.Status == model.OutcomeAccepted {
		counter = "accepted"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin outcome")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, unit, candidate_key, candidate_name, address, status, stage, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Unit, o.CandidateKey, o.CandidateName, o.Address,
		string(o.Status), string(o.Stage), o.Reason, o.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert outcome for run %s", o.RunID)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET `+counter+` = `+counter+` + 1, updated_at = ? WHERE id = ?`,
		s.now(), o.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: count outcome for run %s", o.RunID)
	}
	if err := checkRowsAffected(res, "run", o.RunID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit outcome")
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error) {
	var c conds
	c.eq("run_id", filter.RunID)
	c.eq("unit", filter.Unit)
	c.eq("status", string(filter.Status))
	query := `SELECT run_id, unit, candidate_key, candidate_name, address, status, stage, reason, created_at
		FROM outcomes` + c.where() + ` ORDER BY id`
	args := c.args
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list outcomes")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Outcome
	for rows.Next() {
		var o model.Outcome
		if err := rows.Scan(&o.RunID, &o.Unit, &o.CandidateKey, &o.CandidateName, &o.Address,
			&o.Status, &o.Stage, &o.Reason, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list outcomes iterate")
}

// SummarizeOutcomes counts a run's outcomes per unit, status and stage.
func (s *SQLiteStore) SummarizeOutcomes(ctx context.Context, runID string) ([]StageCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit, status, stage, COUNT(*) FROM outcomes WHERE run_id = ?
		 GROUP BY unit, status, stage ORDER BY unit, status, stage`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: summarize run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []StageCount
	for rows.Next() {
		var c StageCount
		if err := rows.Scan(&c.Unit, &c.Status, &c.Stage, &c.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage count")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: summarize iterate")
}

// conds accumulates AND-ed equality filters, skipping empty values.
type conds struct {
	clauses []string
	args    []any
}

func (c *conds) eq(column, value string) {
	if value == "" {
		return
	}
	c.clauses = append(c.clauses, column+" = ?")
	c.args = append(c.args, value)
}

func (c *conds) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.Status, &r.Units, &r.Accepted, &r.Skipped, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}
