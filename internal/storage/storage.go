package storage

import (
	"database/sql"
	"errors"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrMartyK/source1.5/internal/harness"
)

// Store wraps SQLite-backed persistence for parity runs and their
// per-position outcomes.
type Store struct {
	DB *sql.DB
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS parity_runs (
            id TEXT PRIMARY KEY,
            map_name TEXT NOT NULL,
            status TEXT NOT NULL,
            total INTEGER DEFAULT 0,
            passed INTEGER DEFAULT 0,
            failed INTEGER DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            completed_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS parity_outcomes (
            run_id TEXT NOT NULL,
            position TEXT NOT NULL,
            ssim REAL,
            mse REAL,
            passed BOOLEAN,
            threshold REAL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_parity_outcomes_run_id ON parity_outcomes(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// RunRecord captures one persisted parity run.
type RunRecord struct {
	ID          string     `json:"id"`
	MapName     string     `json:"map_name"`
	Status      string     `json:"status"`
	Total       int        `json:"total"`
	Passed      int        `json:"passed"`
	Failed      int        `json:"failed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RecordRunStart inserts a running parity run.
func (s *Store) RecordRunStart(id, mapName string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO parity_runs (id, map_name, status) VALUES (?, ?, 'running');`,
		id, mapName)
	return err
}

// RecordOutcome appends one position outcome to a run. An infinite MSE is
// stored as NULL; SQLite REAL has no +Inf representation worth relying on.
func (s *Store) RecordOutcome(runID string, o harness.Outcome) error {
	if s == nil {
		return nil
	}
	mse := sql.NullFloat64{Float64: o.MSE, Valid: !math.IsInf(o.MSE, 1)}
	_, err := s.DB.Exec(`INSERT INTO parity_outcomes (run_id, position, ssim, mse, passed, threshold) VALUES (?, ?, ?, ?, ?, ?);`,
		runID, o.Position, o.Similarity, mse, o.Passed, o.Threshold)
	return err
}

// RecordRunResult finalizes a run with its aggregate counts.
func (s *Store) RecordRunResult(runID string, success bool, total, passed, failed int) error {
	if s == nil {
		return nil
	}
	status := "failed"
	if success {
		status = "passed"
	}
	_, err := s.DB.Exec(`UPDATE parity_runs SET status=?, total=?, passed=?, failed=?, completed_at=CURRENT_TIMESTAMP WHERE id=?;`,
		status, total, passed, failed, runID)
	return err
}

// RecentRuns returns the latest runs up to limit.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, map_name, status, total, passed, failed, created_at, completed_at FROM parity_runs ORDER BY created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var created time.Time
		var completed sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.MapName, &rec.Status, &rec.Total, &rec.Passed, &rec.Failed, &created, &completed); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RunOutcomes fetches the outcomes of one run in insertion order. A NULL
// MSE round-trips back to the +Inf sentinel.
func (s *Store) RunOutcomes(runID string) ([]harness.Outcome, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT r.map_name, o.position, o.ssim, o.mse, o.passed, o.threshold
        FROM parity_outcomes o JOIN parity_runs r ON r.id = o.run_id
        WHERE o.run_id=? ORDER BY o.rowid;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []harness.Outcome
	for rows.Next() {
		var o harness.Outcome
		var mse sql.NullFloat64
		if err := rows.Scan(&o.MapName, &o.Position, &o.Similarity, &mse, &o.Passed, &o.Threshold); err != nil {
			return nil, err
		}
		if mse.Valid {
			o.MSE = mse.Float64
		} else {
			o.MSE = math.Inf(1)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
