// Package history persists a ledger of runs and their classified worker
// invocations in a local SQLite database. The ledger is purely diagnostic;
// the loop driver works identically without it.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/promptloop/internal/logger"
	"github.com/codefionn/promptloop/internal/loop"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	worker         TEXT NOT NULL,
	max_iterations INTEGER NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP,
	status         TEXT,
	iterations     INTEGER,
	invocations    INTEGER
);
CREATE TABLE IF NOT EXISTS invocations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         INTEGER NOT NULL REFERENCES runs(id),
	iteration      INTEGER NOT NULL,
	attempt        INTEGER NOT NULL,
	classification TEXT NOT NULL,
	elapsed_ms     INTEGER NOT NULL,
	output_hash    TEXT NOT NULL,
	output_bytes   INTEGER NOT NULL,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invocations_run ON invocations(run_id);
`

// Store is a SQLite-backed run ledger. It implements loop.Recorder for the
// currently started run.
type Store struct {
	db    *sql.DB
	runID int64
}

// Open opens (creating if necessary) the ledger database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a new run row and makes it the target of subsequent
// RecordInvocation calls.
func (s *Store) StartRun(worker string, maxIterations int) error {
	res, err := s.db.Exec(
		`INSERT INTO runs (worker, max_iterations, started_at) VALUES (?, ?, ?)`,
		worker, maxIterations, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	s.runID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}
	return nil
}

// RecordInvocation implements loop.Recorder. Only a hash and size of the
// output are stored; the full text lives in the worker's own log stream.
// Write failures are logged, never surfaced into the loop.
func (s *Store) RecordInvocation(iteration, attempt int, class loop.Classification, elapsed time.Duration, output string) {
	if s.runID == 0 {
		return
	}
	hash := fmt.Sprintf("%016x", xxhash.Sum64String(output))
	_, err := s.db.Exec(
		`INSERT INTO invocations (run_id, iteration, attempt, classification, elapsed_ms, output_hash, output_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, iteration, attempt, class.String(), elapsed.Milliseconds(), hash, len(output), time.Now().UTC())
	if err != nil {
		logger.Warn("Failed to record invocation: %v", err)
	}
}

// FinishRun stamps the current run with its outcome.
func (s *Store) FinishRun(result *loop.Result) error {
	if s.runID == 0 {
		return fmt.Errorf("no run in progress")
	}
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, iterations = ?, invocations = ? WHERE id = ?`,
		time.Now().UTC(), result.Status.String(), result.Iterations, result.Invocations, s.runID)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	return nil
}

// Run is one ledger row
type Run struct {
	ID            int64
	Worker        string
	MaxIterations int
	StartedAt     time.Time
	FinishedAt    *time.Time
	Status        string
	Iterations    int
	Invocations   int
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, worker, max_iterations, started_at, finished_at,
		        COALESCE(status, ''), COALESCE(iterations, 0), COALESCE(invocations, 0)
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Worker, &r.MaxIterations, &r.StartedAt,
			&r.FinishedAt, &r.Status, &r.Iterations, &r.Invocations); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
