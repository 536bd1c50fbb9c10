package trace

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ramyak-mehra/svm/vm"
)

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("trace: run not found")

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	program     TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	steps       INTEGER NOT NULL DEFAULT 0,
	halted      INTEGER NOT NULL DEFAULT 0,
	error       TEXT
)`, `
CREATE TABLE IF NOT EXISTS steps (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	ip          INTEGER NOT NULL,
	op          TEXT NOT NULL,
	next_ip     INTEGER NOT NULL,
	stack_depth INTEGER NOT NULL,
	frame_depth INTEGER NOT NULL,
	top         TEXT,
	error       TEXT,
	PRIMARY KEY (run_id, seq)
)`}

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store records traced runs in a SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the trace database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating trace directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run records the steps of one execution. It implements vm.Tracer; all
// rows are written in a single transaction committed by Finish.
type Run struct {
	ID string

	tx     *sql.Tx
	insert *sql.Stmt
	steps  int
	err    error
	done   bool
}

// Begin starts recording a run of the named program.
func (s *Store) Begin(program string) (*Run, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning trace transaction: %w", err)
	}

	id := uuid.NewString()
	_, err = tx.Exec("INSERT INTO runs (id, program, started_at) VALUES (?, ?, ?)",
		id, program, time.Now().UTC().Format(timeFormat))
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("inserting run: %w", err)
	}

	insert, err := tx.Prepare(`INSERT INTO steps
		(run_id, seq, ip, op, next_ip, stack_depth, frame_depth, top, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("preparing step insert: %w", err)
	}

	return &Run{ID: id, tx: tx, insert: insert}, nil
}

// TraceStep inserts one row. The first insert failure stops recording and
// is reported by Finish.
func (r *Run) TraceStep(ev vm.StepEvent) {
	if r.err != nil || r.done {
		return
	}

	var top, errText sql.NullString
	if ev.StackDepth > 0 {
		top = sql.NullString{String: ev.Top.Literal(), Valid: true}
	}
	if ev.Err != nil {
		errText = sql.NullString{String: ev.Err.Error(), Valid: true}
	}

	_, err := r.insert.Exec(r.ID, ev.Seq, ev.IP, ev.Op, ev.NextIP, ev.StackDepth, ev.FrameDepth, top, errText)
	if err != nil {
		r.err = fmt.Errorf("inserting step %d: %w", ev.Seq, err)
		return
	}
	r.steps++
}

// Finish records the outcome of the run and commits it.
func (r *Run) Finish(halted bool, runErr error) error {
	if r.done {
		return nil
	}
	r.done = true
	r.insert.Close()

	if r.err != nil {
		r.tx.Rollback()
		return r.err
	}

	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	haltedFlag := 0
	if halted {
		haltedFlag = 1
	}
	_, err := r.tx.Exec("UPDATE runs SET finished_at = ?, steps = ?, halted = ?, error = ? WHERE id = ?",
		time.Now().UTC().Format(timeFormat), r.steps, haltedFlag, errText, r.ID)
	if err != nil {
		r.tx.Rollback()
		return fmt.Errorf("updating run: %w", err)
	}

	if err := r.tx.Commit(); err != nil {
		return fmt.Errorf("committing trace: %w", err)
	}
	return nil
}

// RunInfo is a stored run summary.
type RunInfo struct {
	ID         string
	Program    string
	StartedAt  string
	FinishedAt string
	Steps      int
	Halted     bool
	Error      string
}

// StepRecord is one stored step.
type StepRecord struct {
	Seq        int
	IP         int
	Op         string
	NextIP     int
	StackDepth int
	FrameDepth int
	Top        string
	Error      string
}

// Runs returns all finished runs, most recent first.
func (s *Store) Runs() ([]RunInfo, error) {
	rows, err := s.db.Query(`SELECT id, program, started_at, finished_at, steps, halted, error
		FROM runs WHERE finished_at IS NOT NULL ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var finished, errText sql.NullString
		if err := rows.Scan(&info.ID, &info.Program, &info.StartedAt, &finished, &info.Steps, &info.Halted, &errText); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		info.FinishedAt = finished.String
		info.Error = errText.String
		out = append(out, info)
	}
	return out, rows.Err()
}

// Steps returns the recorded steps of a run in execution order.
func (s *Store) Steps(runID string) ([]StepRecord, error) {
	var exists int
	err := s.db.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.Query(`SELECT seq, ip, op, next_ip, stack_depth, frame_depth, top, error
		FROM steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var rec StepRecord
		var top, errText sql.NullString
		if err := rows.Scan(&rec.Seq, &rec.IP, &rec.Op, &rec.NextIP, &rec.StackDepth, &rec.FrameDepth, &top, &errText); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		rec.Top = top.String
		rec.Error = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
