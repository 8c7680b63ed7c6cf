// Package session records what happened during an orchestrator run: which
// tasks ran, what they printed, and how they ended. One Store instance
// corresponds to one session row; output lines are buffered in memory and
// flushed to SQLite in batches via Save.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const queryTimeout = 5 * time.Second

// TaskRun is one task's recorded lifecycle within a session.
type TaskRun struct {
	TaskID    string
	Command   string
	Status    string
	ExitCode  *int
	StartedAt time.Time
	EndedAt   *time.Time
}

// OutputLine is one persisted line of task output.
type OutputLine struct {
	TaskID    string
	Line      string
	Timestamp time.Time
}

// Recorder is the session collaborator the orchestrator loop writes
// through. Only the loop calls it; scheduler and executor never touch
// persistence directly.
type Recorder interface {
	StartTask(ctx context.Context, taskID, command string) error
	AddOutput(taskID, line string)
	EndTask(ctx context.Context, taskID, status string, exitCode *int) error
	Save(ctx context.Context) error
	Close(ctx context.Context) error
}

// Store implements Recorder over SQLite.
type Store struct {
	db        *sql.DB
	sessionID string

	mu      sync.Mutex
	pending []OutputLine
}

// New creates a SQLite-backed store at the given path and opens a new
// session row for the project. Creates parent directories if needed.
// Enables WAL mode and a busy timeout.
func New(ctx context.Context, dbPath, project string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating session db directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	return newStore(ctx, db, project)
}

// NewMemoryStore creates an in-memory store for testing. Uses a shared
// cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context, project string) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening memory db: %w", err)
	}
	return newStore(ctx, db, project)
}

func newStore(ctx context.Context, db *sql.DB, project string) (*Store, error) {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	db.SetMaxOpenConns(2)

	s := &Store{db: db, sessionID: uuid.NewString()}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project) VALUES (?, ?)`, s.sessionID, project); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session row: %w", err)
	}
	return s, nil
}

// SessionID returns the UUID of the session this store records into.
func (s *Store) SessionID() string { return s.sessionID }

// StartTask records that a task's process was spawned.
func (s *Store) StartTask(ctx context.Context, taskID, command string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs (session_id, task_id, command, status)
		VALUES (?, ?, ?, 'running')
		ON CONFLICT(session_id, task_id) DO UPDATE SET
			command = excluded.command,
			status = 'running',
			started_at = CURRENT_TIMESTAMP,
			ended_at = NULL
	`, s.sessionID, taskID, command)
	if err != nil {
		return fmt.Errorf("recording task start: %w", err)
	}
	return nil
}

// AddOutput buffers one output line in memory. Lines hit the database only
// on the next Save, so the hot event-consumption path never blocks on disk.
func (s *Store) AddOutput(taskID, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, OutputLine{TaskID: taskID, Line: line, Timestamp: time.Now()})
}

// EndTask records a task's terminal status. exitCode is nil for tasks that
// failed before or without producing an exit code.
func (s *Store) EndTask(ctx context.Context, taskID, status string, exitCode *int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE task_runs
		SET status = ?, exit_code = ?, ended_at = CURRENT_TIMESTAMP
		WHERE session_id = ? AND task_id = ?
	`, status, exitCode, s.sessionID, taskID)
	if err != nil {
		return fmt.Errorf("recording task end: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording task end: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %q has no run row in session %s", taskID, s.sessionID)
	}
	return nil
}

// Save flushes all buffered output lines in one transaction. The buffer is
// only cleared after a successful commit, so a failed Save can be retried
// without losing lines.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning flush transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO task_output (session_id, task_id, line, timestamp)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing output insert: %w", err)
	}
	defer stmt.Close()

	for _, ol := range pending {
		if _, err := stmt.ExecContext(ctx, s.sessionID, ol.TaskID, ol.Line, ol.Timestamp); err != nil {
			return fmt.Errorf("inserting output line: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing flush: %w", err)
	}

	s.mu.Lock()
	s.pending = s.pending[len(pending):]
	s.mu.Unlock()
	return nil
}

// Close flushes any remaining output, stamps the session's end time, and
// closes the database.
func (s *Store) Close(ctx context.Context) error {
	saveErr := s.Save(ctx)

	endCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, endErr := s.db.ExecContext(endCtx,
		`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE id = ?`, s.sessionID)

	closeErr := s.db.Close()
	if saveErr != nil {
		return saveErr
	}
	if endErr != nil {
		return fmt.Errorf("stamping session end: %w", endErr)
	}
	return closeErr
}

// Runs returns the recorded task runs for this session in start order.
func (s *Store) Runs(ctx context.Context) ([]TaskRun, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, command, status, exit_code, started_at, ended_at
		FROM task_runs
		WHERE session_id = ?
		ORDER BY started_at ASC, task_id ASC
	`, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying task runs: %w", err)
	}
	defer rows.Close()

	runs := []TaskRun{}
	for rows.Next() {
		var run TaskRun
		var exitCode sql.NullInt64
		var endedAt sql.NullTime
		if err := rows.Scan(&run.TaskID, &run.Command, &run.Status, &exitCode, &run.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scanning task run: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			run.ExitCode = &code
		}
		if endedAt.Valid {
			t := endedAt.Time
			run.EndedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task runs: %w", err)
	}
	return runs, nil
}

// Output returns a task's persisted output lines in emission order.
// Buffered lines not yet flushed by Save are not included.
func (s *Store) Output(ctx context.Context, taskID string) ([]OutputLine, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, line, timestamp
		FROM task_output
		WHERE session_id = ? AND task_id = ?
		ORDER BY id ASC
	`, s.sessionID, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying task output: %w", err)
	}
	defer rows.Close()

	lines := []OutputLine{}
	for rows.Next() {
		var ol OutputLine
		if err := rows.Scan(&ol.TaskID, &ol.Line, &ol.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning output line: %w", err)
		}
		lines = append(lines, ol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task output: %w", err)
	}
	return lines, nil
}
