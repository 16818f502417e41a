// Package store provides SQLite persistence for tally.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/logging"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: all methods are safe for concurrent use via internal mutex.
//
// Events live in one table partitioned by source, so each source's set
// can be replaced wholesale at the start of a run without touching the
// other's. A partition that was never written reads back as empty.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// LogEntry is one reference-log row: a commit on the default branch,
// kept regardless of author so a report can cite repository activity
// beyond the target person's own.
type LogEntry struct {
	SHA        string
	OccurredOn time.Time
	Author     string
	Message    string
}

// RunRecord describes one aggregation run.
type RunRecord struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Username      string
	Repo          string
	Project       string
	CodeEvents    int
	TrackerEvents int
}

// Stats summarizes what the store currently holds.
type Stats struct {
	CodeEvents    int
	TrackerEvents int
	BranchCommits int
	Earliest      time.Time
	Latest        time.Time
	HasData       bool
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// For in-memory databases, use shared cache mode so all connections
		// in the pool see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// For in-memory databases, limit to 1 connection to avoid issues
	// with multiple connections getting different databases
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Enable WAL mode for file-based databases (not :memory:)
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		source TEXT NOT NULL,
		identity_key TEXT NOT NULL,
		occurred_on TEXT NOT NULL,
		origin_context TEXT,
		author TEXT,
		raw_text TEXT,
		summary TEXT,
		hours REAL DEFAULT 0,
		project TEXT,
		task_key TEXT,
		PRIMARY KEY (source, identity_key)
	);

	CREATE INDEX IF NOT EXISTS idx_events_day ON events(occurred_on);

	CREATE TABLE IF NOT EXISTS branch_log (
		sha TEXT PRIMARY KEY,
		occurred_on TEXT NOT NULL,
		author TEXT,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_branch_log_day ON branch_log(occurred_on);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		username TEXT,
		repo TEXT,
		project TEXT,
		code_events INTEGER DEFAULT 0,
		tracker_events INTEGER DEFAULT 0
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ReplaceSource overwrites one source's partition with the given events,
// returning the number of rows written. Events whose identity key
// repeats within the batch keep the first occurrence; rows from other
// sources are untouched.
// Thread-safe: acquires write lock.
func (s *Store) ReplaceSource(source event.Source, events []event.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events WHERE source = ?", string(source)); err != nil {
		return 0, fmt.Errorf("clear %s events: %w", source, err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO events (
			source, identity_key, occurred_on, origin_context, author,
			raw_text, summary, hours, project, task_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, e := range events {
		result, err := stmt.Exec(
			string(source),
			e.IdentityKey,
			event.DayString(e.OccurredOn),
			e.OriginContext,
			e.Author,
			e.RawText,
			e.Summary,
			e.Hours,
			e.Project,
			e.TaskKey,
		)
		if err != nil {
			return written, fmt.Errorf("insert event %s: %w", e.IdentityKey, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return written, err
		}
		if affected > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	if written < len(events) {
		logging.Debug("duplicate identity keys collapsed on write",
			"source", source, "given", len(events), "written", written)
	}
	return written, nil
}

// EventsBySource retrieves one source's partition in ascending day
// order; same-day rows keep insertion order. A source never written
// yields an empty slice, not an error.
// Thread-safe: acquires read lock.
func (s *Store) EventsBySource(source event.Source) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT source, identity_key, occurred_on, origin_context, author,
			raw_text, summary, hours, project, task_key
		FROM events
		WHERE source = ?
		ORDER BY occurred_on ASC, rowid ASC
	`
	return s.queryEvents(query, string(source))
}

// EventsInRange retrieves events from every source with occurrence days
// inside [start, end], both ends inclusive, in ascending day order.
// Thread-safe: acquires read lock.
func (s *Store) EventsInRange(start, end time.Time) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT source, identity_key, occurred_on, origin_context, author,
			raw_text, summary, hours, project, task_key
		FROM events
		WHERE occurred_on BETWEEN ? AND ?
		ORDER BY occurred_on ASC, rowid ASC
	`
	return s.queryEvents(query, event.DayString(start), event.DayString(end))
}

// DateRange returns the earliest and latest occurrence days across all
// sources. ok is false when the store holds no events; that is a normal
// answer, not an error.
// Thread-safe: acquires read lock.
func (s *Store) DateRange() (min, max time.Time, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lo, hi sql.NullString
	row := s.db.QueryRow("SELECT MIN(occurred_on), MAX(occurred_on) FROM events")
	if err := row.Scan(&lo, &hi); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("scan date range: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	min, err = event.ParseDay(lo.String)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	max, err = event.ParseDay(hi.String)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return min, max, true, nil
}

// queryEvents executes a query and scans results into events.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryEvents(query string, args ...any) ([]event.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var e event.Event
		var source, day string
		err := rows.Scan(
			&source,
			&e.IdentityKey,
			&day,
			&e.OriginContext,
			&e.Author,
			&e.RawText,
			&e.Summary,
			&e.Hours,
			&e.Project,
			&e.TaskKey,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Source = event.Source(source)
		e.OccurredOn, err = event.ParseDay(day)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", e.IdentityKey, err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReplaceBranchLog overwrites the default-branch reference log.
// Thread-safe: acquires write lock.
func (s *Store) ReplaceBranchLog(entries []LogEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM branch_log"); err != nil {
		return 0, fmt.Errorf("clear branch log: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO branch_log (sha, occurred_on, author, message)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, entry := range entries {
		result, err := stmt.Exec(entry.SHA, event.DayString(entry.OccurredOn), entry.Author, entry.Message)
		if err != nil {
			return written, fmt.Errorf("insert log entry %s: %w", entry.SHA, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return written, err
		}
		if affected > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// BranchLogCount returns the number of reference-log rows.
// Thread-safe: acquires read lock.
func (s *Store) BranchLogCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM branch_log").Scan(&count)
	return count, err
}

// RecordRun registers the start of an aggregation run.
// Thread-safe: acquires write lock.
func (s *Store) RecordRun(id, username, repo, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO runs (id, started_at, username, repo, project)
		VALUES (?, ?, ?, ?, ?)
	`, id, time.Now(), username, repo, project)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// FinishRun closes out a run with its per-source event counts.
// Thread-safe: acquires write lock.
func (s *Store) FinishRun(id string, codeEvents, trackerEvents int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE runs SET finished_at = ?, code_events = ?, tracker_events = ?
		WHERE id = ?
	`, time.Now(), codeEvents, trackerEvents, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when no run has
// been recorded yet.
// Thread-safe: acquires read lock.
func (s *Store) LastRun() (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r RunRecord
	var finished sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, started_at, finished_at, username, repo, project, code_events, tracker_events
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(&r.ID, &r.StartedAt, &finished, &r.Username, &r.Repo, &r.Project, &r.CodeEvents, &r.TrackerEvents)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	r.FinishedAt = finished.Time
	return &r, nil
}

// Stats reports per-source event counts, the reference-log size, and
// the combined date range.
// Thread-safe: acquires read lock internally via the methods it calls.
func (s *Store) Stats() (Stats, error) {
	var st Stats

	s.mu.RLock()
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM events WHERE source = ?", string(event.SourceCode),
	).Scan(&st.CodeEvents)
	if err == nil {
		err = s.db.QueryRow(
			"SELECT COUNT(*) FROM events WHERE source = ?", string(event.SourceTracker),
		).Scan(&st.TrackerEvents)
	}
	s.mu.RUnlock()
	if err != nil {
		return Stats{}, fmt.Errorf("count events: %w", err)
	}

	if st.BranchCommits, err = s.BranchLogCount(); err != nil {
		return Stats{}, fmt.Errorf("count branch log: %w", err)
	}

	min, max, ok, err := s.DateRange()
	if err != nil {
		return Stats{}, err
	}
	st.Earliest, st.Latest, st.HasData = min, max, ok
	return st, nil
}
