// Package store persists completed pipeline runs to an embedded SQLite
// ledger. A run record captures the outcome of one search (the winning phase
// assignment and its signal), never in-flight machine state.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// Record is one completed pipeline run.
type Record struct {
	Program  string    `cbor:"program"`  // program source text
	Phases   []int64   `cbor:"phases"`   // winning phase assignment
	Feedback bool      `cbor:"feedback"` // topology of the run
	Signal   int64     `cbor:"signal"`   // final signal value
	Recorded time.Time `cbor:"recorded"`
}

// Store is the run ledger.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) a ledger at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	// Busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feedback INTEGER NOT NULL,
		signal INTEGER NOT NULL,
		record BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the ledger.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save records a completed run and returns its ledger id.
func (s *Store) Save(rec *Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Recorded.IsZero() {
		rec.Recorded = time.Now().UTC()
	}
	data, err := MarshalRecord(rec)
	if err != nil {
		return 0, fmt.Errorf("encoding run: %w", err)
	}

	feedback := 0
	if rec.Feedback {
		feedback = 1
	}
	res, err := s.db.Exec(
		"INSERT INTO runs (feedback, signal, record) VALUES (?, ?, ?)",
		feedback, rec.Signal, data,
	)
	if err != nil {
		return 0, fmt.Errorf("saving run: %w", err)
	}
	return res.LastInsertId()
}

// Get loads a run by ledger id.
func (s *Store) Get(id int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow("SELECT record FROM runs WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %d: %w", id, err)
	}
	return UnmarshalRecord(data)
}

// Best returns the highest-signal run recorded for the given topology.
func (s *Store) Best(feedback bool) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb := 0
	if feedback {
		fb = 1
	}
	var data []byte
	err := s.db.QueryRow(
		"SELECT record FROM runs WHERE feedback = ? ORDER BY signal DESC, id ASC LIMIT 1", fb,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading best run: %w", err)
	}
	return UnmarshalRecord(data)
}
