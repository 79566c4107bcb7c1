package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound is returned by Get for an unknown snapshot ID.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot sources.
const (
	SourceConfigure = "configure"
	SourceSet       = "set"
	SourceRestore   = "restore"
	SourceImport    = "import"
)

// History is a SQLite ledger of saved configurations and script patches.
type History struct {
	db *sql.DB
}

type Snapshot struct {
	ID        int64           `json:"id"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	Config    Hyperparameters `json:"config"`
}

type PatchEvent struct {
	ID           int64     `json:"id"`
	Script       string    `json:"script"`
	LinesChanged int       `json:"lines_changed"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewHistory opens (creating if needed) the ledger database at path.
func NewHistory(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer; keeps the file lock simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &History{db: db}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

// Record stores a snapshot of cfg and returns its ID.
func (h *History) Record(source string, cfg Hyperparameters) (int64, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	res, err := h.db.Exec(
		`INSERT INTO snapshots (source, config, created_at) VALUES (?, ?, ?)`,
		source, string(body), now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record snapshot: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent snapshots first.
func (h *History) List(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(
		`SELECT id, source, config, created_at FROM snapshots ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}

// Get returns the snapshot with the given ID.
func (h *History) Get(id int64) (*Snapshot, error) {
	row := h.db.QueryRow(`SELECT id, source, config, created_at FROM snapshots WHERE id = ?`, id)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotNotFound, id)
	}
	return s, err
}

// RecordPatch notes that script was patched.
func (h *History) RecordPatch(script string, changed int) error {
	_, err := h.db.Exec(
		`INSERT INTO patch_events (script, lines_changed, created_at) VALUES (?, ?, ?)`,
		script, changed, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record patch: %w", err)
	}
	return nil
}

// ListPatches returns the most recent patch events first.
func (h *History) ListPatches(limit int) ([]PatchEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(
		`SELECT id, script, lines_changed, created_at FROM patch_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list patches: %w", err)
	}
	defer rows.Close()

	var events []PatchEvent
	for rows.Next() {
		var (
			e  PatchEvent
			ts string
		)
		if err := rows.Scan(&e.ID, &e.Script, &e.LinesChanged, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan patch event: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("bad patch timestamp %q: %w", ts, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var (
		s    Snapshot
		body string
		ts   string
	)
	if err := row.Scan(&s.ID, &s.Source, &body, &ts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &s.Config); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %d: %w", s.ID, err)
	}
	var err error
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("bad snapshot timestamp %q: %w", ts, err)
	}
	return &s, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
