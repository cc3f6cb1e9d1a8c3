package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// SQLiteStore persists snapshots to a local SQLite database so jobs survive
// process restarts. The full snapshot is stored as a JSON document; status
// and created_at are lifted into columns for listing without deserializing.
type SQLiteStore struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

var _ SnapshotStore = (*SQLiteStore)(nil)

// OpenSQLite opens the snapshot database at the given path, creating parent
// directories and applying the schema. WAL mode is enabled for concurrent
// reads.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS job_snapshots (
			job_id     TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			created_at TEXT NOT NULL,
			snapshot   TEXT NOT NULL
		)
	`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create job_snapshots table: %w", err)
	}

	return &SQLiteStore{conn: conn, path: path}, nil
}

// Path returns the path to the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// SaveSnapshot inserts or replaces the snapshot for its job.
func (s *SQLiteStore) SaveSnapshot(snap models.JobSnapshot) error {
	if snap.JobID == "" {
		return models.InvalidRequestf("snapshot missing job id")
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.conn.Exec(`
		INSERT INTO job_snapshots (job_id, status, created_at, snapshot)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			snapshot = excluded.snapshot
	`, snap.JobID, string(snap.Status), snap.CreatedAt.UTC().Format(time.RFC3339Nano), string(body))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the snapshot for the job, or ErrNotFound.
func (s *SQLiteStore) GetSnapshot(jobID string) (models.JobSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	row := s.conn.QueryRow("SELECT snapshot FROM job_snapshots WHERE job_id = ?", jobID)
	if err := row.Scan(&body); err == sql.ErrNoRows {
		return models.JobSnapshot{}, models.NotFoundf("job %s", jobID)
	} else if err != nil {
		return models.JobSnapshot{}, fmt.Errorf("get snapshot: %w", err)
	}

	var snap models.JobSnapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return models.JobSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns all snapshots, newest first.
func (s *SQLiteStore) ListSnapshots() ([]models.JobSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query("SELECT snapshot FROM job_snapshots ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.JobSnapshot
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap models.JobSnapshot
		if err := json.Unmarshal([]byte(body), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
