// Package buildsdb persists named builds and the API credential in a local
// SQLite database.
package buildsdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"voxelstudio.ai/internal/model"
)

// ErrNotFound is returned when the requested build or credential does not
// exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// BuildSummary is the list-all row: metadata without the layer payload.
type BuildSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL keeps saves cheap; NORMAL is plenty for a client-local store.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_builds_updated ON builds(updated_at);`,
		`CREATE TABLE IF NOT EXISTS credentials (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// List returns all stored builds, most recently updated first.
func (s *Store) List() ([]BuildSummary, error) {
	rows, err := s.db.Query(`SELECT id, name, updated_at FROM builds ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BuildSummary
	for rows.Next() {
		var b BuildSummary
		var updated string
		if err := rows.Scan(&b.ID, &b.Name, &updated); err != nil {
			return nil, err
		}
		b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Get loads one build by id. The stored JSON passes through the model
// boundary, so legacy bare-id cells are normalized on the way out.
func (s *Store) Get(id string) (*model.Build, error) {
	var raw string
	err := s.db.QueryRow(`SELECT json FROM builds WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var b model.Build
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("build %s: %w", id, err)
	}
	return &b, nil
}

// Upsert stores the build keyed by its id.
func (s *Store) Upsert(b *model.Build) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO builds(id, name, json, created_at, updated_at) VALUES(?,?,?,?,?)`,
		b.ID, b.Name, string(raw),
		b.CreatedAt.UTC().Format(time.RFC3339Nano),
		b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Delete removes a build; deleting an absent id is not an error.
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM builds WHERE id = ?`, id)
	return err
}

// SetCredential persists a named credential (e.g. the chat API key) across
// sessions.
func (s *Store) SetCredential(name, value string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO credentials(name, value, updated_at) VALUES(?,?,?)`,
		name, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetCredential returns the stored value for name.
func (s *Store) GetCredential(name string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}
