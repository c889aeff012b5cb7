// Package sqlite persists the symbol index. Each file's contribution is
// replaced atomically, and a whole workspace can be loaded back into the
// in-memory query database at startup.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("dbPath is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return err
	}
	_, _ = s.db.Exec("PRAGMA journal_mode = WAL")

	return execStatements(s.db, schemaSQL)
}

func execStatements(db *sql.DB, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// ApplyBuildPragmas trades durability for speed during bulk indexing.
func (s *Store) ApplyBuildPragmas() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is not open")
	}
	stmts := []string{
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
		"PRAGMA cache_size=-65536;",
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) EnsureWorkspace(id string, root string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is not open")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("workspace id is required")
	}
	_, err := s.db.Exec(
		`INSERT INTO workspaces (id, root, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   root = CASE WHEN excluded.root != '' THEN excluded.root ELSE workspaces.root END`,
		id, root, time.Now().Unix(),
	)
	return err
}

func (s *Store) GetVersion(workspaceID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("store is not open")
	}
	var v int64
	err := s.db.QueryRow(`SELECT version FROM workspaces WHERE id = ?`, strings.TrimSpace(workspaceID)).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

func (s *Store) bumpVersion(tx *sql.Tx, workspaceID string) error {
	_, err := tx.Exec(`UPDATE workspaces SET version = version + 1 WHERE id = ?`, workspaceID)
	return err
}

func (s *Store) UpsertFile(workspaceID, path string, size, mtime int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is not open")
	}
	workspaceID = strings.TrimSpace(workspaceID)
	path = filepath.ToSlash(path)
	if workspaceID == "" {
		return fmt.Errorf("workspaceID is required")
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	_, err := s.db.Exec(
		`INSERT INTO files (workspace_id, path, size, mtime) VALUES (?, ?, ?, ?)
		 ON CONFLICT(workspace_id, path) DO UPDATE SET
		   size=excluded.size, mtime=excluded.mtime`,
		workspaceID, path, size, mtime,
	)
	return err
}

// FileMeta returns (size, mtime, true) for a known file. Unknown files
// report ok=false, not an error.
func (s *Store) FileMeta(workspaceID, path string) (int64, int64, bool, error) {
	if s == nil || s.db == nil {
		return 0, 0, false, fmt.Errorf("store is not open")
	}
	var size, mtime int64
	err := s.db.QueryRow(
		`SELECT size, mtime FROM files WHERE workspace_id = ? AND path = ?`,
		strings.TrimSpace(workspaceID), filepath.ToSlash(path),
	).Scan(&size, &mtime)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return size, mtime, true, nil
}
