package sqlite

import (
	"fmt"
	"path/filepath"
	"strings"

	"codenav/internal/position"
	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

// ReplaceFileIndex swaps one file's symbols, occurrences and skipped
// ranges in a single transaction and bumps the workspace version.
func (s *Store) ReplaceFileIndex(workspaceID string, u *querydb.FileUpdate) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is not open")
	}
	if u == nil {
		return fmt.Errorf("update is nil")
	}
	workspaceID = strings.TrimSpace(workspaceID)
	path := filepath.ToSlash(strings.TrimSpace(u.Path))
	if workspaceID == "" {
		return fmt.Errorf("workspaceID is required")
	}
	if path == "" {
		return fmt.Errorf("path is required")
	}

	if err := s.EnsureWorkspace(workspaceID, ""); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"symbols", "occurrences", "skipped_ranges"} {
		if _, err := tx.Exec(
			`DELETE FROM `+table+` WHERE workspace_id = ? AND path = ?`, workspaceID, path,
		); err != nil {
			return err
		}
	}

	symStmt, err := tx.Prepare(
		`INSERT INTO symbols (workspace_id, path, usr, kind, name, detailed, sym_kind, parent_kind, storage, spell)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer symStmt.Close()
	for _, sym := range u.Symbols {
		if _, err := symStmt.Exec(
			workspaceID, path, int64(sym.USR), int(sym.Kind), sym.Name, sym.Detailed,
			int(sym.SymKind), int(sym.ParentKind), int(sym.Storage), sym.Spell.String(),
		); err != nil {
			return err
		}
	}

	occStmt, err := tx.Prepare(
		`INSERT INTO occurrences (workspace_id, path, usr, kind, span, refcnt)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer occStmt.Close()
	for _, occ := range u.Occurrences {
		if _, err := occStmt.Exec(
			workspaceID, path, int64(occ.USR), int(occ.Kind), occ.Range.String(), occ.Refcnt,
		); err != nil {
			return err
		}
	}

	skipStmt, err := tx.Prepare(
		`INSERT INTO skipped_ranges (workspace_id, path, span) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer skipStmt.Close()
	for _, r := range u.SkippedRanges {
		if _, err := skipStmt.Exec(workspaceID, path, r.String()); err != nil {
			return err
		}
	}

	if err := s.bumpVersion(tx, workspaceID); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadFileIndex reads one file's persisted contribution back. The Content
// field is not stored and comes back empty.
func (s *Store) LoadFileIndex(workspaceID, path string) (*querydb.FileUpdate, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is not open")
	}
	workspaceID = strings.TrimSpace(workspaceID)
	path = filepath.ToSlash(strings.TrimSpace(path))

	u := &querydb.FileUpdate{Path: path}

	rows, err := s.db.Query(
		`SELECT usr, kind, name, detailed, sym_kind, parent_kind, storage, spell
		 FROM symbols WHERE workspace_id = ? AND path = ?`, workspaceID, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			usr                                 int64
			kind, symKind, parentKind, storage int
			name, detailed, spell              string
		)
		if err := rows.Scan(&usr, &kind, &name, &detailed, &symKind, &parentKind, &storage, &spell); err != nil {
			return nil, err
		}
		u.Symbols = append(u.Symbols, querydb.SymbolData{
			USR:        uint64(usr),
			Kind:       querydb.Kind(kind),
			Name:       name,
			Detailed:   detailed,
			SymKind:    protocol.SymbolKind(symKind),
			ParentKind: protocol.SymbolKind(parentKind),
			Storage:    protocol.StorageClass(storage),
			Spell:      position.RangeFromString(spell),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	occRows, err := s.db.Query(
		`SELECT usr, kind, span, refcnt
		 FROM occurrences WHERE workspace_id = ? AND path = ?`, workspaceID, path)
	if err != nil {
		return nil, err
	}
	defer occRows.Close()
	for occRows.Next() {
		var (
			usr          int64
			kind, refcnt int
			rng          string
		)
		if err := occRows.Scan(&usr, &kind, &rng, &refcnt); err != nil {
			return nil, err
		}
		u.Occurrences = append(u.Occurrences, querydb.Occurrence{
			USR:    uint64(usr),
			Kind:   querydb.Kind(kind),
			Range:  position.RangeFromString(rng),
			Refcnt: refcnt,
		})
	}
	if err := occRows.Err(); err != nil {
		return nil, err
	}

	skipRows, err := s.db.Query(
		`SELECT span FROM skipped_ranges WHERE workspace_id = ? AND path = ?`, workspaceID, path)
	if err != nil {
		return nil, err
	}
	defer skipRows.Close()
	for skipRows.Next() {
		var rng string
		if err := skipRows.Scan(&rng); err != nil {
			return nil, err
		}
		u.SkippedRanges = append(u.SkippedRanges, position.RangeFromString(rng))
	}
	if err := skipRows.Err(); err != nil {
		return nil, err
	}

	return u, nil
}

// ListFiles returns every indexed path in the workspace.
func (s *Store) ListFiles(workspaceID string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is not open")
	}
	rows, err := s.db.Query(
		`SELECT path FROM files WHERE workspace_id = ? ORDER BY path`, strings.TrimSpace(workspaceID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
