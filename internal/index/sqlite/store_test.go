package sqlite

import (
	"path/filepath"
	"testing"

	"codenav/internal/position"
	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty dbPath")
	}
}

func TestReplaceAndLoadFileIndex(t *testing.T) {
	s := openTestStore(t)

	u := &querydb.FileUpdate{
		Path: "src/a.cc",
		Symbols: []querydb.SymbolData{
			{
				USR: 11, Kind: querydb.KindFunc, Name: "frob", Detailed: "void frob()",
				SymKind: protocol.SymbolKindFunction, Storage: protocol.StorageStatic,
				Spell: position.NewRange(0, 5, 0, 9),
			},
			{
				USR: 12, Kind: querydb.KindVar, Name: "count",
				SymKind: protocol.SymbolKindVariable,
				// Declaration only: invalid spell must round-trip as invalid.
				Spell: position.NewRange(-1, -1, -1, -1),
			},
		},
		Occurrences: []querydb.Occurrence{
			{USR: 11, Kind: querydb.KindFunc, Range: position.NewRange(0, 5, 0, 9), Refcnt: 1},
			{USR: 12, Kind: querydb.KindVar, Range: position.NewRange(8, 2, 8, 7), Refcnt: 0},
		},
		SkippedRanges: []position.Range{position.NewRange(3, 0, 6, 0)},
		Content:       "should not be stored",
	}
	if err := s.ReplaceFileIndex("ws1", u); err != nil {
		t.Fatalf("ReplaceFileIndex: %v", err)
	}

	got, err := s.LoadFileIndex("ws1", "src/a.cc")
	if err != nil {
		t.Fatalf("LoadFileIndex: %v", err)
	}
	if got.Content != "" {
		t.Fatalf("content should not be persisted, got %q", got.Content)
	}
	if len(got.Symbols) != 2 {
		t.Fatalf("symbols=%v", got.Symbols)
	}
	var frob, count *querydb.SymbolData
	for i := range got.Symbols {
		switch got.Symbols[i].Name {
		case "frob":
			frob = &got.Symbols[i]
		case "count":
			count = &got.Symbols[i]
		}
	}
	if frob == nil || count == nil {
		t.Fatalf("symbols=%v", got.Symbols)
	}
	if frob.Detailed != "void frob()" || frob.Storage != protocol.StorageStatic {
		t.Fatalf("frob=%+v", frob)
	}
	if frob.Spell != position.NewRange(0, 5, 0, 9) {
		t.Fatalf("frob.Spell=%v", frob.Spell)
	}
	if count.Spell.Valid() {
		t.Fatalf("declaration-only spell should stay invalid, got %v", count.Spell)
	}
	if len(got.Occurrences) != 2 {
		t.Fatalf("occurrences=%v", got.Occurrences)
	}
	for _, occ := range got.Occurrences {
		if occ.USR == 12 && occ.Refcnt != 0 {
			t.Fatalf("refcnt lost: %+v", occ)
		}
	}
	if len(got.SkippedRanges) != 1 || got.SkippedRanges[0] != position.NewRange(3, 0, 6, 0) {
		t.Fatalf("skipped=%v", got.SkippedRanges)
	}
}

func TestReplaceFileIndexIsSwap(t *testing.T) {
	s := openTestStore(t)

	first := &querydb.FileUpdate{
		Path: "src/a.cc",
		Symbols: []querydb.SymbolData{
			{USR: 1, Kind: querydb.KindFunc, Name: "old", SymKind: protocol.SymbolKindFunction,
				Spell: position.NewRange(0, 0, 0, 3)},
		},
		Occurrences: []querydb.Occurrence{
			{USR: 1, Kind: querydb.KindFunc, Range: position.NewRange(0, 0, 0, 3), Refcnt: 1},
		},
	}
	if err := s.ReplaceFileIndex("ws1", first); err != nil {
		t.Fatalf("ReplaceFileIndex: %v", err)
	}

	second := &querydb.FileUpdate{
		Path: "src/a.cc",
		Symbols: []querydb.SymbolData{
			{USR: 2, Kind: querydb.KindType, Name: "New", SymKind: protocol.SymbolKindClass,
				Spell: position.NewRange(1, 6, 1, 9)},
		},
	}
	if err := s.ReplaceFileIndex("ws1", second); err != nil {
		t.Fatalf("ReplaceFileIndex: %v", err)
	}

	got, err := s.LoadFileIndex("ws1", "src/a.cc")
	if err != nil {
		t.Fatalf("LoadFileIndex: %v", err)
	}
	if len(got.Symbols) != 1 || got.Symbols[0].Name != "New" {
		t.Fatalf("stale symbols survived: %v", got.Symbols)
	}
	if len(got.Occurrences) != 0 {
		t.Fatalf("stale occurrences survived: %v", got.Occurrences)
	}
}

func TestVersionBumpsPerReplace(t *testing.T) {
	s := openTestStore(t)

	v0, err := s.GetVersion("ws1")
	if err != nil || v0 != 0 {
		t.Fatalf("initial version=%d err=%v", v0, err)
	}

	u := &querydb.FileUpdate{Path: "src/a.cc"}
	if err := s.ReplaceFileIndex("ws1", u); err != nil {
		t.Fatalf("ReplaceFileIndex: %v", err)
	}
	if err := s.ReplaceFileIndex("ws1", u); err != nil {
		t.Fatalf("ReplaceFileIndex: %v", err)
	}

	v, err := s.GetVersion("ws1")
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if v != 2 {
		t.Fatalf("version=%d", v)
	}
}

func TestWorkspaceIsolation(t *testing.T) {
	s := openTestStore(t)

	u := &querydb.FileUpdate{
		Path: "src/a.cc",
		Symbols: []querydb.SymbolData{
			{USR: 1, Kind: querydb.KindFunc, Name: "frob", SymKind: protocol.SymbolKindFunction},
		},
	}
	if err := s.ReplaceFileIndex("ws1", u); err != nil {
		t.Fatalf("ReplaceFileIndex: %v", err)
	}

	got, err := s.LoadFileIndex("ws2", "src/a.cc")
	if err != nil {
		t.Fatalf("LoadFileIndex: %v", err)
	}
	if len(got.Symbols) != 0 {
		t.Fatalf("workspace leak: %v", got.Symbols)
	}
}

func TestFileMetaAndListFiles(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnsureWorkspace("ws1", "/repo"); err != nil {
		t.Fatalf("EnsureWorkspace: %v", err)
	}
	if err := s.UpsertFile("ws1", "src/b.cc", 120, 1700000000); err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}
	if err := s.UpsertFile("ws1", "src/a.cc", 80, 1700000100); err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}

	size, mtime, ok, err := s.FileMeta("ws1", "src/b.cc")
	if err != nil || !ok {
		t.Fatalf("FileMeta: ok=%v err=%v", ok, err)
	}
	if size != 120 || mtime != 1700000000 {
		t.Fatalf("size=%d mtime=%d", size, mtime)
	}

	// Upsert replaces the metadata.
	if err := s.UpsertFile("ws1", "src/b.cc", 130, 1700000200); err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}
	size, mtime, ok, err = s.FileMeta("ws1", "src/b.cc")
	if err != nil || !ok || size != 130 || mtime != 1700000200 {
		t.Fatalf("size=%d mtime=%d ok=%v err=%v", size, mtime, ok, err)
	}

	_, _, ok, err = s.FileMeta("ws1", "src/missing.cc")
	if err != nil {
		t.Fatalf("FileMeta: %v", err)
	}
	if ok {
		t.Fatal("unknown file should report ok=false")
	}

	paths, err := s.ListFiles("ws1")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(paths) != 2 || paths[0] != "src/a.cc" || paths[1] != "src/b.cc" {
		t.Fatalf("paths=%v", paths)
	}
}

func TestClosedStoreIsSafe(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
	if _, err := s.GetVersion("ws1"); err == nil {
		t.Fatal("expected error on nil store")
	}
	if err := s.ReplaceFileIndex("ws1", &querydb.FileUpdate{Path: "a"}); err == nil {
		t.Fatal("expected error on nil store")
	}
}
