package search

import (
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReplaceAndSearch(t *testing.T) {
	s := openTestStore(t)

	docs := []SymbolDoc{
		{Name: "frobnicate", Detailed: "void frobnicate()", Path: "src/a.cc", Kind: "func", Line: 3, Char: 5},
		{Name: "counter", Detailed: "int counter", Path: "src/a.cc", Kind: "var", Line: 8, Char: 4},
	}
	if err := s.ReplaceFileSymbols("src/a.cc", docs); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}

	hits, err := s.Search("frobnicate", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits=%v", hits)
	}
	h := hits[0]
	if h.Name != "frobnicate" || h.Path != "src/a.cc" || h.Kind != "func" || h.Line != 3 || h.Char != 5 {
		t.Fatalf("hit=%+v", h)
	}
	if h.Detailed != "void frobnicate()" {
		t.Fatalf("detailed=%q", h.Detailed)
	}
}

func TestPrefixMatch(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceFileSymbols("src/a.cc", []SymbolDoc{
		{Name: "frobnicate", Path: "src/a.cc", Kind: "func"},
	}); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}

	hits, err := s.Search("frob", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "frobnicate" {
		t.Fatalf("hits=%v", hits)
	}
}

func TestReplaceRemovesStaleDocs(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceFileSymbols("src/a.cc", []SymbolDoc{
		{Name: "oldname", Path: "src/a.cc", Kind: "func"},
		{Name: "keepme", Path: "src/a.cc", Kind: "var"},
	}); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}
	if err := s.ReplaceFileSymbols("src/a.cc", []SymbolDoc{
		{Name: "keepme", Path: "src/a.cc", Kind: "var"},
	}); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}

	hits, err := s.Search("oldname", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("stale doc survived: %v", hits)
	}
	hits, err = s.Search("keepme", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits=%v", hits)
	}
}

func TestReplaceWithEmptyClearsFile(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceFileSymbols("src/a.cc", []SymbolDoc{
		{Name: "gone", Path: "src/a.cc", Kind: "func"},
	}); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}
	if err := s.ReplaceFileSymbols("src/a.cc", nil); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}

	hits, err := s.Search("gone", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits=%v", hits)
	}
}

func TestVersionBumps(t *testing.T) {
	s := openTestStore(t)

	v0, err := s.Version()
	if err != nil || v0 != 0 {
		t.Fatalf("initial version=%d err=%v", v0, err)
	}

	if err := s.ReplaceFileSymbols("src/a.cc", nil); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}
	if err := s.ReplaceFileSymbols("src/b.cc", nil); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}

	v, err := s.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != 2 {
		t.Fatalf("version=%d", v)
	}
}

func TestReopenKeepsIndex(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.ReplaceFileSymbols("src/a.cc", []SymbolDoc{
		{Name: "persisted", Path: "src/a.cc", Kind: "func"},
	}); err != nil {
		t.Fatalf("ReplaceFileSymbols: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	hits, err := s.Search("persisted", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits=%v", hits)
	}
	v, err := s.Version()
	if err != nil || v != 1 {
		t.Fatalf("version=%d err=%v", v, err)
	}
}

func TestSearchValidation(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Search("  ", 10); err == nil {
		t.Fatal("expected error for empty query")
	}
	var closed *Store
	if _, err := closed.Search("x", 10); err == nil {
		t.Fatal("expected error on nil store")
	}
}
