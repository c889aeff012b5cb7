// Package querydb holds the in-memory symbol database the server reads
// while answering requests. It is populated by the indexing pipeline and
// only mutated on the dispatch goroutine, so handlers read it without
// locking and must not retain references across dispatches.
package querydb

import (
	"path/filepath"
	"strings"

	"codenav/internal/position"
	"codenav/internal/protocol"
)

// Kind classifies which symbol table owns a USR.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFile
	KindFunc
	KindType
	KindVar
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFunc:
		return "func"
	case KindType:
		return "type"
	case KindVar:
		return "var"
	default:
		return "invalid"
	}
}

// SymbolIdx identifies a symbol across the whole index.
type SymbolIdx struct {
	USR  uint64
	Kind Kind
}

// SymbolRef is one recorded occurrence of a symbol in a file. The struct is
// comparable, so a file's occurrence multiset is a plain map keyed by it;
// Range packs into 8 bytes which keeps hashing cheap at index volume.
type SymbolRef struct {
	Range position.Range
	USR   uint64
	Kind  Kind
}

func (r SymbolRef) Idx() SymbolIdx { return SymbolIdx{USR: r.USR, Kind: r.Kind} }

type FileDef struct {
	Path          string
	SkippedRanges []position.Range
}

type File struct {
	Def *FileDef

	// Symbol2Refcnt maps each occurrence to its signed reference count.
	// Non-positive counts mark implicit or macro-expanded appearances that
	// exist for navigation but must not be highlighted.
	Symbol2Refcnt map[SymbolRef]int
}

type Use struct {
	Path  string
	Range position.Range
}

type FuncDef struct {
	Name       string // short display name
	Detailed   string
	Kind       protocol.SymbolKind
	ParentKind protocol.SymbolKind
	Storage    protocol.StorageClass
	Spell      position.Range // spelling location; invalid if absent
	SpellPath  string
}

type Func struct {
	USR  uint64
	Defs []FuncDef
	Uses []Use
}

// AnyDef returns the preferred definition: the one carrying a spelling
// location, else the first.
func (f *Func) AnyDef() *FuncDef {
	if f == nil || len(f.Defs) == 0 {
		return nil
	}
	for i := range f.Defs {
		if f.Defs[i].Spell.Valid() {
			return &f.Defs[i]
		}
	}
	return &f.Defs[0]
}

type TypeDef struct {
	Name       string
	Detailed   string
	Kind       protocol.SymbolKind
	ParentKind protocol.SymbolKind
	Spell      position.Range
	SpellPath  string
}

type Type struct {
	USR  uint64
	Defs []TypeDef
	Uses []Use
}

type VarDef struct {
	Name       string
	Detailed   string
	Kind       protocol.SymbolKind
	ParentKind protocol.SymbolKind
	Storage    protocol.StorageClass
	Spell      position.Range
	SpellPath  string
}

type Var struct {
	USR  uint64
	Defs []VarDef
	Uses []Use
}

// DB is the complete loaded index. Symbol ids published to the client are
// indexes into the owning kind's slice.
type DB struct {
	// Generation increments on every applied file update; caches key on it
	// so stale entries fall out naturally.
	Generation int64

	Files        []File
	NameToFileID map[string]int

	Funcs   []Func
	FuncUSR map[uint64]int
	Types   []Type
	TypeUSR map[uint64]int
	Vars    []Var
	VarUSR  map[uint64]int
}

func NewDB() *DB {
	return &DB{
		NameToFileID: map[string]int{},
		FuncUSR:      map[uint64]int{},
		TypeUSR:      map[uint64]int{},
		VarUSR:       map[uint64]int{},
	}
}

// NormalizePath is the canonical key for file lookups.
func NormalizePath(path string) string {
	return strings.TrimSpace(filepath.ToSlash(path))
}

// FindFileByPath returns the indexed file for path, or nil when the path is
// unknown or has no definition yet.
func (db *DB) FindFileByPath(path string) (*File, int) {
	if db == nil {
		return nil, -1
	}
	id, ok := db.NameToFileID[NormalizePath(path)]
	if !ok {
		return nil, -1
	}
	f := &db.Files[id]
	if f.Def == nil {
		return nil, -1
	}
	return f, id
}

func (db *DB) GetFunc(usr uint64) (*Func, int) {
	if idx, ok := db.FuncUSR[usr]; ok {
		return &db.Funcs[idx], idx
	}
	return nil, -1
}

func (db *DB) GetType(usr uint64) (*Type, int) {
	if idx, ok := db.TypeUSR[usr]; ok {
		return &db.Types[idx], idx
	}
	return nil, -1
}

func (db *DB) GetVar(usr uint64) (*Var, int) {
	if idx, ok := db.VarUSR[usr]; ok {
		return &db.Vars[idx], idx
	}
	return nil, -1
}
