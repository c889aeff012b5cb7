package querydb

import (
	"codenav/internal/position"
	"codenav/internal/protocol"
)

// SymbolData is one definition extracted from a file.
type SymbolData struct {
	USR        uint64
	Kind       Kind
	Name       string
	Detailed   string
	SymKind    protocol.SymbolKind
	ParentKind protocol.SymbolKind
	Storage    protocol.StorageClass
	Spell      position.Range
}

// Occurrence is one appearance of a symbol in the updated file.
type Occurrence struct {
	USR    uint64
	Kind   Kind
	Range  position.Range
	Refcnt int
}

// FileUpdate is the complete index contribution of a single file. Applying
// it replaces whatever the file contributed before.
type FileUpdate struct {
	Path          string
	SkippedRanges []position.Range
	Symbols       []SymbolData
	Occurrences   []Occurrence

	// Content is the file text the index was built from; the server uses
	// it to refresh an open buffer's index-line snapshot.
	Content string
}

// ApplyFileUpdate merges one file's index into the database. It runs on the
// dispatch goroutine; handlers never observe a half-applied file.
func (db *DB) ApplyFileUpdate(u *FileUpdate) {
	if db == nil || u == nil {
		return
	}
	path := NormalizePath(u.Path)
	db.Generation++

	id, ok := db.NameToFileID[path]
	if !ok {
		id = len(db.Files)
		db.Files = append(db.Files, File{})
		db.NameToFileID[path] = id
	}

	db.stripFileContribution(path)

	file := &db.Files[id]
	file.Def = &FileDef{Path: path, SkippedRanges: u.SkippedRanges}
	file.Symbol2Refcnt = make(map[SymbolRef]int, len(u.Occurrences))
	for _, occ := range u.Occurrences {
		ref := SymbolRef{Range: occ.Range, USR: occ.USR, Kind: occ.Kind}
		file.Symbol2Refcnt[ref] += occ.Refcnt
	}

	for _, sym := range u.Symbols {
		db.addSymbolData(path, sym)
	}
	for _, occ := range u.Occurrences {
		db.addUse(path, occ)
	}
}

func (db *DB) stripFileContribution(path string) {
	for i := range db.Funcs {
		db.Funcs[i].Defs = stripDefs(db.Funcs[i].Defs, path, func(d FuncDef) string { return d.SpellPath })
		db.Funcs[i].Uses = stripUses(db.Funcs[i].Uses, path)
	}
	for i := range db.Types {
		db.Types[i].Defs = stripDefs(db.Types[i].Defs, path, func(d TypeDef) string { return d.SpellPath })
		db.Types[i].Uses = stripUses(db.Types[i].Uses, path)
	}
	for i := range db.Vars {
		db.Vars[i].Defs = stripDefs(db.Vars[i].Defs, path, func(d VarDef) string { return d.SpellPath })
		db.Vars[i].Uses = stripUses(db.Vars[i].Uses, path)
	}
}

func stripDefs[D any](defs []D, path string, spellPath func(D) string) []D {
	out := defs[:0]
	for _, d := range defs {
		if spellPath(d) != path {
			out = append(out, d)
		}
	}
	return out
}

func stripUses(uses []Use, path string) []Use {
	out := uses[:0]
	for _, u := range uses {
		if u.Path != path {
			out = append(out, u)
		}
	}
	return out
}

func (db *DB) addSymbolData(path string, sym SymbolData) {
	switch sym.Kind {
	case KindFunc:
		idx, ok := db.FuncUSR[sym.USR]
		if !ok {
			idx = len(db.Funcs)
			db.Funcs = append(db.Funcs, Func{USR: sym.USR})
			db.FuncUSR[sym.USR] = idx
		}
		db.Funcs[idx].Defs = append(db.Funcs[idx].Defs, FuncDef{
			Name:       sym.Name,
			Detailed:   sym.Detailed,
			Kind:       sym.SymKind,
			ParentKind: sym.ParentKind,
			Storage:    sym.Storage,
			Spell:      sym.Spell,
			SpellPath:  path,
		})
	case KindType:
		idx, ok := db.TypeUSR[sym.USR]
		if !ok {
			idx = len(db.Types)
			db.Types = append(db.Types, Type{USR: sym.USR})
			db.TypeUSR[sym.USR] = idx
		}
		db.Types[idx].Defs = append(db.Types[idx].Defs, TypeDef{
			Name:       sym.Name,
			Detailed:   sym.Detailed,
			Kind:       sym.SymKind,
			ParentKind: sym.ParentKind,
			Spell:      sym.Spell,
			SpellPath:  path,
		})
	case KindVar:
		idx, ok := db.VarUSR[sym.USR]
		if !ok {
			idx = len(db.Vars)
			db.Vars = append(db.Vars, Var{USR: sym.USR})
			db.VarUSR[sym.USR] = idx
		}
		db.Vars[idx].Defs = append(db.Vars[idx].Defs, VarDef{
			Name:       sym.Name,
			Detailed:   sym.Detailed,
			Kind:       sym.SymKind,
			ParentKind: sym.ParentKind,
			Storage:    sym.Storage,
			Spell:      sym.Spell,
			SpellPath:  path,
		})
	}
}

func (db *DB) addUse(path string, occ Occurrence) {
	use := Use{Path: path, Range: occ.Range}
	switch occ.Kind {
	case KindFunc:
		if idx, ok := db.FuncUSR[occ.USR]; ok {
			db.Funcs[idx].Uses = append(db.Funcs[idx].Uses, use)
		}
	case KindType:
		if idx, ok := db.TypeUSR[occ.USR]; ok {
			db.Types[idx].Uses = append(db.Types[idx].Uses, use)
		}
	case KindVar:
		if idx, ok := db.VarUSR[occ.USR]; ok {
			db.Vars[idx].Uses = append(db.Vars[idx].Uses, use)
		}
	}
}
