package indexer

import (
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"unicode"

	"codenav/internal/core/treesitter"
	"codenav/internal/position"
	"codenav/internal/querydb"
)

type refTarget struct {
	usr  uint64
	kind querydb.Kind
}

// BuildUpdate turns one file's extraction result into the update applied
// to the query database. Besides the declarations themselves it scans the
// file for identifier tokens matching a declared name and records those
// as reference occurrences; matches inside skipped preprocessor regions
// get a zero refcount so they are stored but never highlighted.
func BuildUpdate(path string, src []byte, res *treesitter.Result) (*querydb.FileUpdate, error) {
	content := string(src)
	lines := strings.Split(content, "\n")
	if len(lines) > position.MaxLine+1 {
		return nil, fmt.Errorf("%s: %d lines exceeds the addressable maximum", path, len(lines))
	}

	u := &querydb.FileUpdate{
		Path:          querydb.NormalizePath(path),
		SkippedRanges: res.SkippedRanges,
		Content:       content,
	}

	refs := make(map[string]refTarget, len(res.Decls))
	defStarts := make(map[position.Pos]struct{}, len(res.Decls))
	for _, d := range res.Decls {
		if d.Name == "" || !d.NameRange.Valid() {
			continue
		}
		usr := symbolUSR(d.Kind, d.Container, d.Name)
		detailed := d.Name
		if d.Container != "" {
			detailed = d.Container + "::" + d.Name
		}
		u.Symbols = append(u.Symbols, querydb.SymbolData{
			USR:        usr,
			Kind:       d.Kind,
			Name:       d.Name,
			Detailed:   detailed,
			SymKind:    d.SymKind,
			ParentKind: d.ParentKind,
			Storage:    d.Storage,
			Spell:      d.NameRange,
		})
		u.Occurrences = append(u.Occurrences, querydb.Occurrence{
			USR:    usr,
			Kind:   d.Kind,
			Range:  d.NameRange,
			Refcnt: 1,
		})
		defStarts[d.NameRange.Start] = struct{}{}
		if _, ok := refs[d.Name]; !ok {
			refs[d.Name] = refTarget{usr: usr, kind: d.Kind}
		}
	}

	if len(refs) == 0 {
		return u, nil
	}

	for ln, line := range lines {
		scanIdentifiers(line, func(name string, startCol, endCol int) {
			t, ok := refs[name]
			if !ok {
				return
			}
			start := position.NewPos(ln, startCol)
			if _, isDef := defStarts[start]; isDef {
				return
			}
			refcnt := 1
			for _, sk := range res.SkippedRanges {
				if sk.Contains(ln, startCol) {
					refcnt = 0
					break
				}
			}
			u.Occurrences = append(u.Occurrences, querydb.Occurrence{
				USR:    t.usr,
				Kind:   t.kind,
				Range:  position.NewRange(ln, startCol, ln, endCol),
				Refcnt: refcnt,
			})
		})
	}
	return u, nil
}

// symbolUSR derives a stable identifier from the qualified name, so the
// same symbol seen from different files collapses into one entity. Funcs,
// types and vars hash into disjoint namespaces.
func symbolUSR(kind querydb.Kind, container, name string) uint64 {
	h := fnv.New64a()
	switch kind {
	case querydb.KindFunc:
		_, _ = io.WriteString(h, "f|")
	case querydb.KindType:
		_, _ = io.WriteString(h, "t|")
	case querydb.KindVar:
		_, _ = io.WriteString(h, "v|")
	}
	if container != "" {
		_, _ = io.WriteString(h, container)
		_, _ = io.WriteString(h, "::")
	}
	_, _ = io.WriteString(h, name)
	return h.Sum64()
}

// scanIdentifiers calls fn for every identifier token in the line, with
// codepoint start/end columns.
func scanIdentifiers(line string, fn func(name string, startCol, endCol int)) {
	runes := []rune(line)
	for i := 0; i < len(runes); {
		if !isIdentStart(runes[i]) {
			i++
			continue
		}
		j := i + 1
		for j < len(runes) && isIdentPart(runes[j]) {
			j++
		}
		fn(string(runes[i:j]), i, j)
		i = j
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
