// Package highlight computes the semantic-highlight notification for one
// open file: it filters and groups raw symbol occurrences, resolves
// overlapping ranges with a scan-line sweep, and optionally re-encodes the
// result as byte offsets into the live buffer.
package highlight

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"codenav/internal/config"
	"codenav/internal/position"
	"codenav/internal/protocol"
	"codenav/internal/querydb"
	"codenav/internal/wfiles"
)

// OffsetPair is a (begin, end) byte-offset span, marshalled as a two
// element array.
type OffsetPair struct {
	Begin int
	End   int
}

func (p OffsetPair) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", p.Begin, p.End)), nil
}

func (p *OffsetPair) UnmarshalJSON(b []byte) error {
	var v [2]int
	if _, err := fmt.Sscanf(string(b), "[%d,%d]", &v[0], &v[1]); err != nil {
		return err
	}
	p.Begin, p.End = v[0], v[1]
	return nil
}

// Symbol is one highlight group published to the client. Exactly one of
// Ranges and LSRanges is populated, depending on the configured format.
type Symbol struct {
	ID         int                    `json:"id"`
	ParentKind protocol.SymbolKind    `json:"parentKind"`
	Kind       protocol.SymbolKind    `json:"kind"`
	Storage    protocol.StorageClass  `json:"storage"`
	Ranges     []OffsetPair           `json:"ranges,omitempty"`
	LSRanges   []protocol.Range       `json:"lsRanges,omitempty"`
}

type Publish struct {
	URI     protocol.DocumentURI `json:"uri"`
	Symbols []*Symbol            `json:"symbols"`
}

type SkippedRanges struct {
	URI           protocol.DocumentURI `json:"uri"`
	SkippedRanges []protocol.Range     `json:"skippedRanges"`
}

const MethodPublish = "$/publishSemanticHighlight"
const MethodSkippedRanges = "$/publishSkippedRanges"

// Engine holds the process-wide highlight configuration. The matcher is
// compiled from config at startup and passed in; the engine itself keeps no
// lazily built state.
type Engine struct {
	Conf    config.Highlight
	Matcher *config.PathMatcher
	Notify  func(method string, params any)
}

func NewEngine(conf config.Highlight, notify func(method string, params any)) *Engine {
	return &Engine{
		Conf:    conf,
		Matcher: config.NewPathMatcher(conf.Whitelist, conf.Blacklist),
		Notify:  notify,
	}
}

// Publish recomputes and pushes the highlight set for one file. Oversized
// buffers and filtered paths skip the whole computation, not just the
// notification.
func (e *Engine) Publish(db *querydb.DB, wf *wfiles.File, file *querydb.File) {
	if e == nil || db == nil || wf == nil || file == nil || file.Def == nil {
		return
	}
	if e.Conf.LargeFileSize > 0 && len(wf.Buffer) > e.Conf.LargeFileSize {
		return
	}
	if !e.Matcher.Matches(file.Def.Path) {
		return
	}

	grouped := e.groupSymbols(db, wf, file)
	sweep(grouped)

	params := Publish{URI: protocol.URIFromPath(wf.Path)}
	if e.Conf.RangeFormat == config.RangeFormatOffset {
		encodeOffsets(grouped, wf.Buffer)
	}
	for _, sym := range grouped {
		if len(sym.Ranges) > 0 || len(sym.LSRanges) > 0 {
			params.Symbols = append(params.Symbols, sym.Symbol)
		}
	}
	sort.Slice(params.Symbols, func(i, j int) bool {
		return params.Symbols[i].ID < params.Symbols[j].ID
	})
	if e.Notify != nil {
		e.Notify(MethodPublish, params)
	}
}

type groupedSymbol struct {
	*Symbol
	lsRanges []protocol.Range
}

// groupSymbols resolves each positive-refcount occurrence against the
// query database and groups the survivors by symbol identity. Occurrences
// are visited in packed-range order so the sweep's insertion ids, and with
// them the published set, are identical on every re-highlight.
func (e *Engine) groupSymbols(db *querydb.DB, wf *wfiles.File, file *querydb.File) map[querydb.SymbolIdx]*groupedSymbol {
	refs := make([]querydb.SymbolRef, 0, len(file.Symbol2Refcnt))
	for ref, refcnt := range file.Symbol2Refcnt {
		if refcnt > 0 {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.Range.Pack() != b.Range.Pack() {
			return a.Range.Pack() < b.Range.Pack()
		}
		if a.USR != b.USR {
			return a.USR < b.USR
		}
		return a.Kind < b.Kind
	})

	grouped := map[querydb.SymbolIdx]*groupedSymbol{}
	for _, ref := range refs {
		var (
			parentKind = protocol.SymbolKindUnknown
			kind       = protocol.SymbolKindUnknown
			storage    = protocol.StorageNone
			idx        int
		)
		rng := ref.Range

		// The switch below also drops kinds that are not interesting for
		// highlighting.
		switch ref.Kind {
		case querydb.KindFunc:
			fn, i := db.GetFunc(ref.USR)
			if fn == nil {
				continue
			}
			def := fn.AnyDef()
			if def == nil {
				continue
			}
			// Overloadable operators are not highlighted: the token the
			// user wrote rarely matches the canonical operator name.
			shortName := def.Name
			if strings.HasPrefix(shortName, "operator") {
				continue
			}
			idx = i
			kind = def.Kind
			storage = def.Storage
			parentKind = def.ParentKind

			// Re-derive the end of the occurrence by locating the concise
			// name in the indexed line. A miss means the token is not
			// literally there (e.g. copy-initialization of a constructor)
			// or the index has drifted from the buffer; either way the
			// occurrence is not highlighted. Columns count codepoints, the
			// same unit the indexer records.
			conciseName := shortName
			if cut := strings.IndexByte(conciseName, '<'); cut >= 0 {
				conciseName = conciseName[:cut]
			}
			startLine := int(rng.Start.Line)
			startCol := int(rng.Start.Column)
			if startLine >= len(wf.IndexLines) {
				continue
			}
			line := []rune(wf.IndexLines[startLine])
			name := []rune(conciseName)
			rng.End.Line = rng.Start.Line
			if startCol+len(name) > len(line) ||
				string(line[startCol:startCol+len(name)]) != conciseName {
				continue
			}
			rng.End.Column = int16(startCol + len(name))
		case querydb.KindType:
			ty, i := db.GetType(ref.USR)
			if ty == nil || len(ty.Defs) == 0 {
				continue
			}
			idx = i
			for j := range ty.Defs {
				def := &ty.Defs[j]
				kind = def.Kind
				if def.Spell.Valid() {
					parentKind = def.ParentKind
					break
				}
			}
		case querydb.KindVar:
			va, i := db.GetVar(ref.USR)
			if va == nil || len(va.Defs) == 0 {
				continue
			}
			idx = i
			for j := range va.Defs {
				def := &va.Defs[j]
				kind = def.Kind
				storage = def.Storage
				if def.Spell.Valid() {
					parentKind = def.ParentKind
					break
				}
			}
		default:
			continue
		}

		loc, ok := lsRange(wf, rng)
		if !ok {
			continue
		}
		key := ref.Idx()
		if g, exists := grouped[key]; exists {
			g.lsRanges = append(g.lsRanges, loc)
		} else {
			grouped[key] = &groupedSymbol{
				Symbol: &Symbol{
					ID:         idx,
					ParentKind: parentKind,
					Kind:       kind,
					Storage:    storage,
				},
				lsRanges: []protocol.Range{loc},
			}
		}
	}
	return grouped
}

// lsRange translates an indexed range into live-buffer coordinates.
// Ranges that no longer fit the buffer are dropped, not clamped.
func lsRange(wf *wfiles.File, r position.Range) (protocol.Range, bool) {
	if !r.Valid() {
		return protocol.Range{}, false
	}
	sl, sc := int(r.Start.Line), int(r.Start.Column)
	el, ec := int(r.End.Line), int(r.End.Column)
	if sl >= len(wf.Lines) || el >= len(wf.Lines) {
		return protocol.Range{}, false
	}
	if sc > utf8.RuneCountInString(wf.Lines[sl]) || ec > utf8.RuneCountInString(wf.Lines[el]) || ec < 0 {
		return protocol.Range{}, false
	}
	return protocol.Range{
		Start: protocol.Position{Line: sl, Character: sc},
		End:   protocol.Position{Line: el, Character: ec},
	}, true
}

// EmitSkippedRanges translates the file's skipped (inactive) regions into
// editor coordinates and publishes them. Ranges that no longer map into
// the buffer are silently omitted.
func EmitSkippedRanges(notify func(method string, params any), wf *wfiles.File, file *querydb.File) {
	if notify == nil || wf == nil || file == nil || file.Def == nil {
		return
	}
	params := SkippedRanges{
		URI:           protocol.URIFromPath(wf.Path),
		SkippedRanges: []protocol.Range{},
	}
	for _, skipped := range file.Def.SkippedRanges {
		if ls, ok := lsRange(wf, skipped); ok {
			params.SkippedRanges = append(params.SkippedRanges, ls)
		}
	}
	notify(MethodSkippedRanges, params)
}
