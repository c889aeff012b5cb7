package navd

import (
	"fmt"
	"sort"

	"codenav/internal/highlight"
	"codenav/internal/position"
	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

func (h *MessageHandler) textDocumentDidOpen(p *protocol.DidOpenTextDocumentParam) error {
	path := querydb.NormalizePath(p.TextDocument.URI.Path())
	if path == "" {
		return fmt.Errorf("didOpen without a uri")
	}
	wf := h.WFiles.Open(path, p.TextDocument.Text, p.TextDocument.Version)
	if h.Index != nil {
		h.Index(path)
	}
	h.publishFileState(path, wf.Path)
	return nil
}

func (h *MessageHandler) textDocumentDidChange(p *protocol.TextDocumentDidChangeParam) error {
	path := querydb.NormalizePath(p.TextDocument.URI.Path())
	wf := h.WFiles.GetFile(path)
	if wf == nil {
		return fmt.Errorf("%s is not opened", path)
	}
	for _, change := range p.ContentChanges {
		wf.ApplyChange(change)
	}
	h.publishFileState(path, path)
	return nil
}

func (h *MessageHandler) textDocumentDidSave(p *protocol.TextDocumentParam) error {
	path := querydb.NormalizePath(p.TextDocument.URI.Path())
	wf := h.WFiles.GetFile(path)
	if wf == nil {
		return fmt.Errorf("%s is not opened", path)
	}
	if h.Index != nil {
		h.Index(path)
	}
	h.publishFileState(path, path)
	return nil
}

func (h *MessageHandler) textDocumentDidClose(p *protocol.TextDocumentParam) error {
	h.WFiles.Close(querydb.NormalizePath(p.TextDocument.URI.Path()))
	return nil
}

// publishFileState pushes highlight and skipped-range notifications for an
// open file that already has an index entry. Files still waiting for their
// first index are published when the index lands.
func (h *MessageHandler) publishFileState(path, wfPath string) {
	wf := h.WFiles.GetFile(wfPath)
	if wf == nil {
		return
	}
	file, _ := h.findFile(path)
	if file == nil {
		return
	}
	h.hl.Publish(h.DB, wf, file)
	highlight.EmitSkippedRanges(h.Notify, wf, file)
}

// symbolsAt collects the occurrences covering (line, character), narrowest
// range first so the innermost symbol is preferred.
func symbolsAt(file *querydb.File, line, character int) []querydb.SymbolRef {
	var refs []querydb.SymbolRef
	for ref := range file.Symbol2Refcnt {
		if ref.Range.Contains(line, character) {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		aw := spanWidth(a.Range)
		bw := spanWidth(b.Range)
		if aw != bw {
			return aw < bw
		}
		if a.Range.Pack() != b.Range.Pack() {
			return a.Range.Pack() < b.Range.Pack()
		}
		if a.USR != b.USR {
			return a.USR < b.USR
		}
		return a.Kind < b.Kind
	})
	return refs
}

func spanWidth(r position.Range) int {
	return (int(r.End.Line)-int(r.Start.Line))<<16 +
		int(r.End.Column) - int(r.Start.Column)
}

func protocolRange(r position.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: int(r.Start.Line), Character: int(r.Start.Column)},
		End:   protocol.Position{Line: int(r.End.Line), Character: int(r.End.Column)},
	}
}

// xrefKey identifies one definition lookup. Generation is part of the key
// so answers computed against an older index miss instead of going stale.
type xrefKey struct {
	path       string
	line       int
	character  int
	generation int64
}

func (h *MessageHandler) textDocumentDefinition(p *protocol.TextDocumentPositionParam, reply *ReplyOnce) error {
	path := querydb.NormalizePath(p.TextDocument.URI.Path())
	file, _, err := h.findOrFail(path, reply)
	if err != nil {
		return err
	}

	key := xrefKey{
		path:       path,
		line:       p.Position.Line,
		character:  p.Position.Character,
		generation: h.DB.Generation,
	}
	if cached, ok := h.xrefCache.Get(key); ok {
		reply.ReplyLocationLink(cached)
		return nil
	}

	var links []protocol.LocationLink
	for _, ref := range symbolsAt(file, p.Position.Line, p.Position.Character) {
		for _, spell := range h.definitionSpells(ref) {
			links = append(links, protocol.LocationLink{
				TargetURI:            protocol.URIFromPath(spell.Path),
				TargetRange:          protocolRange(spell.Range),
				TargetSelectionRange: protocolRange(spell.Range),
			})
		}
		if len(links) > 0 {
			break
		}
	}
	h.xrefCache.Put(key, links)
	reply.ReplyLocationLink(links)
	return nil
}

func (h *MessageHandler) definitionSpells(ref querydb.SymbolRef) []querydb.Use {
	var spells []querydb.Use
	add := func(path string, spell position.Range) {
		if spell.Valid() {
			spells = append(spells, querydb.Use{Path: path, Range: spell})
		}
	}
	switch ref.Kind {
	case querydb.KindFunc:
		if fn, _ := h.DB.GetFunc(ref.USR); fn != nil {
			for _, def := range fn.Defs {
				add(def.SpellPath, def.Spell)
			}
		}
	case querydb.KindType:
		if ty, _ := h.DB.GetType(ref.USR); ty != nil {
			for _, def := range ty.Defs {
				add(def.SpellPath, def.Spell)
			}
		}
	case querydb.KindVar:
		if va, _ := h.DB.GetVar(ref.USR); va != nil {
			for _, def := range va.Defs {
				add(def.SpellPath, def.Spell)
			}
		}
	}
	return spells
}

func (h *MessageHandler) textDocumentReferences(p *protocol.ReferenceParam, reply *ReplyOnce) error {
	path := querydb.NormalizePath(p.TextDocument.URI.Path())
	file, _, err := h.findOrFail(path, reply)
	if err != nil {
		return err
	}

	var links []protocol.LocationLink
	for _, ref := range symbolsAt(file, p.Position.Line, p.Position.Character) {
		for _, use := range h.symbolUses(ref) {
			links = append(links, protocol.LocationLink{
				TargetURI:            protocol.URIFromPath(use.Path),
				TargetRange:          protocolRange(use.Range),
				TargetSelectionRange: protocolRange(use.Range),
			})
		}
		if len(links) > 0 {
			break
		}
	}
	reply.ReplyLocationLink(links)
	return nil
}

// textDocumentDocumentHighlight reports every use of the symbol under the
// cursor that falls in the same file.
func (h *MessageHandler) textDocumentDocumentHighlight(p *protocol.TextDocumentPositionParam, reply *ReplyOnce) error {
	path := querydb.NormalizePath(p.TextDocument.URI.Path())
	file, _, err := h.findOrFail(path, reply)
	if err != nil {
		return err
	}

	var highlights []protocol.DocumentHighlight
	for _, ref := range symbolsAt(file, p.Position.Line, p.Position.Character) {
		for _, use := range h.symbolUses(ref) {
			if use.Path != path {
				continue
			}
			highlights = append(highlights, protocol.DocumentHighlight{
				Range: protocolRange(use.Range),
				Kind:  protocol.DocumentHighlightText,
			})
		}
		if len(highlights) > 0 {
			break
		}
	}
	sort.Slice(highlights, func(i, j int) bool {
		return highlights[i].Range.Compare(highlights[j].Range) < 0
	})
	reply.Reply(highlights)
	return nil
}

func (h *MessageHandler) symbolUses(ref querydb.SymbolRef) []querydb.Use {
	switch ref.Kind {
	case querydb.KindFunc:
		if fn, _ := h.DB.GetFunc(ref.USR); fn != nil {
			return fn.Uses
		}
	case querydb.KindType:
		if ty, _ := h.DB.GetType(ref.USR); ty != nil {
			return ty.Uses
		}
	case querydb.KindVar:
		if va, _ := h.DB.GetVar(ref.USR); va != nil {
			return va.Uses
		}
	}
	return nil
}
