// Package wfiles tracks the live, possibly unsaved, in-editor buffers. Each
// entry also keeps the line snapshot taken when the file was last indexed,
// so highlight ranges can be validated against what the index saw.
package wfiles

import (
	"strings"
	"sync"

	"codenav/internal/protocol"
)

type File struct {
	Path    string
	Version int

	// Buffer is the live content; Lines is Buffer split on '\n'.
	Buffer string
	Lines  []string

	// IndexLines is the content of each line at last index time. It may
	// differ from Lines after unsaved edits.
	IndexLines []string
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

func (f *File) setBuffer(text string) {
	f.Buffer = text
	f.Lines = splitLines(text)
}

// SetIndexContent records the snapshot the index was built from.
func (f *File) SetIndexContent(text string) {
	if f == nil {
		return
	}
	f.IndexLines = splitLines(text)
}

// ApplyChange applies one LSP content change. A nil change range replaces
// the whole document; otherwise the change splices [start, end) measured in
// line/character coordinates.
func (f *File) ApplyChange(change protocol.TextDocumentContentChangeEvent) {
	if f == nil {
		return
	}
	if change.Range == nil {
		f.setBuffer(change.Text)
		return
	}
	start, ok1 := f.offsetOf(change.Range.Start)
	end, ok2 := f.offsetOf(change.Range.End)
	if !ok1 || !ok2 || end < start {
		return
	}
	f.setBuffer(f.Buffer[:start] + change.Text + f.Buffer[end:])
}

// offsetOf converts a line/character position to a byte offset into Buffer.
// Character counts codepoints, the unit the index and the highlight engine
// use for columns.
func (f *File) offsetOf(p protocol.Position) (int, bool) {
	if p.Line < 0 || p.Character < 0 {
		return 0, false
	}
	off := 0
	line := 0
	for line < p.Line {
		nl := strings.IndexByte(f.Buffer[off:], '\n')
		if nl < 0 {
			return 0, false
		}
		off += nl + 1
		line++
	}
	rest := f.Buffer[off:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	col := 0
	for i := range rest {
		if col == p.Character {
			return off + i, true
		}
		col++
	}
	if col == p.Character {
		return off + len(rest), true
	}
	return 0, false
}

// WorkingFiles is the table of open documents. The dispatch goroutine is
// the only writer; the indexer reads snapshots through GetContent.
type WorkingFiles struct {
	mu    sync.Mutex
	files map[string]*File
}

func New() *WorkingFiles {
	return &WorkingFiles{files: map[string]*File{}}
}

func (w *WorkingFiles) GetFile(path string) *File {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[path]
}

// GetContent returns the live buffer, or ok=false when the file is not open.
func (w *WorkingFiles) GetContent(path string) (string, bool) {
	f := w.GetFile(path)
	if f == nil {
		return "", false
	}
	return f.Buffer, true
}

func (w *WorkingFiles) Open(path, text string, version int) *File {
	if w == nil {
		return nil
	}
	f := &File{Path: path, Version: version}
	f.setBuffer(text)
	f.SetIndexContent(text)
	w.mu.Lock()
	w.files[path] = f
	w.mu.Unlock()
	return f
}

func (w *WorkingFiles) Close(path string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	delete(w.files, path)
	w.mu.Unlock()
}
