package protocol

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func (p Position) Compare(o Position) int {
	if p.Line != o.Line {
		if p.Line < o.Line {
			return -1
		}
		return 1
	}
	if p.Character != o.Character {
		if p.Character < o.Character {
			return -1
		}
		return 1
	}
	return 0
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (r Range) Compare(o Range) int {
	if c := r.Start.Compare(o.Start); c != 0 {
		return c
	}
	return r.End.Compare(o.End)
}

type DocumentURI string

// URIFromPath builds a file:// URI from an absolute path. Backslashes are
// normalized so Windows paths produce forward-slash URIs.
func URIFromPath(path string) DocumentURI {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return DocumentURI("file://" + path)
}

// Path strips the file:// scheme; non-file URIs are returned unchanged.
func (u DocumentURI) Path() string {
	s := string(u)
	if strings.HasPrefix(s, "file://") {
		s = s[len("file://"):]
	}
	return s
}

type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

func (l Location) Compare(o Location) int {
	if l.URI != o.URI {
		if l.URI < o.URI {
			return -1
		}
		return 1
	}
	return l.Range.Compare(o.Range)
}

type LocationLink struct {
	TargetURI            DocumentURI `json:"targetUri"`
	TargetRange          Range       `json:"targetRange"`
	TargetSelectionRange Range       `json:"targetSelectionRange"`
}

func (l LocationLink) Compare(o LocationLink) int {
	if l.TargetURI != o.TargetURI {
		if l.TargetURI < o.TargetURI {
			return -1
		}
		return 1
	}
	if c := l.TargetSelectionRange.Compare(o.TargetSelectionRange); c != 0 {
		return c
	}
	return l.TargetRange.Compare(o.TargetRange)
}

// Location degrades a link to the plain shape for clients without
// linkSupport.
func (l LocationLink) Location() Location {
	return Location{URI: l.TargetURI, Range: l.TargetSelectionRange}
}

type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

type TextDocumentItem struct {
	URI     DocumentURI `json:"uri"`
	Version int         `json:"version"`
	Text    string      `json:"text"`
}

type TextDocumentParam struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type TextDocumentPositionParam struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type DidOpenTextDocumentParam struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type TextDocumentContentChangeEvent struct {
	Range       *Range `json:"range,omitempty"`
	RangeLength int    `json:"rangeLength,omitempty"`
	Text        string `json:"text"`
}

type TextDocumentDidChangeParam struct {
	TextDocument   TextDocumentIdentifier           `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type ReferenceParam struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type DocumentHighlightKind int

const (
	DocumentHighlightText  DocumentHighlightKind = 1
	DocumentHighlightRead  DocumentHighlightKind = 2
	DocumentHighlightWrite DocumentHighlightKind = 3
)

type DocumentHighlight struct {
	Range Range                 `json:"range"`
	Kind  DocumentHighlightKind `json:"kind,omitempty"`
}

type WorkspaceSymbolParam struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type InitializeParams struct {
	RootURI               DocumentURI        `json:"rootUri,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions json.RawMessage    `json:"initializationOptions,omitempty"`
}

type ClientCapabilities struct {
	TextDocument struct {
		Definition struct {
			LinkSupport bool `json:"linkSupport"`
		} `json:"definition"`
	} `json:"textDocument"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

type ServerCapabilities struct {
	TextDocumentSync         int  `json:"textDocumentSync"`
	DefinitionProvider       bool `json:"definitionProvider"`
	ReferencesProvider       bool `json:"referencesProvider"`
	WorkspaceSymbolProvider  bool `json:"workspaceSymbolProvider"`
	DocumentHighlightSupport bool `json:"documentHighlightProvider"`
}

type MessageType int

const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
	MessageTypeLog     MessageType = 4
)

type ShowMessageParam struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// SymbolKind mirrors the LSP symbol kinds plus the extended values used by
// semantic highlighting. Macro is deliberately the largest value: sweep
// tie-breaks order by kind so macro ranges lose to concrete symbols.
type SymbolKind uint8

const (
	SymbolKindUnknown       SymbolKind = 0
	SymbolKindFile          SymbolKind = 1
	SymbolKindModule        SymbolKind = 2
	SymbolKindNamespace     SymbolKind = 3
	SymbolKindPackage       SymbolKind = 4
	SymbolKindClass         SymbolKind = 5
	SymbolKindMethod        SymbolKind = 6
	SymbolKindProperty      SymbolKind = 7
	SymbolKindField         SymbolKind = 8
	SymbolKindConstructor   SymbolKind = 9
	SymbolKindEnum          SymbolKind = 10
	SymbolKindInterface     SymbolKind = 11
	SymbolKindFunction      SymbolKind = 12
	SymbolKindVariable      SymbolKind = 13
	SymbolKindConstant      SymbolKind = 14
	SymbolKindString        SymbolKind = 15
	SymbolKindNumber        SymbolKind = 16
	SymbolKindBoolean       SymbolKind = 17
	SymbolKindArray         SymbolKind = 18
	SymbolKindObject        SymbolKind = 19
	SymbolKindKey           SymbolKind = 20
	SymbolKindNull          SymbolKind = 21
	SymbolKindEnumMember    SymbolKind = 22
	SymbolKindStruct        SymbolKind = 23
	SymbolKindEvent         SymbolKind = 24
	SymbolKindOperator      SymbolKind = 25
	SymbolKindTypeParameter SymbolKind = 26

	SymbolKindTypeAlias    SymbolKind = 252
	SymbolKindParameter    SymbolKind = 253
	SymbolKindStaticMethod SymbolKind = 254
	SymbolKindMacro        SymbolKind = 255
)

// StorageClass of a definition, as recorded by the indexer.
type StorageClass uint8

const (
	StorageNone StorageClass = iota
	StorageExtern
	StorageStatic
	StorageAuto
)
