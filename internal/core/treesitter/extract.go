// Package treesitter turns source files into symbol declarations using
// tree-sitter grammars. It is compiled in only under the "treesitter"
// build tag with cgo; otherwise Extract reports ErrDisabled and the
// indexer skips extraction.
package treesitter

import (
	"codenav/internal/position"
	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

// Decl is one symbol declaration found in a source file. NameRange spans
// the declared name only, with zero-based lines and codepoint columns,
// the convention the query database uses everywhere.
type Decl struct {
	Name       string
	Container  string
	Kind       querydb.Kind
	SymKind    protocol.SymbolKind
	ParentKind protocol.SymbolKind
	Storage    protocol.StorageClass
	NameRange  position.Range
}

// Result is everything extraction learned about one file.
type Result struct {
	Decls []Decl

	// SkippedRanges are preprocessor regions the compiler would not see,
	// e.g. the body of an #if 0 block.
	SkippedRanges []position.Range
}
