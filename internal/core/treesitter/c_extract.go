//go:build treesitter && cgo

package treesitter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"

	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

func extractC(src []byte) (*Result, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	lang := tree_sitter.NewLanguage(tree_sitter_c.Language())
	if err := parser.SetLanguage(lang); err != nil {
		return nil, err
	}

	tree := parser.Parse(src, nil)
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return &Result{}, nil
	}

	lines := splitSourceLines(src)
	res := &Result{}

	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		collectCLike(n, src, lines, res, cTypeKinds)
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i))
		}
	}

	walk(root)
	return res, nil
}

var cTypeKinds = map[string]struct{}{
	"struct_specifier": {},
	"union_specifier":  {},
	"enum_specifier":   {},
}

// collectCLike handles the node kinds C and C++ share. C++-only kinds are
// layered on in cpp_extract.go.
func collectCLike(n *tree_sitter.Node, src []byte, lines [][]byte, res *Result, typeKinds map[string]struct{}) {
	switch n.Kind() {
	case "function_definition":
		if d, ok := makeCFunction(n, src, lines, typeKinds); ok {
			res.Decls = append(res.Decls, d)
		}
	case "struct_specifier", "union_specifier", "enum_specifier":
		// A bare "struct Foo x;" names the type without declaring it.
		if n.ChildByFieldName("body") == nil {
			return
		}
		symKind := protocol.SymbolKindStruct
		if n.Kind() == "enum_specifier" {
			symKind = protocol.SymbolKindEnum
		}
		if name := n.ChildByFieldName("name"); name != nil {
			res.Decls = append(res.Decls, Decl{
				Name:      trimNodeText(name, src),
				Kind:      querydb.KindType,
				SymKind:   symKind,
				NameRange: nodeRange(name, lines),
			})
		}
	case "type_definition":
		if name := firstDescendantKind(n.ChildByFieldName("declarator"), typeIdentifierKinds); name != nil {
			res.Decls = append(res.Decls, Decl{
				Name:      trimNodeText(name, src),
				Kind:      querydb.KindType,
				SymKind:   protocol.SymbolKindTypeAlias,
				NameRange: nodeRange(name, lines),
			})
		} else if name := firstDescendantKind(n, typeIdentifierKinds); name != nil {
			res.Decls = append(res.Decls, Decl{
				Name:      trimNodeText(name, src),
				Kind:      querydb.KindType,
				SymKind:   protocol.SymbolKindTypeAlias,
				NameRange: nodeRange(name, lines),
			})
		}
	case "preproc_def", "preproc_function_def":
		if name := n.ChildByFieldName("name"); name != nil {
			res.Decls = append(res.Decls, Decl{
				Name:      trimNodeText(name, src),
				Kind:      querydb.KindVar,
				SymKind:   protocol.SymbolKindMacro,
				NameRange: nodeRange(name, lines),
			})
		}
	case "enumerator":
		if name := n.ChildByFieldName("name"); name != nil {
			res.Decls = append(res.Decls, Decl{
				Name:       trimNodeText(name, src),
				Container:  enclosingTypeName(n, src, typeKinds),
				Kind:       querydb.KindVar,
				SymKind:    protocol.SymbolKindEnumMember,
				ParentKind: protocol.SymbolKindEnum,
				NameRange:  nodeRange(name, lines),
			})
		}
	case "declaration":
		storage := cStorageClass(n, src)
		for i := uint(0); i < n.NamedChildCount(); i++ {
			ch := n.NamedChild(i)
			if ch == nil || ch.Kind() != "init_declarator" {
				continue
			}
			if name := firstDescendantKind(ch, identifierKinds); name != nil {
				res.Decls = append(res.Decls, Decl{
					Name:      trimNodeText(name, src),
					Kind:      querydb.KindVar,
					SymKind:   protocol.SymbolKindVariable,
					Storage:   storage,
					NameRange: nodeRange(name, lines),
				})
			}
		}
	case "preproc_if":
		// #if 0 ... #endif never reaches the compiler.
		if cond := n.ChildByFieldName("condition"); cond != nil && trimNodeText(cond, src) == "0" {
			res.SkippedRanges = append(res.SkippedRanges, nodeRange(n, lines))
		}
	}
}

var identifierKinds = map[string]struct{}{
	"identifier":       {},
	"field_identifier": {},
}

var typeIdentifierKinds = map[string]struct{}{
	"type_identifier": {},
}

var functionNameKinds = map[string]struct{}{
	"identifier":           {},
	"field_identifier":     {},
	"qualified_identifier": {},
	"operator_name":        {},
	"destructor_name":      {},
}

func makeCFunction(n *tree_sitter.Node, src []byte, lines [][]byte, typeKinds map[string]struct{}) (Decl, bool) {
	decl := n.ChildByFieldName("declarator")
	for decl != nil && decl.Kind() != "function_declarator" {
		decl = decl.ChildByFieldName("declarator")
	}
	if decl == nil {
		return Decl{}, false
	}
	name := decl.ChildByFieldName("declarator")
	for name != nil {
		if _, ok := functionNameKinds[name.Kind()]; ok {
			break
		}
		name = name.ChildByFieldName("declarator")
	}
	if name == nil {
		return Decl{}, false
	}

	d := Decl{
		Name:      trimNodeText(name, src),
		Container: enclosingTypeName(n, src, typeKinds),
		Kind:      querydb.KindFunc,
		SymKind:   protocol.SymbolKindFunction,
		Storage:   cStorageClass(n, src),
		NameRange: nodeRange(name, lines),
	}
	if name.Kind() == "qualified_identifier" {
		// Use the trailing name for "A::f" out-of-line definitions and
		// scope the symbol to A.
		if scope := name.ChildByFieldName("scope"); scope != nil && d.Container == "" {
			d.Container = trimNodeText(scope, src)
		}
		if inner := name.ChildByFieldName("name"); inner != nil {
			d.Name = trimNodeText(inner, src)
			d.NameRange = nodeRange(inner, lines)
		}
	}
	if d.Container != "" {
		d.SymKind = protocol.SymbolKindMethod
		d.ParentKind = protocol.SymbolKindClass
		if d.Storage == protocol.StorageStatic {
			d.SymKind = protocol.SymbolKindStaticMethod
		}
	}
	if d.Name == d.Container && d.Container != "" {
		d.SymKind = protocol.SymbolKindConstructor
	}
	return d, d.Name != ""
}

func cStorageClass(n *tree_sitter.Node, src []byte) protocol.StorageClass {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		ch := n.NamedChild(i)
		if ch == nil || ch.Kind() != "storage_class_specifier" {
			continue
		}
		switch trimNodeText(ch, src) {
		case "static":
			return protocol.StorageStatic
		case "extern":
			return protocol.StorageExtern
		}
	}
	return protocol.StorageNone
}
