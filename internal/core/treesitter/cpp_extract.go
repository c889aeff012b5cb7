//go:build treesitter && cgo

package treesitter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"

	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

var cppTypeKinds = map[string]struct{}{
	"struct_specifier": {},
	"union_specifier":  {},
	"enum_specifier":   {},
	"class_specifier":  {},
}

func extractCPP(src []byte) (*Result, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	lang := tree_sitter.NewLanguage(tree_sitter_cpp.Language())
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

		switch n.Kind() {
		case "class_specifier":
			if n.ChildByFieldName("body") != nil {
				if name := n.ChildByFieldName("name"); name != nil {
					res.Decls = append(res.Decls, Decl{
						Name:      trimNodeText(name, src),
						Container: enclosingTypeName(n, src, cppTypeKinds),
						Kind:      querydb.KindType,
						SymKind:   protocol.SymbolKindClass,
						NameRange: nodeRange(name, lines),
					})
				}
			}
		case "namespace_definition":
			if name := n.ChildByFieldName("name"); name != nil {
				res.Decls = append(res.Decls, Decl{
					Name:      trimNodeText(name, src),
					Kind:      querydb.KindType,
					SymKind:   protocol.SymbolKindNamespace,
					NameRange: nodeRange(name, lines),
				})
			}
		case "field_declaration":
			// Method prototypes inside a class body carry a
			// function_declarator; plain data members do not.
			if fn := firstDescendantKind(n, map[string]struct{}{"function_declarator": {}}); fn != nil {
				if d, ok := makeCFunction(n, src, lines, cppTypeKinds); ok {
					res.Decls = append(res.Decls, d)
				}
			} else if name := firstDescendantKind(n, identifierKinds); name != nil {
				res.Decls = append(res.Decls, Decl{
					Name:       trimNodeText(name, src),
					Container:  enclosingTypeName(n, src, cppTypeKinds),
					Kind:       querydb.KindVar,
					SymKind:    protocol.SymbolKindField,
					ParentKind: protocol.SymbolKindClass,
					Storage:    cStorageClass(n, src),
					NameRange:  nodeRange(name, lines),
				})
			}
		default:
			collectCLike(n, src, lines, res, cppTypeKinds)
		}

		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i))
		}
	}

	walk(root)
	return res, nil
}
