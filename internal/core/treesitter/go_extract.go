//go:build treesitter && cgo

package treesitter

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

func extractGo(src []byte) (*Result, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	lang := tree_sitter.NewLanguage(tree_sitter_go.Language())
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
		case "function_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				res.Decls = append(res.Decls, Decl{
					Name:      trimNodeText(name, src),
					Kind:      querydb.KindFunc,
					SymKind:   protocol.SymbolKindFunction,
					NameRange: nodeRange(name, lines),
				})
			}
		case "method_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				res.Decls = append(res.Decls, Decl{
					Name:       trimNodeText(name, src),
					Container:  goReceiverType(n, src),
					Kind:       querydb.KindFunc,
					SymKind:    protocol.SymbolKindMethod,
					ParentKind: protocol.SymbolKindStruct,
					NameRange:  nodeRange(name, lines),
				})
			}
		case "type_spec":
			if d, ok := goTypeSpec(n, src, lines); ok {
				res.Decls = append(res.Decls, d)
			}
		case "var_spec", "const_spec":
			symKind := protocol.SymbolKindVariable
			if n.Kind() == "const_spec" {
				symKind = protocol.SymbolKindConstant
			}
			for i := uint(0); i < n.NamedChildCount(); i++ {
				ch := n.NamedChild(i)
				if ch == nil || ch.Kind() != "identifier" {
					continue
				}
				res.Decls = append(res.Decls, Decl{
					Name:      trimNodeText(ch, src),
					Kind:      querydb.KindVar,
					SymKind:   symKind,
					NameRange: nodeRange(ch, lines),
				})
			}
		}

		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}

	walk(root)
	return res, nil
}

func goTypeSpec(n *tree_sitter.Node, src []byte, lines [][]byte) (Decl, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return Decl{}, false
	}
	symKind := protocol.SymbolKindTypeAlias
	if typ := goUnwrapType(n.ChildByFieldName("type")); typ != nil {
		switch typ.Kind() {
		case "struct_type":
			symKind = protocol.SymbolKindStruct
		case "interface_type":
			symKind = protocol.SymbolKindInterface
		}
	}
	return Decl{
		Name:      trimNodeText(name, src),
		Kind:      querydb.KindType,
		SymKind:   symKind,
		NameRange: nodeRange(name, lines),
	}, true
}

func goReceiverType(m *tree_sitter.Node, src []byte) string {
	recv := m.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := uint(0); i < recv.NamedChildCount(); i++ {
		ch := recv.NamedChild(i)
		if ch == nil || ch.Kind() != "parameter_declaration" {
			continue
		}
		typ := goUnwrapType(ch.ChildByFieldName("type"))
		if typ == nil {
			return ""
		}
		switch typ.Kind() {
		case "type_identifier", "identifier":
			return trimNodeText(typ, src)
		case "generic_type":
			return trimNodeText(typ.ChildByFieldName("type"), src)
		}
		if id := firstDescendantKind(typ, map[string]struct{}{"type_identifier": {}}); id != nil {
			return strings.TrimSpace(id.Utf8Text(src))
		}
		return ""
	}
	return ""
}

func goUnwrapType(typ *tree_sitter.Node) *tree_sitter.Node {
	for typ != nil {
		switch typ.Kind() {
		case "parenthesized_type", "pointer_type":
			if typ.NamedChildCount() == 0 {
				return typ
			}
			typ = typ.NamedChild(0)
		default:
			return typ
		}
	}
	return nil
}
