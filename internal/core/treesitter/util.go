//go:build treesitter && cgo

package treesitter

import (
	"bytes"
	"strings"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"codenav/internal/position"
)

// splitSourceLines keeps line bytes around so byte columns from the
// parser can be re-counted as codepoint columns.
func splitSourceLines(src []byte) [][]byte {
	lines := bytes.Split(src, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimSuffix(line, []byte("\r"))
	}
	return lines
}

func pointToPos(lines [][]byte, pt tree_sitter.Point) position.Pos {
	row := int(pt.Row)
	if row > int(position.MaxLine) {
		row = int(position.MaxLine)
	}
	col := int(pt.Column)
	if row < len(lines) {
		line := lines[row]
		if col > len(line) {
			col = len(line)
		}
		col = utf8.RuneCount(line[:col])
	}
	return position.NewPos(row, col)
}

func nodeRange(n *tree_sitter.Node, lines [][]byte) position.Range {
	if n == nil {
		return position.NewRange(-1, -1, -1, -1)
	}
	return position.Range{
		Start: pointToPos(lines, n.StartPosition()),
		End:   pointToPos(lines, n.EndPosition()),
	}
}

func trimNodeText(n *tree_sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Utf8Text(src))
}

func firstDescendantKind(n *tree_sitter.Node, want map[string]struct{}) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		ch := n.NamedChild(i)
		if ch == nil {
			continue
		}
		if _, ok := want[ch.Kind()]; ok {
			return ch
		}
		if found := firstDescendantKind(ch, want); found != nil {
			return found
		}
	}
	return nil
}

func enclosingTypeName(n *tree_sitter.Node, src []byte, typeKinds map[string]struct{}) string {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		if _, ok := typeKinds[cur.Kind()]; !ok {
			continue
		}
		if name := trimNodeText(cur.ChildByFieldName("name"), src); name != "" {
			return name
		}
	}
	return ""
}
