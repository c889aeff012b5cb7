// Package position holds the packed text coordinates used throughout the
// index. A Pos fits in 4 bytes and a Range in 8, so ranges can be used
// directly as map keys and hashed as a single integer at index-build volume.
package position

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxLine is the highest representable line number. Files longer than this
// cannot be addressed; the indexer refuses them up front.
const MaxLine = 0xffff

// Pos is a (line, column) pair. Column -1 marks an invalid/unset position.
type Pos struct {
	Line   uint16
	Column int16
}

func NewPos(line, column int) Pos {
	if line < 0 || line > MaxLine || column < 0 || column > 0x7fff {
		return Pos{Column: -1}
	}
	return Pos{Line: uint16(line), Column: int16(column)}
}

func (p Pos) Valid() bool { return p.Column >= 0 }

// Compare orders positions lexicographically by (line, column).
func (p Pos) Compare(o Pos) int {
	if p.Line != o.Line {
		if p.Line < o.Line {
			return -1
		}
		return 1
	}
	if p.Column != o.Column {
		if p.Column < o.Column {
			return -1
		}
		return 1
	}
	return 0
}

func (p Pos) Less(o Pos) bool { return p.Compare(o) < 0 }

// PosFromString parses the compact "line:column" encoding produced by
// Pos.String. Malformed input yields an invalid position; callers are
// expected to check Valid.
func PosFromString(s string) Pos {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return Pos{Column: -1}
	}
	line, err := strconv.Atoi(s[:i])
	if err != nil {
		return Pos{Column: -1}
	}
	col, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return Pos{Column: -1}
	}
	return NewPos(line, col)
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is a half-open [Start, End) span. It is valid iff Start is valid.
type Range struct {
	Start Pos
	End   Pos
}

func NewRange(sl, sc, el, ec int) Range {
	return Range{Start: NewPos(sl, sc), End: NewPos(el, ec)}
}

func (r Range) Valid() bool { return r.Start.Valid() }

// Contains reports whether (line, column) lies within [Start, End).
func (r Range) Contains(line, column int) bool {
	if line < 0 || line > MaxLine {
		return false
	}
	if column > 0x7fff {
		column = 0x7fff
	}
	p := Pos{Line: uint16(line), Column: int16(column)}
	return r.Start.Compare(p) <= 0 && p.Less(r.End)
}

func (r Range) Compare(o Range) int {
	if c := r.Start.Compare(o.Start); c != 0 {
		return c
	}
	return r.End.Compare(o.End)
}

func (r Range) Less(o Range) bool { return r.Compare(o) < 0 }

// Pack reinterprets the four 16-bit fields as one integer. Equal ranges
// always pack equally, so the packed value serves as a cheap dense hash
// and the ordering of packed values follows the range ordering.
func (r Range) Pack() uint64 {
	return uint64(r.Start.Line)<<48 |
		uint64(uint16(r.Start.Column))<<32 |
		uint64(r.End.Line)<<16 |
		uint64(uint16(r.End.Column))
}

// RangeFromString parses the "sl:sc-el:ec" encoding produced by
// Range.String. Malformed input yields an invalid range.
func RangeFromString(s string) Range {
	i := strings.IndexByte(s, '-')
	if i < 0 {
		return Range{Start: Pos{Column: -1}, End: Pos{Column: -1}}
	}
	return Range{Start: PosFromString(s[:i]), End: PosFromString(s[i+1:])}
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}
