package highlight

import (
	"sort"

	"codenav/internal/querydb"
)

// encodeOffsets converts each group's line/column ranges into byte-offset
// pairs against the live buffer. Ranges are processed in start order, so
// one forward scan of the buffer serves all of them: the cursor never
// moves backward. A range whose endpoint falls outside the buffer is
// silently dropped.
func encodeOffsets(grouped map[querydb.SymbolIdx]*groupedSymbol, buf string) {
	type scratchEntry struct {
		r   [2]int // start line, start char; full range kept via idx
		sym *groupedSymbol
		i   int
	}
	var scratch []scratchEntry
	for _, sym := range grouped {
		for i := range sym.LSRanges {
			r := sym.LSRanges[i]
			scratch = append(scratch, scratchEntry{
				r:   [2]int{r.Start.Line, r.Start.Character},
				sym: sym,
				i:   i,
			})
		}
	}
	sort.Slice(scratch, func(a, b int) bool {
		if scratch[a].r[0] != scratch[b].r[0] {
			return scratch[a].r[0] < scratch[b].r[0]
		}
		return scratch[a].r[1] < scratch[b].r[1]
	})

	// Forward cursor over the buffer: l and c are the current line and
	// column (columns count codepoints), i the current byte offset. mov
	// advances to (line, col) and reports true when the target is out of
	// bounds. UTF-8 continuation bytes (0b10xxxxxx) are consumed without
	// counting; malformed sequences are tolerated, not rejected.
	l, c, i := 0, 0, 0
	mov := func(line, col int) bool {
		if l < line {
			c = 0
		}
		for ; l < line && i < len(buf); i++ {
			if buf[i] == '\n' {
				l++
			}
		}
		if l < line {
			return true
		}
		for ; c < col && i < len(buf) && buf[i] != '\n'; c++ {
			if buf[i] >= 0x80 {
				i++
				for i < len(buf) && buf[i] >= 0x80 && buf[i] < 0xC0 {
					i++
				}
			} else {
				i++
			}
		}
		return c < col
	}

	for _, entry := range scratch {
		r := entry.sym.LSRanges[entry.i]
		if mov(r.Start.Line, r.Start.Character) {
			continue
		}
		beg := i
		if mov(r.End.Line, r.End.Character) {
			continue
		}
		entry.sym.Ranges = append(entry.sym.Ranges, OffsetPair{Begin: beg, End: i})
	}

	for _, sym := range grouped {
		sym.LSRanges = nil
	}
}
