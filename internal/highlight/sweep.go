package highlight

import (
	"sort"

	"codenav/internal/protocol"
	"codenav/internal/querydb"
)

// scanLineEvent is one interval endpoint. Insertion events carry the range
// end as a second sort key; deletion events are marked with a negative id
// (bitwise complement of the insertion id).
type scanLineEvent struct {
	pos    protocol.Position
	endPos protocol.Position
	id     int
	sym    *groupedSymbol
}

func (e scanLineEvent) less(o scanLineEvent) bool {
	if c := e.pos.Compare(o.pos); c != 0 {
		return c < 0
	}
	// At a shared start, the range that ends later is processed first so
	// the narrower range lands on top of the stack and wins.
	if c := e.endPos.Compare(o.endPos); c != 0 {
		return c > 0
	}
	// Macro has the largest kind value; processing larger kinds first
	// means a concrete Var/Type/Func pushed later covers the macro.
	if e.sym.Kind != o.sym.Kind {
		return e.sym.Kind > o.sym.Kind
	}
	// Stable insertion id keeps equal ranges fully deterministic.
	return e.id < o.id
}

// sweep rewrites each group's ranges into a non-overlapping partition of
// the covered text, attributing every sub-range to exactly one winner.
// Deletion is lazy: an end event only marks its id, and dead entries are
// popped off the top as encountered, keeping the pass O(n log n).
func sweep(grouped map[querydb.SymbolIdx]*groupedSymbol) {
	keys := make([]querydb.SymbolIdx, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].USR != keys[j].USR {
			return keys[i].USR < keys[j].USR
		}
		return keys[i].Kind < keys[j].Kind
	})

	var events []scanLineEvent
	id := 0
	for _, key := range keys {
		sym := grouped[key]
		for _, loc := range sym.lsRanges {
			events = append(events, scanLineEvent{pos: loc.Start, endPos: loc.End, id: id, sym: sym})
			// The relative order of deletion events at a shared end point
			// does not matter; they reuse the end as both keys.
			events = append(events, scanLineEvent{pos: loc.End, endPos: loc.End, id: ^id, sym: sym})
			id++
		}
		sym.lsRanges = nil
	}
	sort.Slice(events, func(i, j int) bool { return events[i].less(events[j]) })

	deleted := make([]bool, id)
	var stack []scanLineEvent
	for i := range events {
		for len(stack) > 0 && deleted[stack[len(stack)-1].id] {
			stack = stack[:len(stack)-1]
		}
		// Attribute [events[i-1].pos, events[i].pos) to the symbol on top
		// of the stack; zero-width spans are never emitted.
		if len(stack) > 0 && i > 0 && events[i-1].pos.Compare(events[i].pos) != 0 {
			top := stack[len(stack)-1]
			top.sym.lsRanges = append(top.sym.lsRanges, protocol.Range{
				Start: events[i-1].pos,
				End:   events[i].pos,
			})
		}
		if events[i].id >= 0 {
			stack = append(stack, events[i])
		} else {
			deleted[^events[i].id] = true
		}
	}

	for _, key := range keys {
		sym := grouped[key]
		sym.LSRanges = sym.lsRanges
		sym.lsRanges = nil
	}
}
