package grammar

import (
	"github.com/corvidtools/glrforge/grammar/symbol"
	"github.com/emirpasic/gods/sets/hashset"
)

// symbolSet is a set of symbol.Symbol backed by gods/sets/hashset. FIRST,
// FOLLOW and LALR(1) lookahead computation all converge on "does this
// symbol already belong to this set" as their inner loop, which is exactly
// what hashset.Set is for.
type symbolSet struct {
	set *hashset.Set
}

func newSymbolSet() *symbolSet {
	return &symbolSet{set: hashset.New()}
}

// add reports whether sym was newly added.
func (s *symbolSet) add(sym symbol.Symbol) bool {
	if s.set.Contains(sym) {
		return false
	}
	s.set.Add(sym)
	return true
}

func (s *symbolSet) has(sym symbol.Symbol) bool {
	return s.set.Contains(sym)
}

func (s *symbolSet) len() int {
	return s.set.Size()
}

// each calls fn once per member; order is unspecified.
func (s *symbolSet) each(fn func(symbol.Symbol)) {
	for _, v := range s.set.Values() {
		fn(v.(symbol.Symbol))
	}
}

// slice returns the set's members as a plain slice, for callers that need
// a stable value to range/index over rather than a callback.
func (s *symbolSet) slice() []symbol.Symbol {
	vals := s.set.Values()
	out := make([]symbol.Symbol, len(vals))
	for i, v := range vals {
		out[i] = v.(symbol.Symbol)
	}
	return out
}

// merge adds every member of other into s, reporting whether s changed.
func (s *symbolSet) merge(other *symbolSet) bool {
	if other == nil {
		return false
	}
	changed := false
	other.each(func(sym symbol.Symbol) {
		if s.add(sym) {
			changed = true
		}
	})
	return changed
}
