package grammar

import (
	"fmt"

	"github.com/corvidtools/glrforge/grammar/symbol"
)

type followEntry struct {
	symbols *symbolSet
	eof     bool
}

func newFollowEntry() *followEntry {
	return &followEntry{
		symbols: newSymbolSet(),
		eof:     false,
	}
}

func (e *followEntry) add(sym symbol.Symbol) bool {
	return e.symbols.add(sym)
}

func (e *followEntry) addEOF() bool {
	if !e.eof {
		e.eof = true
		return true
	}
	return false
}

func (e *followEntry) merge(fst *firstEntry, flw *followEntry) bool {
	changed := false

	if fst != nil {
		if e.symbols.merge(fst.symbols) {
			changed = true
		}
	}

	if flw != nil {
		if e.symbols.merge(flw.symbols) {
			changed = true
		}
		if flw.eof {
			if e.addEOF() {
				changed = true
			}
		}
	}

	return changed
}

type followSet struct {
	set map[symbol.Symbol]*followEntry
}

func newFollow(prods *productionSet) *followSet {
	flw := &followSet{
		set: map[symbol.Symbol]*followEntry{},
	}
	for _, prod := range prods.getAllProductions() {
		if _, ok := flw.set[prod.lhs]; ok {
			continue
		}
		flw.set[prod.lhs] = newFollowEntry()
	}
	return flw
}

func (flw *followSet) find(sym symbol.Symbol) (*followEntry, error) {
	e, ok := flw.set[sym]
	if !ok {
		return nil, fmt.Errorf("an entry of FOLLOW was not found; symbol: %s", sym)
	}
	return e, nil
}

type followComContext struct {
	prods  *productionSet
	first  *firstSet
	follow *followSet
}

func newFollowComContext(prods *productionSet, first *firstSet) *followComContext {
	return &followComContext{
		prods:  prods,
		first:  first,
		follow: newFollow(prods),
	}
}

// genFollowSet computes FOLLOW by fixed-point iteration over the production
// set, consulting the already-computed FIRST set for lookahead propagation
// across nullable symbols.
func genFollowSet(prods *productionSet, first *firstSet) (*followSet, error) {
	ntsyms := map[symbol.Symbol]struct{}{}
	for _, prod := range prods.getAllProductions() {
		if _, ok := ntsyms[prod.lhs]; ok {
			continue
		}
		ntsyms[prod.lhs] = struct{}{}
	}

	cc := newFollowComContext(prods, first)
	for {
		more := false
		for ntsym := range ntsyms {
			e, err := cc.follow.find(ntsym)
			if err != nil {
				return nil, err
			}
			if ntsym.IsStart() {
				if e.addEOF() {
					more = true
				}
			}
			for _, prod := range prods.getAllProductions() {
				for i, sym := range prod.rhs {
					if sym != ntsym {
						continue
					}
					fst, err := first.find(prod, i+1)
					if err != nil {
						return nil, err
					}
					if e.merge(fst, nil) {
						more = true
					}
					if fst.empty {
						flw, err := cc.follow.find(prod.lhs)
						if err != nil {
							return nil, err
						}
						if e.merge(nil, flw) {
							more = true
						}
					}
				}
			}
		}
		if !more {
			break
		}
	}

	return cc.follow, nil
}
