package grammar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/corvidtools/glrforge/grammar/symbol"
)

// productionID identifies a production by the content of its LHS/RHS, so two
// productions built from the same symbols (even across separate Production
// calls) collapse to the same production instead of being registered twice.
type productionID [32]byte

func (id productionID) String() string {
	return hex.EncodeToString(id[:])
}

func genProductionID(lhs symbol.Symbol, rhs []symbol.Symbol) productionID {
	seq := lhs.Byte()
	for _, sym := range rhs {
		seq = append(seq, sym.Byte()...)
	}
	return productionID(sha256.Sum256(seq))
}

type productionNum uint16

const (
	productionNumNil   = productionNum(0)
	productionNumStart = productionNum(1)
	productionNumMin   = productionNum(2)
)

func (n productionNum) Int() int {
	return int(n)
}

// Reducer synthesizes a value for the LHS of a production from the values of
// its RHS symbols. env is the caller-supplied, opaque per-parse environment;
// values holds one entry per RHS symbol (or, under ArrayArgs, is passed as a
// single slice argument); positions carries file offset/line/column info for
// each RHS symbol, in the same order.
type Reducer func(env interface{}, values []interface{}, positions []Position) (interface{}, error)

// Position mirrors the position fields an external lexer attaches to a
// token, per the token contract.
type Position struct {
	Offset int
	Line   int
	ColStart int
	ColEnd   int
}

type production struct {
	id     productionID
	num    productionNum
	lhs    symbol.Symbol
	rhs    []symbol.Symbol
	rhsLen int

	precLevel int // 0 means "no explicit/inherited precedence"
	reducer   Reducer
}

func newProduction(lhs symbol.Symbol, rhs []symbol.Symbol, reducer Reducer) (*production, error) {
	if lhs.IsNil() {
		return nil, fmt.Errorf("LHS must be a non-nil symbol; LHS: %v, RHS: %v", lhs, rhs)
	}
	for _, sym := range rhs {
		if sym.IsNil() {
			return nil, fmt.Errorf("a symbol of RHS must be a non-nil symbol; LHS: %v, RHS: %v", lhs, rhs)
		}
	}

	return &production{
		id:      genProductionID(lhs, rhs),
		lhs:     lhs,
		rhs:     rhs,
		rhsLen:  len(rhs),
		reducer: reducer,
	}, nil
}

func (p *production) isEmpty() bool {
	return p.rhsLen == 0
}

type productionSet struct {
	lhs2Prods map[symbol.Symbol][]*production
	id2Prod   map[productionID]*production
	num       productionNum
}

func newProductionSet() *productionSet {
	return &productionSet{
		lhs2Prods: map[symbol.Symbol][]*production{},
		id2Prod:   map[productionID]*production{},
		num:       productionNumMin,
	}
}

// append registers prod, assigning it a dense number in definition order
// (the augmented start production is always numbered 1). It returns false
// when an identical production (same LHS/RHS) was already registered.
func (ps *productionSet) append(prod *production) bool {
	if _, ok := ps.id2Prod[prod.id]; ok {
		return false
	}

	if prod.lhs.IsStart() {
		prod.num = productionNumStart
	} else {
		prod.num = ps.num
		ps.num++
	}

	ps.lhs2Prods[prod.lhs] = append(ps.lhs2Prods[prod.lhs], prod)
	ps.id2Prod[prod.id] = prod

	return true
}

func (ps *productionSet) findByID(id productionID) (*production, bool) {
	prod, ok := ps.id2Prod[id]
	return prod, ok
}

func (ps *productionSet) findByLHS(lhs symbol.Symbol) ([]*production, bool) {
	if lhs.IsNil() {
		return nil, false
	}
	prods, ok := ps.lhs2Prods[lhs]
	return prods, ok
}

func (ps *productionSet) getAllProductions() map[productionID]*production {
	return ps.id2Prod
}
