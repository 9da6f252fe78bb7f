package grammar

import (
	"github.com/corvidtools/glrforge/grammar/symbol"
)

type assocType string

const (
	assocTypeNil   = assocType("")
	assocTypeLeft  = assocType("left")
	assocTypeRight = assocType("right")
)

const (
	precNil = 0
	precMin = 1
)

// precAndAssoc holds the precedence/associativity of terminal symbols, plus
// the precedence/associativity each production inherits from them (either
// its right-most terminal, or an explicit override supplied to Production/
// Clause), used to resolve shift/reduce conflicts during table
// construction.
type precAndAssoc struct {
	termPrec  map[symbol.SymbolNum]int
	termAssoc map[symbol.SymbolNum]assocType

	prodPrec  map[productionNum]int
	prodAssoc map[productionNum]assocType
}

func newPrecAndAssoc() *precAndAssoc {
	return &precAndAssoc{
		termPrec:  map[symbol.SymbolNum]int{},
		termAssoc: map[symbol.SymbolNum]assocType{},
		prodPrec:  map[productionNum]int{},
		prodAssoc: map[productionNum]assocType{},
	}
}

func (pa *precAndAssoc) terminalPrecedence(sym symbol.SymbolNum) int {
	prec, ok := pa.termPrec[sym]
	if !ok {
		return precNil
	}
	return prec
}

func (pa *precAndAssoc) terminalAssociativity(sym symbol.SymbolNum) assocType {
	assoc, ok := pa.termAssoc[sym]
	if !ok {
		return assocTypeNil
	}
	return assoc
}

func (pa *precAndAssoc) productionPredence(prod productionNum) int {
	prec, ok := pa.prodPrec[prod]
	if !ok {
		return precNil
	}
	return prec
}

func (pa *precAndAssoc) productionAssociativity(prod productionNum) assocType {
	assoc, ok := pa.prodAssoc[prod]
	if !ok {
		return assocTypeNil
	}
	return assoc
}

// declareAssoc records one level of precedence (one Left/Right/NonAssoc
// call) for a group of terminal symbols. Levels are assigned in call order,
// matching the teacher's "directives earlier in the file bind looser"
// convention.
func (pa *precAndAssoc) declareAssoc(level int, assoc assocType, terms []symbol.Symbol) {
	for _, t := range terms {
		pa.termPrec[t.Num()] = level
		pa.termAssoc[t.Num()] = assoc
	}
}

// inheritProductionPrec assigns prod's precedence/associativity either from
// an explicit override terminal or, absent one, from the right-most
// terminal symbol of its RHS.
func (pa *precAndAssoc) inheritProductionPrec(prod *production, override symbol.Symbol) {
	if !override.IsNil() {
		if prec, ok := pa.termPrec[override.Num()]; ok {
			pa.prodPrec[prod.num] = prec
			pa.prodAssoc[prod.num] = pa.termAssoc[override.Num()]
			return
		}
	}

	mostRightTerm := symbol.SymbolNil
	for _, sym := range prod.rhs {
		if !sym.IsTerminal() {
			continue
		}
		mostRightTerm = sym
	}
	if mostRightTerm.IsNil() {
		return
	}
	pa.prodPrec[prod.num] = pa.termPrec[mostRightTerm.Num()]
	pa.prodAssoc[prod.num] = pa.termAssoc[mostRightTerm.Num()]
}
