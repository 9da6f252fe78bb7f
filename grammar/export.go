package grammar

import (
	"github.com/corvidtools/glrforge/grammar/symbol"
	"github.com/corvidtools/glrforge/table"
)

// Export flattens g's internal, symbol-typed parsing table into the
// plain-int wire form table.Write/table.Load persist, mirroring how the
// teacher's spec.CompiledGrammar decouples its driver from the compiler's
// internal types.
func (g *Grammar) Export() (*table.ParsingTable, error) {
	symTab := g.symbolTable.Reader()
	termCount := symTab.TerminalCount()
	nonTermCount := symTab.NonTerminalCount()

	t := &table.ParsingTable{
		Action:           make([]int, g.table.stateCount*termCount),
		AltActions:       make([][]int, g.table.stateCount*termCount),
		GoTo:             make([]int, g.table.stateCount*nonTermCount),
		StateCount:       g.table.stateCount,
		InitialState:     g.table.InitialState.Int(),
		TerminalCount:    termCount,
		NonTerminalCount: nonTermCount,
		Terminals:        make([]string, termCount),
		NonTerminals:     make([]string, nonTermCount),
		EOFSymbol:        symbol.SymbolEOF.Num().Int(),
		ErrorSymbol:      g.errorSymbol.Num().Int(),
		ArrayArgs:        g.arrayArgs,
	}

	for _, sym := range symTab.TerminalSymbols() {
		name, _ := symTab.ToText(sym)
		t.Terminals[sym.Num().Int()] = name
	}
	for _, sym := range symTab.NonTerminalSymbols() {
		name, _ := symTab.ToText(sym)
		t.NonTerminals[sym.Num().Int()] = name
	}

	for state := 0; state < g.table.stateCount; state++ {
		for term := 0; term < termCount; term++ {
			act, next, prod := g.table.getAction(stateNum(state), symbol.SymbolNum(term))
			pos := state*termCount + term
			switch act {
			case ActionTypeShift:
				t.Action[pos] = -next.Int()
			case ActionTypeReduce:
				t.Action[pos] = prod.Int()
			}

			alts := g.table.Alternatives(stateNum(state), symbol.SymbolNum(term))
			for _, a := range alts {
				ty, s, p := a.describe()
				switch ty {
				case ActionTypeShift:
					t.AltActions[pos] = append(t.AltActions[pos], -s.Int())
				case ActionTypeReduce:
					t.AltActions[pos] = append(t.AltActions[pos], p.Int())
				}
			}
		}
		for nonterm := 0; nonterm < nonTermCount; nonterm++ {
			ty, next := g.table.getGoTo(stateNum(state), symbol.SymbolNum(nonterm))
			if ty == GoToTypeRegistered {
				t.GoTo[state*nonTermCount+nonterm] = next.Int()
			}
		}
	}

	t.ErrorTrapperStates = append([]int(nil), g.table.errorTrapperStates...)

	prods := g.productionSet.getAllProductions()
	t.ProductionCount = len(prods)
	t.StartProduction = productionNumStart.Int()
	t.LHSSymbols = make([]int, len(prods)+1)
	t.RHSLengths = make([]int, len(prods)+1)
	for _, p := range prods {
		t.LHSSymbols[p.num.Int()] = p.lhs.Num().Int()
		t.RHSLengths[p.num.Int()] = p.rhsLen
	}

	fp, err := table.ComputeFingerprint(t)
	if err != nil {
		return nil, err
	}
	t.Fingerprint = fp

	return t, nil
}
