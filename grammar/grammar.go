package grammar

import (
	"fmt"
	"strings"

	"github.com/corvidtools/glrforge/grammar/symbol"
)

const reservedSymbolNameError = "error"

// EBNFOperator identifies which suffix operator synthesized a helper
// nonterminal during desugaring.
type EBNFOperator int

const (
	EBNFStar EBNFOperator = iota
	EBNFPlus
	EBNFOptional
)

func (op EBNFOperator) String() string {
	switch op {
	case EBNFStar:
		return "*"
	case EBNFPlus:
		return "+"
	case EBNFOptional:
		return "?"
	default:
		return "?unknown"
	}
}

// EBNFObserver is called once per helper production inserted by desugaring
// (so twice per synthesized nonterminal), naming the operator, the
// synthesized LHS, and which of its two productions ("base" or
// "recursive") was just inserted, so a caller's reducer can
// special-case aggregate-value construction (e.g. folding a `X*` into a
// slice) instead of treating the synthesized symbol as ordinary.
type EBNFObserver func(op EBNFOperator, syntheticLHS string, clause string)

// Clause is one unattached RHS alternative, built with GrammarBuilder.Clause
// so several alternatives can be assembled before being committed to a
// shared LHS via GrammarBuilder.Alt.
type Clause struct {
	rhsPattern string
	precedence string
	reducer    Reducer
}

// Production is a handle to a single registered grammar rule, returned so
// the caller can attach a Reducer in a fluent style:
//
//	p, err := b.Production("expr", "expr '+' term")
//	p.Reduce(func(env interface{}, v []interface{}, pos []Position) (interface{}, error) { ... })
type Production struct {
	prod *production
	b    *GrammarBuilder
}

// Reduce attaches r as the semantic action for p's RHS.
func (p *Production) Reduce(r Reducer) *Production {
	p.prod.reducer = r
	return p
}

// GrammarBuilder is the programmatic grammar-definition surface: callers
// register productions, precedence/associativity groups, and a start
// symbol, then call Finalize to run CFG analysis and build the parsing
// table.
type GrammarBuilder struct {
	name string

	symTab *symbol.SymbolTable
	prods  *productionSet
	pa     *precAndAssoc

	startName string
	errSym    symbol.Symbol

	lhsNames map[string]struct{}
	rhsNames map[string]struct{}

	precLevel int

	arrayArgs    bool
	ebnfObserver EBNFObserver
	ebnfSeq      map[string]int

	errs []error
}

// NewGrammarBuilder creates an empty builder for a grammar named name (used
// only for diagnostics and fingerprinting, not parsing behavior).
func NewGrammarBuilder(name string) *GrammarBuilder {
	symTab := symbol.NewSymbolTable()
	errSym, _ := symTab.Writer().RegisterTerminalSymbol(reservedSymbolNameError)

	return &GrammarBuilder{
		name:      name,
		symTab:    symTab,
		prods:     newProductionSet(),
		pa:        newPrecAndAssoc(),
		errSym:    errSym,
		lhsNames:  map[string]struct{}{},
		rhsNames:  map[string]struct{}{},
		precLevel: precMin,
		ebnfSeq:   map[string]int{},
	}
}

// ArrayArgs switches the convention reducers receive their RHS values
// under: off (the default) passes one positional argument per RHS symbol;
// on, reducers receive a single []interface{} argument.
func (b *GrammarBuilder) ArrayArgs() *GrammarBuilder {
	b.arrayArgs = true
	return b
}

// OnEBNFExpansion registers the callback invoked each time `X*`/`X+`/`X?`
// desugaring synthesizes a helper production.
func (b *GrammarBuilder) OnEBNFExpansion(observer EBNFObserver) *GrammarBuilder {
	b.ebnfObserver = observer
	return b
}

// Start declares nonterminal as the grammar's start symbol. Must be called
// before Finalize.
func (b *GrammarBuilder) Start(nonterminal string) *GrammarBuilder {
	b.startName = nonterminal
	return b
}

// Left declares terms as left-associative at a new, tighter-than-previous
// precedence level.
func (b *GrammarBuilder) Left(terms ...string) *GrammarBuilder {
	b.declareAssoc(assocTypeLeft, terms)
	return b
}

// Right declares terms as right-associative at a new precedence level.
func (b *GrammarBuilder) Right(terms ...string) *GrammarBuilder {
	b.declareAssoc(assocTypeRight, terms)
	return b
}

// NonAssoc declares terms as non-associative at a new precedence level.
func (b *GrammarBuilder) NonAssoc(terms ...string) *GrammarBuilder {
	b.declareAssoc(assocTypeNil, terms)
	return b
}

func (b *GrammarBuilder) declareAssoc(assoc assocType, terms []string) {
	syms := make([]symbol.Symbol, 0, len(terms))
	for _, t := range terms {
		sym, err := b.symTab.Writer().RegisterTerminalSymbol(t)
		if err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		b.rhsNames[t] = struct{}{}
		syms = append(syms, sym)
	}
	b.pa.declareAssoc(b.precLevel, assoc, syms)
	b.precLevel++
}

// Clause builds a detached RHS alternative for later use with Alt.
// precedence, if given, names the terminal whose precedence/associativity
// this clause inherits, overriding the usual right-most-terminal rule
// (mirroring a yacc `%prec` override).
func (b *GrammarBuilder) Clause(rhsPattern string, reducer Reducer, precedence ...string) *Clause {
	c := &Clause{rhsPattern: rhsPattern, reducer: reducer}
	if len(precedence) > 0 {
		c.precedence = precedence[0]
	}
	return c
}

// Production registers one grammar rule: lhs → rhsPattern, where
// rhsPattern is a space-separated sequence of symbol names (quote a
// terminal's literal text with single quotes, e.g. `'+'`) optionally
// suffixed with an EBNF operator (`*`, `+`, `?`). precedence, if given,
// overrides the production's inherited precedence/associativity, exactly
// like Clause's precedence parameter.
func (b *GrammarBuilder) Production(lhs, rhsPattern string, precedence ...string) (*Production, error) {
	prec := ""
	if len(precedence) > 0 {
		prec = precedence[0]
	}
	return b.addClause(lhs, &Clause{rhsPattern: rhsPattern, precedence: prec})
}

// Alt registers several alternatives sharing lhs in one call, as built by
// Clause; it returns one *Production handle per clause, in order.
func (b *GrammarBuilder) Alt(lhs string, clauses ...*Clause) ([]*Production, error) {
	out := make([]*Production, 0, len(clauses))
	for _, c := range clauses {
		p, err := b.addClause(lhs, c)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *GrammarBuilder) addClause(lhs string, c *Clause) (*Production, error) {
	if sym, ok := b.symTab.Reader().ToSymbol(lhs); ok && sym.IsTerminal() {
		b.errs = append(b.errs, semErrDuplicateName)
		return nil, semErrDuplicateName
	}
	lhsSym, err := b.symTab.Writer().RegisterNonTerminalSymbol(lhs)
	if err != nil {
		return nil, err
	}
	b.lhsNames[lhs] = struct{}{}

	rhs, err := b.resolveRHS(lhs, c.rhsPattern)
	if err != nil {
		b.errs = append(b.errs, err)
		return nil, err
	}

	prod, err := newProduction(lhsSym, rhs, c.reducer)
	if err != nil {
		b.errs = append(b.errs, err)
		return nil, err
	}
	if !b.prods.append(prod) {
		b.errs = append(b.errs, semErrDuplicateProduction)
		return nil, semErrDuplicateProduction
	}

	if c.precedence != "" {
		overrideSym, err := b.symTab.Writer().RegisterTerminalSymbol(c.precedence)
		if err != nil {
			return nil, err
		}
		b.rhsNames[c.precedence] = struct{}{}
		b.pa.inheritProductionPrec(prod, overrideSym)
	} else {
		b.pa.inheritProductionPrec(prod, symbol.SymbolNil)
	}

	return &Production{prod: prod, b: b}, nil
}

// resolveRHS tokenizes rhsPattern, desugaring any EBNF-suffixed token into
// a synthesized helper nonterminal and registering every plain token as
// either a terminal or nonterminal symbol (resolved definitively only once
// Finalize has seen every LHS the caller ever declares).
func (b *GrammarBuilder) resolveRHS(lhs, rhsPattern string) ([]symbol.Symbol, error) {
	tokens := strings.Fields(rhsPattern)
	rhs := make([]symbol.Symbol, 0, len(tokens))
	for _, tok := range tokens {
		name, op, hasOp := splitEBNFSuffix(tok)
		if !hasOp {
			sym, err := b.registerRHSSymbol(name)
			if err != nil {
				return nil, err
			}
			rhs = append(rhs, sym)
			continue
		}

		helper, err := b.desugarEBNF(name, op)
		if err != nil {
			return nil, err
		}
		rhs = append(rhs, helper)
	}
	return rhs, nil
}

// registerRHSSymbol resolves one RHS token, which may name either an
// already-declared non-terminal (an ordinary nonterminal reference, e.g.
// the `expr` in `factor -> '(' expr ')'`) or a terminal, registering the
// latter on first use. RegisterTerminalSymbol's idempotent lookup means an
// existing non-terminal name simply comes back unchanged here — no
// duplicate-name conflict, since referencing a non-terminal from an RHS is
// the ordinary case, not a collision.
func (b *GrammarBuilder) registerRHSSymbol(name string) (symbol.Symbol, error) {
	if strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") && len(name) >= 2 {
		name = name[1 : len(name)-1]
	}
	b.rhsNames[name] = struct{}{}
	return b.symTab.Writer().RegisterTerminalSymbol(name)
}

func splitEBNFSuffix(tok string) (name string, op EBNFOperator, hasOp bool) {
	if tok == "" {
		return tok, 0, false
	}
	switch tok[len(tok)-1] {
	case '*':
		return tok[:len(tok)-1], EBNFStar, true
	case '+':
		return tok[:len(tok)-1], EBNFPlus, true
	case '?':
		return tok[:len(tok)-1], EBNFOptional, true
	default:
		return tok, 0, false
	}
}

// desugarEBNF synthesizes a fresh helper nonterminal for name<op> (a new one
// for every occurrence, numbered per name and operator) and returns its
// symbol. Per
// spec, `X*` and `X+` both get a left-recursive helper production plus a
// base case; `X?` gets an empty alternative and a pass-through alternative.
func (b *GrammarBuilder) desugarEBNF(name string, op EBNFOperator) (symbol.Symbol, error) {
	elemSym, err := b.registerRHSSymbol(name)
	if err != nil {
		return symbol.SymbolNil, err
	}

	seq := b.ebnfSeq[name+op.String()]
	b.ebnfSeq[name+op.String()] = seq + 1
	helperName := fmt.Sprintf("%s__%s__%d", name, ebnfOpTag(op), seq)

	helperSym, err := b.symTab.Writer().RegisterNonTerminalSymbol(helperName)
	if err != nil {
		return symbol.SymbolNil, err
	}
	b.lhsNames[helperName] = struct{}{}

	switch op {
	case EBNFOptional:
		empty, _ := newProduction(helperSym, nil, nil)
		b.prods.append(empty)
		b.notifyEBNF(op, helperName, "base")

		one, _ := newProduction(helperSym, []symbol.Symbol{elemSym}, nil)
		b.prods.append(one)
		b.notifyEBNF(op, helperName, "recursive")
	case EBNFStar:
		empty, _ := newProduction(helperSym, nil, nil)
		b.prods.append(empty)
		b.notifyEBNF(op, helperName, "base")

		rec, _ := newProduction(helperSym, []symbol.Symbol{helperSym, elemSym}, nil)
		b.prods.append(rec)
		b.notifyEBNF(op, helperName, "recursive")
	case EBNFPlus:
		one, _ := newProduction(helperSym, []symbol.Symbol{elemSym}, nil)
		b.prods.append(one)
		b.notifyEBNF(op, helperName, "base")

		rec, _ := newProduction(helperSym, []symbol.Symbol{helperSym, elemSym}, nil)
		b.prods.append(rec)
		b.notifyEBNF(op, helperName, "recursive")
	}

	return helperSym, nil
}

func (b *GrammarBuilder) notifyEBNF(op EBNFOperator, lhs, clause string) {
	if b.ebnfObserver != nil {
		b.ebnfObserver(op, lhs, clause)
	}
}

func ebnfOpTag(op EBNFOperator) string {
	switch op {
	case EBNFStar:
		return "star"
	case EBNFPlus:
		return "plus"
	case EBNFOptional:
		return "opt"
	default:
		return "op"
	}
}

// LookaheadMode selects how much lookahead Finalize computes for conflict
// resolution: LALR1 (the default) runs full spontaneous-generation-and-
// propagation lookahead; LR0 skips it, so every reduction in a reducible
// state fires on every terminal (used only to implement
// LALRSubsumesLR0/testing, per spec's property 2).
type LookaheadMode int

const (
	LALR1 LookaheadMode = iota
	LR0
)

type finalizeConfig struct {
	lookahead  LookaheadMode
	precedence bool
}

// FinalizeOption configures Finalize, mirroring driver.ParserOption's
// functional-options shape.
type FinalizeOption func(*finalizeConfig)

// WithLookahead selects LR0 or LALR1 lookahead computation.
func WithLookahead(mode LookaheadMode) FinalizeOption {
	return func(c *finalizeConfig) { c.lookahead = mode }
}

// WithPrecedence toggles whether the table builder consults declared
// precedence/associativity (Left/Right/NonAssoc, Clause's precedence
// override) when resolving a shift/reduce conflict. Enabled by default;
// disabling it forces the conventional LALR fallback instead — shift wins
// every shift/reduce conflict, and reduce/reduce conflicts still resolve by
// production declaration order (that path never consulted precedence to
// begin with).
func WithPrecedence(enabled bool) FinalizeOption {
	return func(c *finalizeConfig) { c.precedence = enabled }
}

// Grammar is the finalized, analyzed form of a GrammarBuilder: productions
// are numbered, FIRST/FOLLOW/automaton/parsing table are all computed, and
// the grammar can no longer be mutated (per spec's non-goal of thread-safe
// mutation of a finalized grammar — Finalize simply never exposes a setter
// afterward).
type Grammar struct {
	name                 string
	symbolTable           *symbol.SymbolTable
	productionSet        *productionSet
	augmentedStartSymbol symbol.Symbol
	errorSymbol          symbol.Symbol
	precAndAssoc         *precAndAssoc
	arrayArgs            bool

	table       *ParsingTable
	report      *Report
	warnings    []string
}

func (g *Grammar) Name() string { return g.name }

// ArrayArgs reports whether GrammarBuilder.ArrayArgs was set.
func (g *Grammar) ArrayArgs() bool { return g.arrayArgs }

// Warnings lists non-fatal findings collected during Finalize: nonterminals
// unreachable from the start symbol and terminals that no reachable
// production uses. Unproductive nonterminals are not detected.
func (g *Grammar) Warnings() []string { return g.warnings }

// Report returns the human/machine-readable table explanation built during
// Finalize (states, conflicts and how each was resolved).
func (g *Grammar) Report() *Report { return g.report }

// SymbolTable exposes the reader half of the grammar's interned symbols,
// e.g. for a caller translating an external lexer's token kind into a
// symbol.Symbol.
func (g *Grammar) SymbolTable() *symbol.SymbolTableReader { return g.symbolTable.Reader() }

// Table returns the finalized parsing table.
func (g *Grammar) Table() *ParsingTable { return g.table }

// Reducers returns every production's Reducer indexed by production
// number, matching table.ParsingTable's LHSSymbols/RHSLengths indexing
// (slot 0 unused, the augmented start production never fires a reducer).
// A glr.Parser is built from a table.ParsingTable plus this slice, since
// Reducer closures cannot survive the table's gob-encoded cache.
func (g *Grammar) Reducers() []Reducer {
	prods := g.productionSet.getAllProductions()
	rs := make([]Reducer, len(prods)+1)
	for _, p := range prods {
		rs[p.num.Int()] = p.reducer
	}
	return rs
}

func (b *GrammarBuilder) Finalize(opts ...FinalizeOption) (*Grammar, error) {
	cfg := &finalizeConfig{lookahead: LALR1, precedence: true}
	for _, o := range opts {
		o(cfg)
	}

	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.startName == "" {
		return nil, fmt.Errorf("a start symbol must be set via Start before Finalize")
	}
	if len(b.prods.getAllProductions()) == 0 {
		return nil, semErrNoProduction
	}

	realStartSym, ok := b.symTab.Reader().ToSymbol(b.startName)
	if !ok {
		return nil, semErrUndefinedSym
	}

	// The augmented start symbol S' is a distinct synthetic symbol from the
	// caller's real start nonterminal S; it is registered under its own
	// reserved name so it never collides with a user-defined production.
	augStartSym, err := b.symTab.Writer().RegisterStartSymbol("<start>")
	if err != nil {
		return nil, err
	}

	augProd, err := newProduction(augStartSym, []symbol.Symbol{realStartSym}, nil)
	if err != nil {
		return nil, err
	}
	b.prods.append(augProd)

	warnings := b.checkUsage(realStartSym)

	automaton, err := genLR0Automaton(b.prods, augStartSym, b.errSym)
	if err != nil {
		return nil, err
	}

	if cfg.lookahead == LALR1 {
		first, err := genFirstSet(b.prods)
		if err != nil {
			return nil, err
		}
		if _, err := genLALR1Automaton(automaton, b.prods, first); err != nil {
			return nil, err
		}
	} else {
		assignAllLookaheads(automaton, b.symTab.Reader())
	}

	builder := &lrTableBuilder{
		automaton:         automaton,
		prods:             b.prods,
		termCount:         b.symTab.Reader().TerminalCount(),
		nonTermCount:      b.symTab.Reader().NonTerminalCount(),
		symTab:            b.symTab.Reader(),
		precAndAssoc:      b.pa,
		precedenceEnabled: cfg.precedence,
	}
	tab, err := builder.build()
	if err != nil {
		return nil, err
	}

	gram := &Grammar{
		name:                 b.name,
		symbolTable:          b.symTab,
		productionSet:        b.prods,
		augmentedStartSymbol: augStartSym,
		errorSymbol:          b.errSym,
		precAndAssoc:         b.pa,
		arrayArgs:            b.arrayArgs,
		table:                tab,
		warnings:             warnings,
	}

	report, err := builder.genReport(tab, gram)
	if err != nil {
		return nil, err
	}
	gram.report = report

	return gram, nil
}

// checkUsage walks the production graph from start and returns a warning
// string for every nonterminal it never reaches, and every terminal that
// never appears on any production's RHS — non-fatal, surfaced via
// Grammar.Warnings rather than failing Finalize.
func (b *GrammarBuilder) checkUsage(start symbol.Symbol) []string {
	reached := map[symbol.Symbol]struct{}{start: {}}
	queue := []symbol.Symbol{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		prods, _ := b.prods.findByLHS(cur)
		for _, p := range prods {
			for _, sym := range p.rhs {
				if _, ok := reached[sym]; ok {
					continue
				}
				reached[sym] = struct{}{}
				if !sym.IsTerminal() {
					queue = append(queue, sym)
				}
			}
		}
	}

	var warnings []string
	for lhs := range b.lhsNames {
		sym, ok := b.symTab.Reader().ToSymbol(lhs)
		if !ok {
			continue
		}
		if _, ok := reached[sym]; !ok {
			warnings = append(warnings, fmt.Sprintf("%s: %s", semErrUnusedProduction, lhs))
		}
	}
	for rhs := range b.rhsNames {
		if _, isLHS := b.lhsNames[rhs]; isLHS {
			continue
		}
		sym, ok := b.symTab.Reader().ToSymbol(rhs)
		if !ok {
			continue
		}
		if _, ok := reached[sym]; !ok {
			warnings = append(warnings, fmt.Sprintf("%s: %s", semErrUnusedTerminal, rhs))
		}
	}
	return warnings
}

// assignAllLookaheads makes every reducible item in every state fire on
// every terminal symbol, the LR0 lookahead discipline Finalize uses when
// asked for WithLookahead(LR0).
func assignAllLookaheads(automaton *lr0Automaton, symTab *symbol.SymbolTableReader) {
	all := symTab.TerminalSymbols()
	for _, state := range automaton.states {
		for _, item := range state.items {
			if !item.reducible {
				continue
			}
			item.lookAhead.symbols = newSymbolSet()
			for _, t := range all {
				item.lookAhead.symbols.add(t)
			}
		}
		for _, item := range state.emptyProdItems {
			item.lookAhead.symbols = newSymbolSet()
			for _, t := range all {
				item.lookAhead.symbols.add(t)
			}
		}
	}
}

// LALRSubsumesLR0 checks testable property 2: every action the LALR(1)
// table assigns is also present among the alternatives an LR0-lookahead
// table would assign to the same cell (LALR(1) only ever narrows, never
// invents, a cell's action set). It rebuilds the LR0 table as a baseline
// and compares.
func LALRSubsumesLR0(b *GrammarBuilder) (bool, error) {
	lr0Gram, err := b.Finalize(WithLookahead(LR0))
	if err != nil {
		return false, err
	}
	lalrGram, err := b.Finalize(WithLookahead(LALR1))
	if err != nil {
		return false, err
	}

	for state := 0; state < lalrGram.table.stateCount; state++ {
		for term := 0; term < lalrGram.table.terminalCount; term++ {
			lalrAlts := lalrGram.table.Alternatives(stateNum(state), symbol.SymbolNum(term))
			lr0Alts := lr0Gram.table.Alternatives(stateNum(state), symbol.SymbolNum(term))
			lr0Set := map[actionEntry]struct{}{}
			for _, a := range lr0Alts {
				lr0Set[a] = struct{}{}
			}
			for _, a := range lalrAlts {
				if _, ok := lr0Set[a]; !ok {
					return false, nil
				}
			}
		}
	}
	return true, nil
}
