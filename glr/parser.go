// Package glr implements a generalized-LR runtime over a table.ParsingTable:
// a frontier of spines explores every alternative a conflict cell offers
// (table.ParsingTable.Alternatives) instead of committing to one resolved
// winner, forking on divergence and merging spines whose future behavior
// has become indistinguishable. Panic-mode error recovery generalizes
// driver/parser.go's single onError/shiftCount state machine to run
// independently per spine.
package glr

import (
	"context"
	"fmt"
	"reflect"

	"github.com/corvidtools/glrforge/grammar"
	"github.com/corvidtools/glrforge/table"
	"github.com/corvidtools/glrforge/token"
	"github.com/pterm/pterm"
)

// AcceptMode selects how Parse treats multiple spines reaching accept.
type AcceptMode int

const (
	// AcceptFirst stops at the first spine to accept, matching ordinary
	// deterministic LR behavior when the grammar has no real ambiguity.
	AcceptFirst AcceptMode = iota
	// AcceptAll runs every live spine to completion and returns one value
	// per distinct accepted value: accepted parses whose values are
	// reflect.DeepEqual are reported once.
	AcceptAll
)

type parseConfig struct {
	accept    AcceptMode
	maxSpines int
	verbose   bool
	env       interface{}
	buildTree bool
}

// ParseOption configures a Parse call.
type ParseOption func(*parseConfig)

// WithAcceptMode selects AcceptFirst (default) or AcceptAll.
func WithAcceptMode(m AcceptMode) ParseOption { return func(c *parseConfig) { c.accept = m } }

// WithMaxSpines caps the number of simultaneously live spines, guarding
// against a grammar whose ambiguity makes the frontier grow without bound.
func WithMaxSpines(n int) ParseOption { return func(c *parseConfig) { c.maxSpines = n } }

// WithVerbose enables pterm-rendered tracing of every fork, shift, reduce
// and recovery step to stdout.
func WithVerbose(enabled bool) ParseOption { return func(c *parseConfig) { c.verbose = enabled } }

// WithEnv sets the opaque value every Reducer receives as its env argument.
func WithEnv(env interface{}) ParseOption { return func(c *parseConfig) { c.env = env } }

// WithParseTree asks Parse to build a ParseTree alongside each accepted
// spine's reducer value, independent of what the grammar's Reducers return.
func WithParseTree(enabled bool) ParseOption { return func(c *parseConfig) { c.buildTree = enabled } }

const defaultMaxSpines = 512

// Parser drives a GLR frontier over a fixed table and reducer set. Build
// one with NewParser and reuse it across many Parse calls.
type Parser struct {
	tab        *table.ParsingTable
	reducers   []grammar.Reducer
	termByName map[string]int
}

// NewParser builds a Parser from a finalized table (see
// grammar.Grammar.Export) and its reducers (see grammar.Grammar.Reducers).
func NewParser(tab *table.ParsingTable, reducers []grammar.Reducer) *Parser {
	p := &Parser{tab: tab, reducers: reducers}
	p.termByName = make(map[string]int, len(tab.Terminals))
	for i, name := range tab.Terminals {
		if name != "" {
			p.termByName[name] = i
		}
	}
	return p
}

// Result is the outcome of a successful Parse.
type Result struct {
	// Values holds one entry per accepted spine: exactly one under
	// AcceptFirst, possibly several distinct parses under AcceptAll.
	Values []interface{}
	// Warnings lists every syntax error panic-mode recovery resolved
	// along the way, even though the parse ultimately succeeded.
	Warnings []error
	// Trees holds one ParseTree per entry in Values, only populated when
	// Parse was called with WithParseTree(true).
	Trees []*ParseTree
}

// Parse runs the frontier over tokens to completion. It returns an error
// only when no spine survives to accept (*NotInLanguage), a token named an
// undeclared terminal (*BadToken), the runtime itself hit a condition it
// cannot recover from (*InternalParserError), or ctx was done or tokens.Next
// failed (that error is returned as is).
func (p *Parser) Parse(ctx context.Context, tokens token.Producer, opts ...ParseOption) (*Result, error) {
	cfg := parseConfig{accept: AcceptFirst, maxSpines: defaultMaxSpines}
	for _, o := range opts {
		o(&cfg)
	}

	toks, err := drain(tokens)
	if err != nil {
		return nil, err
	}

	work := []*spine{newSpine(p.tab.InitialState)}
	var accepted []*spine
	var warnings []error
	var furthest *NotInLanguage

	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cfg.accept == AcceptFirst && len(accepted) > 0 {
			break
		}
		if len(work) > cfg.maxSpines {
			return nil, &InternalParserError{Reason: fmt.Sprintf("live spine count exceeded %d", cfg.maxSpines)}
		}

		s := work[0]
		work = work[1:]

		term, terr := p.termAt(s, toks)
		if terr != nil {
			return nil, terr
		}

		alts := p.tab.Alternatives(s.state(), term)
		if len(alts) == 0 {
			if s.rec.onError {
				if s.cursor >= len(toks)-1 {
					p.traceEvent(cfg, "die", s)
					if nl := p.notInLanguage(s, toks); furthest == nil || nl.Position.Offset > furthest.Position.Offset {
						furthest = nl
					}
					continue
				}
				s.cursor++
				work = append(work, s)
				continue
			}

			diag := p.recover(s, toks)
			if s.dead {
				p.traceEvent(cfg, "die", s)
				if nl := p.notInLanguage(s, toks); furthest == nil || nl.Position.Offset > furthest.Position.Offset {
					furthest = nl
				}
				continue
			}
			warnings = append(warnings, diag)
			work = append(work, s)
			p.traceEvent(cfg, "recover", s)
			continue
		}

		for i, a := range alts {
			// Every alternative but the last runs on a fork, so s itself is
			// only advanced once all forks have been taken from it.
			child := s
			if i < len(alts)-1 {
				child = s.fork()
				p.traceEvent(cfg, "fork", child)
			}

			if a < 0 {
				p.doShift(child, toks, -a, term, cfg.buildTree)
				if !mergeInto(work, child) {
					work = append(work, child)
				}
				p.traceEvent(cfg, "shift", child)
				continue
			}

			accept, value, rerr := p.doReduce(child, a, cfg.env, cfg.buildTree)
			if rerr != nil {
				return nil, &InternalParserError{Reason: rerr.Error()}
			}
			if accept {
				tree := child.top.tree
				child.top = &stackNode{value: value, tree: tree}
				accepted = append(accepted, child)
				p.traceEvent(cfg, "accept", child)
				continue
			}
			if !mergeInto(work, child) {
				work = append(work, child)
			}
			p.traceEvent(cfg, "reduce", child)
		}
	}

	if len(accepted) == 0 {
		if furthest == nil {
			furthest = &NotInLanguage{}
		}
		return nil, furthest
	}

	res := &Result{Warnings: warnings}
	seen := make([]interface{}, 0, len(accepted))
	for _, s := range accepted {
		v := s.top.value
		if cfg.accept == AcceptFirst {
			res.Values = []interface{}{v}
			if cfg.buildTree {
				res.Trees = []*ParseTree{s.top.tree}
			}
			break
		}
		dup := false
		for _, sv := range seen {
			if reflect.DeepEqual(sv, v) {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, v)
			res.Values = append(res.Values, v)
			if cfg.buildTree {
				res.Trees = append(res.Trees, s.top.tree)
			}
		}
	}
	return res, nil
}

func (p *Parser) termAt(s *spine, toks []token.Token) (int, error) {
	tok := toks[s.cursor]
	name := tok.TerminalName()
	if name == token.EOFTerminalName {
		return p.tab.EOFSymbol, nil
	}
	term, ok := p.termByName[name]
	if !ok {
		return 0, &BadToken{Terminal: name, Position: tok.Position()}
	}
	return term, nil
}

func (p *Parser) doShift(s *spine, toks []token.Token, nextState, term int, buildTree bool) {
	tok := toks[s.cursor]
	pos := grammar.Position(tok.Position())

	// Mirrors driver/parser.go's shift-count recovery confirmation: after an
	// error, three shifts are counted and the fourth clears the spine's
	// recovery state.
	if s.rec.onError {
		if s.rec.shiftCount < 3 {
			s.rec.shiftCount++
		} else {
			s.rec.onError = false
			s.rec.shiftCount = 0
		}
	}

	var tree *ParseTree
	if buildTree {
		tree = leafTree(term, tok.Text(), pos)
	}
	s.top = &stackNode{parent: s.top, state: nextState, symbol: term, value: tok.Value(), pos: pos, tree: tree}
	s.cursor++
}

func (p *Parser) doReduce(s *spine, prodNum int, env interface{}, buildTree bool) (accept bool, value interface{}, err error) {
	if prodNum == p.tab.StartProduction {
		return true, s.top.value, nil
	}

	rhsLen := p.tab.RHSLengths[prodNum]
	lhs := p.tab.LHSSymbols[prodNum]

	values := make([]interface{}, rhsLen)
	positions := make([]grammar.Position, rhsLen)
	var children []*ParseTree
	if buildTree {
		children = make([]*ParseTree, rhsLen)
	}
	node := s.top
	for i := rhsLen - 1; i >= 0; i-- {
		values[i] = node.value
		positions[i] = node.pos
		if buildTree {
			children[i] = node.tree
		}
		node = node.parent
	}

	var result interface{}
	if reducer := p.reducers[prodNum]; reducer != nil {
		reducerArgs := values
		if p.tab.ArrayArgs {
			reducerArgs = []interface{}{values}
		}
		result, err = reducer(env, reducerArgs, positions)
		if err != nil {
			return false, nil, err
		}
	}

	nextState, ok := p.tab.GoToState(node.state, lhs)
	if !ok {
		return false, nil, fmt.Errorf("no goto for state %d on nonterminal %d", node.state, lhs)
	}

	mergedPos := mergePositions(positions)
	var tree *ParseTree
	if buildTree {
		tree = branchTree(lhs, mergedPos, children)
	}
	s.top = &stackNode{parent: node, state: nextState, symbol: lhs, value: result, pos: mergedPos, tree: tree}
	return false, nil, nil
}

// recover generalizes trapError/lookupActionOnError: it pops s's stack
// until an error-trapper state surfaces, then shifts the synthetic error
// terminal from there. A spine that runs off its own stack bottom without
// finding a trapper state is marked dead instead of aborting the parse.
func (p *Parser) recover(s *spine, toks []token.Token) *HandledError {
	tok := toks[s.cursor]
	diag := &HandledError{Position: tok.Position(), ExpectedTerminals: p.expectedAt(s.state())}

	node := s.top
	for p.tab.ErrorTrapperStates[node.state] == 0 {
		if node.parent == nil {
			s.dead = true
			return diag
		}
		node = node.parent
	}

	act := p.actionAt(node.state, p.tab.ErrorSymbol)
	if act >= 0 {
		s.dead = true
		return diag
	}

	s.top = &stackNode{parent: node, state: -act, symbol: p.tab.ErrorSymbol, pos: grammar.Position(tok.Position())}
	s.rec = recoveryState{onError: true, shiftCount: 0}
	return diag
}

func (p *Parser) actionAt(state, term int) int {
	return p.tab.Action[state*p.tab.TerminalCount+term]
}

func (p *Parser) notInLanguage(s *spine, toks []token.Token) *NotInLanguage {
	idx := s.cursor
	if idx >= len(toks) {
		idx = len(toks) - 1
	}
	return &NotInLanguage{Position: toks[idx].Position(), ExpectedTerminals: p.expectedAt(s.state())}
}

// expectedAt generalizes driver/parser.go's searchLookahead.
func (p *Parser) expectedAt(state int) []string {
	var names []string
	base := state * p.tab.TerminalCount
	for term := 0; term < p.tab.TerminalCount; term++ {
		if p.tab.Action[base+term] == 0 {
			continue
		}
		if term == p.tab.ErrorSymbol {
			continue
		}
		if term == p.tab.EOFSymbol {
			names = append(names, token.EOFTerminalName)
			continue
		}
		names = append(names, p.tab.Terminals[term])
	}
	return names
}

func drain(tokens token.Producer) ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := tokens.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.TerminalName() == token.EOFTerminalName {
			return toks, nil
		}
	}
}

func mergePositions(positions []grammar.Position) grammar.Position {
	if len(positions) == 0 {
		return grammar.Position{}
	}
	first := positions[0]
	last := positions[len(positions)-1]
	return grammar.Position{Offset: first.Offset, Line: first.Line, ColStart: first.ColStart, ColEnd: last.ColEnd}
}

// mergeInto reports whether candidate is structurally redundant with a
// spine already queued in work (same read position, same automaton state,
// same stack contents beneath), dropping the duplicate rather than letting
// the frontier grow with spines whose future is already decided.
func mergeInto(work []*spine, candidate *spine) bool {
	key := candidate.mergeKey()
	for _, other := range work {
		if other.mergeKey() != key {
			continue
		}
		if stacksEqual(other.top, candidate.top) {
			return true
		}
	}
	return false
}

func stacksEqual(a, b *stackNode) bool {
	for a != nil && b != nil {
		if a == b {
			return true
		}
		if a.state != b.state || a.symbol != b.symbol || !reflect.DeepEqual(a.value, b.value) {
			return false
		}
		a, b = a.parent, b.parent
	}
	return a == nil && b == nil
}

func (p *Parser) traceEvent(cfg parseConfig, kind string, s *spine) {
	if !cfg.verbose {
		return
	}
	pterm.Info.Println(fmt.Sprintf("%-8s spine=%s state=%d cursor=%d", kind, s.id.String()[:8], s.state(), s.cursor))
}
