package glr

import (
	"context"
	"testing"

	"github.com/corvidtools/glrforge/grammar"
	"github.com/corvidtools/glrforge/token"
	"github.com/stretchr/testify/require"
)

// sliceProducer replays a fixed token slice, the same fixture shape the
// teacher's driver tests feed through token_stream.go.
type sliceProducer struct {
	toks []token.Token
	i    int
}

func (p *sliceProducer) Next() (token.Token, error) {
	t := p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t, nil
}

func numToken(v int) token.Token {
	return token.New("num", "", v, token.Position{})
}

func opToken(name string) token.Token {
	return token.New(name, name, nil, token.Position{})
}

func eofToken() token.Token {
	return token.New(token.EOFTerminalName, "", nil, token.Position{})
}

// buildArithGrammar mirrors grammar_test.go's fixture, but with reducers
// that actually evaluate integer arithmetic, so glr.Parser's shift/reduce
// dispatch and value threading can be exercised end to end.
func buildArithGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	b := grammar.NewGrammarBuilder("arith")
	b.Left("+")
	b.Left("*")

	add, err := b.Production("expr", "expr '+' term")
	require.NoError(t, err)
	add.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[0].(int) + v[2].(int), nil
	})
	passExpr, err := b.Production("expr", "term")
	require.NoError(t, err)
	passExpr.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[0], nil
	})

	mul, err := b.Production("term", "term '*' factor")
	require.NoError(t, err)
	mul.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[0].(int) * v[2].(int), nil
	})
	passTerm, err := b.Production("term", "factor")
	require.NoError(t, err)
	passTerm.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[0], nil
	})

	paren, err := b.Production("factor", "'(' expr ')'")
	require.NoError(t, err)
	paren.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[1], nil
	})
	atom, err := b.Production("factor", "num")
	require.NoError(t, err)
	atom.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[0], nil
	})

	b.Start("expr")
	gram, err := b.Finalize()
	require.NoError(t, err)
	return gram
}

func newArithParser(t *testing.T) *Parser {
	t.Helper()
	gram := buildArithGrammar(t)
	tab, err := gram.Export()
	require.NoError(t, err)
	return NewParser(tab, gram.Reducers())
}

func TestParseEvaluatesWithPrecedence(t *testing.T) {
	p := newArithParser(t)
	toks := &sliceProducer{toks: []token.Token{
		numToken(1), opToken("+"), numToken(2), opToken("*"), numToken(3), eofToken(),
	}}

	res, err := p.Parse(context.Background(), toks)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	require.Equal(t, 7, res.Values[0])
}

func TestParseParenthesized(t *testing.T) {
	p := newArithParser(t)
	toks := &sliceProducer{toks: []token.Token{
		opToken("("), numToken(1), opToken("+"), numToken(2), opToken(")"), opToken("*"), numToken(3), eofToken(),
	}}

	res, err := p.Parse(context.Background(), toks)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	require.Equal(t, 9, res.Values[0])
}

func TestParseBadTokenDiagnostic(t *testing.T) {
	p := newArithParser(t)
	toks := &sliceProducer{toks: []token.Token{
		token.New("percent", "%", nil, token.Position{}), eofToken(),
	}}

	_, err := p.Parse(context.Background(), toks)
	require.Error(t, err)
	_, ok := err.(*BadToken)
	require.True(t, ok, "expected *BadToken, got %T: %v", err, err)
}

func TestParseNotInLanguage(t *testing.T) {
	p := newArithParser(t)
	toks := &sliceProducer{toks: []token.Token{
		numToken(1), opToken("+"), opToken("+"), eofToken(),
	}}

	_, err := p.Parse(context.Background(), toks)
	require.Error(t, err)
}

func TestParseTreeEmission(t *testing.T) {
	p := newArithParser(t)
	toks := &sliceProducer{toks: []token.Token{
		numToken(1), opToken("+"), numToken(2), eofToken(),
	}}

	res, err := p.Parse(context.Background(), toks, WithParseTree(true))
	require.NoError(t, err)
	require.Len(t, res.Trees, 1)
	require.NotNil(t, res.Trees[0])
	require.Len(t, res.Trees[0].Children, 3)
}

// buildArrayArgsGrammar mirrors buildArithGrammar's add production, but
// with ArrayArgs enabled and a reducer that asserts it receives the RHS
// values as a single ordered vector instead of one positional argument per
// symbol.
func buildArrayArgsGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	b := grammar.NewGrammarBuilder("sum")
	b.Left("+")
	b.ArrayArgs()

	add, err := b.Production("expr", "expr '+' id")
	require.NoError(t, err)
	add.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		require.Len(t, v, 1, "array-args mode must pass a single vector argument")
		vec, ok := v[0].([]interface{})
		require.True(t, ok, "array-args mode's sole argument must be the RHS value vector")
		require.Len(t, vec, 3)
		return vec[0].(int) + vec[2].(int), nil
	})
	base, err := b.Production("expr", "id")
	require.NoError(t, err)
	base.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		require.Len(t, v, 1)
		vec, ok := v[0].([]interface{})
		require.True(t, ok)
		return vec[0].(int), nil
	})

	b.Start("expr")
	gram, err := b.Finalize()
	require.NoError(t, err)
	require.True(t, gram.ArrayArgs())
	return gram
}

func TestParseArrayArgsSingleVector(t *testing.T) {
	gram := buildArrayArgsGrammar(t)
	tab, err := gram.Export()
	require.NoError(t, err)
	require.True(t, tab.ArrayArgs)
	p := NewParser(tab, gram.Reducers())

	toks := &sliceProducer{toks: []token.Token{
		numToken(1), opToken("+"), numToken(2), opToken("+"), numToken(3), eofToken(),
	}}

	res, err := p.Parse(context.Background(), toks)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	require.Equal(t, 6, res.Values[0])
}

// buildAmbiguousGrammar declares expr '-' expr with no precedence or
// associativity, the classic dangling shift/reduce ambiguity: the table
// builder's conflict resolver still picks shift as the deterministic
// winner, but table.ParsingTable.Alternatives retains the contending reduce
// action too (see grammar/parsing_table.go's altActions), so a GLR frontier
// run with AcceptAll explores both groupings of "1 - 2 - 3" and surfaces
// both resulting values instead of only the shift-biased one.
func buildAmbiguousGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	b := grammar.NewGrammarBuilder("ambiguous")

	sub, err := b.Production("expr", "expr '-' expr")
	require.NoError(t, err)
	sub.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[0].(int) - v[2].(int), nil
	})
	atom, err := b.Production("expr", "num")
	require.NoError(t, err)
	atom.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[0], nil
	})

	b.Start("expr")
	gram, err := b.Finalize()
	require.NoError(t, err)
	return gram
}

func TestParseAcceptAllForksAmbiguousGrammar(t *testing.T) {
	gram := buildAmbiguousGrammar(t)
	tab, err := gram.Export()
	require.NoError(t, err)
	p := NewParser(tab, gram.Reducers())

	toks := &sliceProducer{toks: []token.Token{
		numToken(1), opToken("-"), numToken(2), opToken("-"), numToken(3), eofToken(),
	}}

	res, err := p.Parse(context.Background(), toks, WithAcceptMode(AcceptAll))
	require.NoError(t, err)
	// left grouping (1-2)-3 = -4, right grouping 1-(2-3) = 2: two distinct
	// accepted parses prove the frontier actually forked rather than
	// collapsing to the table's single resolved action.
	require.Len(t, res.Values, 2)
	require.ElementsMatch(t, []interface{}{-4, 2}, res.Values)
}

// buildRecoveringGrammar declares a panic-mode alternative alongside the
// ordinary one, so a malformed statement body can resync at the closing
// brace instead of failing the whole parse, mirroring driver/parser.go's
// ERROR-token recovery production.
func buildRecoveringGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	b := grammar.NewGrammarBuilder("recovering")

	ok, err := b.Production("stmt", "'{' num '}'")
	require.NoError(t, err)
	ok.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[1], nil
	})
	bad, err := b.Production("stmt", "'{' error '}'")
	require.NoError(t, err)
	bad.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return nil, nil
	})

	b.Start("stmt")
	gram, err := b.Finalize()
	require.NoError(t, err)
	return gram
}

func TestParseRecoversFromBadToken(t *testing.T) {
	gram := buildRecoveringGrammar(t)
	tab, err := gram.Export()
	require.NoError(t, err)
	p := NewParser(tab, gram.Reducers())

	// A second '{' is a declared terminal but not a valid stmt body token;
	// panic-mode recovery should discard it and resync at the closing brace
	// instead of failing. (An undeclared terminal is a *BadToken instead, see
	// TestParseBadTokenDiagnostic.)
	toks := &sliceProducer{toks: []token.Token{
		opToken("{"), opToken("{"), opToken("}"), eofToken(),
	}}

	res, err := p.Parse(context.Background(), toks)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	require.Len(t, res.Warnings, 1)
	_, ok := res.Warnings[0].(*HandledError)
	require.True(t, ok, "expected *HandledError, got %T: %v", res.Warnings[0], res.Warnings[0])
}

// buildRightAssocGrammar declares '^' as right-associative and '<' as
// non-associative, exercising GrammarBuilder.Right end to end (no test input
// uses '<'; it only adds a second precedence level): a right-associative '^'
// must evaluate 2^3^2 as 2^(3^2), not (2^3)^2.
func buildRightAssocGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	b := grammar.NewGrammarBuilder("pow")
	b.NonAssoc("<")
	b.Right("^")

	pow, err := b.Production("expr", "expr '^' expr")
	require.NoError(t, err)
	pow.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		base, exp := v[0].(int), v[2].(int)
		r := 1
		for i := 0; i < exp; i++ {
			r *= base
		}
		return r, nil
	})
	cmp, err := b.Production("expr", "expr '<' expr")
	require.NoError(t, err)
	cmp.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[0].(int) < v[2].(int), nil
	})
	atom, err := b.Production("expr", "num")
	require.NoError(t, err)
	atom.Reduce(func(env interface{}, v []interface{}, pos []grammar.Position) (interface{}, error) {
		return v[0], nil
	})

	b.Start("expr")
	gram, err := b.Finalize()
	require.NoError(t, err)
	return gram
}

func TestParseRightAssociativePower(t *testing.T) {
	gram := buildRightAssocGrammar(t)
	tab, err := gram.Export()
	require.NoError(t, err)
	p := NewParser(tab, gram.Reducers())

	toks := &sliceProducer{toks: []token.Token{
		numToken(2), opToken("^"), numToken(3), opToken("^"), numToken(2), eofToken(),
	}}

	res, err := p.Parse(context.Background(), toks)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	// right-associative: 2^(3^2) = 2^9 = 512, not (2^3)^2 = 64.
	require.Equal(t, 512, res.Values[0])
}

func TestParseMaxSpinesCeiling(t *testing.T) {
	p := newArithParser(t)
	toks := &sliceProducer{toks: []token.Token{numToken(1), eofToken()}}

	_, err := p.Parse(context.Background(), toks, WithMaxSpines(0))
	require.Error(t, err)
	_, ok := err.(*InternalParserError)
	require.True(t, ok, "expected *InternalParserError, got %T: %v", err, err)
}
