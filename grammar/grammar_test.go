package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildArithGrammar assembles the same small left-recursive arithmetic
// grammar the teacher's first/follow/lalr1 tests use (expr/term/factor over
// +, *, parens and an atomic id), via the programmatic builder instead of
// the teacher's textual DSL.
func buildArithGrammar(t *testing.T) *GrammarBuilder {
	t.Helper()
	b := NewGrammarBuilder("arith")
	b.Left("+")
	b.Left("*")

	_, err := b.Production("expr", "expr '+' term")
	require.NoError(t, err)
	_, err = b.Production("expr", "term")
	require.NoError(t, err)
	_, err = b.Production("term", "term '*' factor")
	require.NoError(t, err)
	_, err = b.Production("term", "factor")
	require.NoError(t, err)
	_, err = b.Production("factor", "'(' expr ')'")
	require.NoError(t, err)
	_, err = b.Production("factor", "id")
	require.NoError(t, err)

	b.Start("expr")
	return b
}

func TestFinalizeBuildsTable(t *testing.T) {
	b := buildArithGrammar(t)
	gram, err := b.Finalize()
	require.NoError(t, err)
	require.NotNil(t, gram)
	assert.Empty(t, gram.Warnings())

	tab, err := gram.Export()
	require.NoError(t, err)
	assert.Greater(t, tab.StateCount, 0)
	assert.NotEmpty(t, tab.Fingerprint)

	reducers := gram.Reducers()
	assert.Len(t, reducers, tab.ProductionCount+1)
}

func TestLALRSubsumesLR0(t *testing.T) {
	b := buildArithGrammar(t)
	ok, err := LALRSubsumesLR0(b)
	require.NoError(t, err)
	assert.True(t, ok, "every LALR(1) action must also appear among the LR0 alternatives for the same cell")
}

func TestFinalizeRejectsDuplicateProduction(t *testing.T) {
	b := NewGrammarBuilder("dup")
	_, err := b.Production("expr", "id")
	require.NoError(t, err)
	_, err = b.Production("expr", "id")
	assert.ErrorIs(t, err, semErrDuplicateProduction)
}

func TestFinalizeRejectsDuplicateName(t *testing.T) {
	b := NewGrammarBuilder("dupname")
	_, err := b.Production("expr", "id")
	require.NoError(t, err)
	// "expr" was registered as a non-terminal above; using it as an RHS
	// token just references that non-terminal.
	_, err = b.Production("stmt", "expr")
	require.NoError(t, err, "expr as an RHS token should just reference the existing non-terminal")

	_, err = b.Production("id", "expr")
	assert.ErrorIs(t, err, semErrDuplicateName, "id was already registered as a terminal; using it as an LHS must fail")
}

func TestFinalizeRequiresStartAndProductions(t *testing.T) {
	b := NewGrammarBuilder("empty")
	_, err := b.Finalize()
	require.Error(t, err)

	b2 := NewGrammarBuilder("nostart")
	_, err = b2.Production("expr", "id")
	require.NoError(t, err)
	_, err = b2.Finalize()
	require.Error(t, err)
}

func TestEBNFDesugaring(t *testing.T) {
	b := NewGrammarBuilder("list")
	var kinds []string
	b.OnEBNFExpansion(func(op EBNFOperator, lhs, clause string) {
		kinds = append(kinds, op.String()+":"+clause)
	})
	_, err := b.Production("list", "id*")
	require.NoError(t, err)
	b.Start("list")

	gram, err := b.Finalize()
	require.NoError(t, err)
	require.NotNil(t, gram)
	assert.NotEmpty(t, kinds)
}

// TestArrayArgsGetterRoundTrips only checks that GrammarBuilder.ArrayArgs
// flips Grammar.ArrayArgs() through Finalize; this package cannot also
// exercise glr.Parser's reducer-invocation shape without an import cycle
// (glr imports grammar), so that end-to-end assertion lives in
// glr/parser_test.go's TestParseArrayArgsSingleVector instead.
func TestArrayArgsGetterRoundTrips(t *testing.T) {
	b := NewGrammarBuilder("sum")
	b.Left("+")

	prod, err := b.Production("expr", "expr '+' id")
	require.NoError(t, err)
	prod.Reduce(func(env interface{}, values []interface{}, positions []Position) (interface{}, error) {
		return values[0].(int) + values[2].(int), nil
	})
	base, err := b.Production("expr", "id")
	require.NoError(t, err)
	base.Reduce(func(env interface{}, values []interface{}, positions []Position) (interface{}, error) {
		return values[0].(int), nil
	})
	b.Start("expr")

	gram, err := b.Finalize()
	require.NoError(t, err)
	assert.False(t, gram.ArrayArgs())

	b2 := NewGrammarBuilder("sum2")
	b2.Left("+")
	_, err = b2.Production("expr", "expr '+' id")
	require.NoError(t, err)
	_, err = b2.Production("expr", "id")
	require.NoError(t, err)
	b2.Start("expr")
	b2.ArrayArgs()

	gram2, err := b2.Finalize()
	require.NoError(t, err)
	assert.True(t, gram2.ArrayArgs())
}
