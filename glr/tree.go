package glr

import (
	"fmt"
	"io"

	"github.com/corvidtools/glrforge/grammar"
	"github.com/corvidtools/glrforge/table"
)

// ParseTree is a concrete syntax tree built alongside the ordinary reducer
// values when a Parse call is made with WithParseTree. It exists independent
// of whatever a grammar's Reducer callbacks return, mirroring the teacher's
// driver.Node but generalized from a single ASCII-art renderer to a DOT
// writer so a multi-parse (AcceptAll) result's distinct trees can be told
// apart visually.
type ParseTree struct {
	Symbol     int
	IsTerminal bool
	Text       string
	Pos        grammar.Position
	Children   []*ParseTree
}

func leafTree(symbol int, text string, pos grammar.Position) *ParseTree {
	return &ParseTree{Symbol: symbol, IsTerminal: true, Text: text, Pos: pos}
}

func branchTree(symbol int, pos grammar.Position, children []*ParseTree) *ParseTree {
	return &ParseTree{Symbol: symbol, Pos: pos, Children: children}
}

func (t *ParseTree) label(tab *table.ParsingTable) string {
	if t == nil {
		return ""
	}
	if t.IsTerminal {
		if t.Symbol == tab.EOFSymbol {
			return "<eof>"
		}
		return tab.Terminals[t.Symbol]
	}
	return tab.NonTerminals[t.Symbol]
}

// WriteDOT renders root as a Graphviz DOT digraph: one node per ParseTree
// frame, labeled with its grammar symbol's name (and its shifted token text,
// for a leaf), edges from each reduction down to the RHS frames it was built
// from.
func WriteDOT(w io.Writer, tab *table.ParsingTable, root *ParseTree) error {
	if _, err := fmt.Fprintln(w, "digraph parse {"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, `  node [shape=box];`); err != nil {
		return err
	}
	next := 0
	if err := writeDOTNode(w, tab, root, &next); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func writeDOTNode(w io.Writer, tab *table.ParsingTable, t *ParseTree, next *int) (err error) {
	id := *next
	*next++

	label := t.label(tab)
	if t.IsTerminal && t.Text != "" {
		label = fmt.Sprintf("%s %q", label, t.Text)
	}
	if _, err = fmt.Fprintf(w, "  n%d [label=%q];\n", id, label); err != nil {
		return err
	}

	for _, child := range t.Children {
		childID := *next
		if err = writeDOTNode(w, tab, child, next); err != nil {
			return err
		}
		if _, err = fmt.Fprintf(w, "  n%d -> n%d;\n", id, childID); err != nil {
			return err
		}
	}
	return nil
}
