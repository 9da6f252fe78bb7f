package grammar

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

// Report is a human- and machine-readable description of a finalized
// parsing table: its symbols, productions, and the per-state action/goto
// rows, including which conflicts were found and how each was resolved.
// It replaces the teacher's JSON-tagged report struct (which existed to
// feed a CLI's `show`/`describe` subcommands) with a plain Go value the
// caller can inspect directly or hand to WriteReport for a pterm-rendered
// explanation.
type Report struct {
	Terminals    []*ReportTerminal
	NonTerminals []*ReportNonTerminal
	Productions  []*ReportProduction
	States       []*ReportState
}

type ReportTerminal struct {
	Number        int
	Name          string
	Precedence    int
	Associativity string
}

type ReportNonTerminal struct {
	Number int
	Name   string
}

type ReportProduction struct {
	Number        int
	LHS           int
	RHS           []int
	Precedence    int
	Associativity string
}

type ReportItem struct {
	Production int
	Dot        int
}

type ReportTransition struct {
	Symbol int
	State  int
}

type ReportReduce struct {
	LookAhead  []int
	Production int
}

type ReportSRConflict struct {
	Symbol             int
	State              int
	Production         int
	ResolvedBy         int
	AdoptedState       *int
	AdoptedProduction  *int
}

type ReportRRConflict struct {
	Symbol            int
	Production1       int
	Production2       int
	ResolvedBy        int
	AdoptedProduction int
}

type ReportState struct {
	Number     int
	Kernel     []*ReportItem
	Shift      []*ReportTransition
	Reduce     []*ReportReduce
	GoTo       []*ReportTransition
	SRConflict []*ReportSRConflict
	RRConflict []*ReportRRConflict
}

// WriteReport renders r to w: a line per terminal and non-terminal, then a
// colored, indented tree per state holding its kernel items and
// shift/reduce/goto actions, each followed by one line per conflict found
// in that state. Conflicts are called out with pterm's warning styling so a
// reader scanning a long report can spot them.
func WriteReport(w io.Writer, r *Report) error {
	printer := pterm.DefaultTree.WithWriter(w)

	for _, t := range r.Terminals {
		pterm.Info.WithWriter(w).Printfln("terminal %d: %s (prec %d, %s)", t.Number, t.Name, t.Precedence, t.Associativity)
	}
	for _, n := range r.NonTerminals {
		pterm.Info.WithWriter(w).Printfln("non-terminal %d: %s", n.Number, n.Name)
	}

	for _, s := range r.States {
		root := pterm.TreeNode{Text: fmt.Sprintf("state %d", s.Number)}

		var kernel []pterm.TreeNode
		for _, it := range s.Kernel {
			kernel = append(kernel, pterm.TreeNode{Text: fmt.Sprintf("production %d, dot %d", it.Production, it.Dot)})
		}
		if len(kernel) > 0 {
			root.Children = append(root.Children, pterm.TreeNode{Text: "kernel", Children: kernel})
		}

		var shifts []pterm.TreeNode
		for _, sh := range s.Shift {
			shifts = append(shifts, pterm.TreeNode{Text: fmt.Sprintf("on %d, go to %d", sh.Symbol, sh.State)})
		}
		if len(shifts) > 0 {
			root.Children = append(root.Children, pterm.TreeNode{Text: "shift", Children: shifts})
		}

		var reduces []pterm.TreeNode
		for _, rd := range s.Reduce {
			reduces = append(reduces, pterm.TreeNode{Text: fmt.Sprintf("on %v, reduce production %d", rd.LookAhead, rd.Production)})
		}
		if len(reduces) > 0 {
			root.Children = append(root.Children, pterm.TreeNode{Text: "reduce", Children: reduces})
		}

		var gotos []pterm.TreeNode
		for _, g := range s.GoTo {
			gotos = append(gotos, pterm.TreeNode{Text: fmt.Sprintf("on %d, go to %d", g.Symbol, g.State)})
		}
		if len(gotos) > 0 {
			root.Children = append(root.Children, pterm.TreeNode{Text: "goto", Children: gotos})
		}

		if err := printer.WithRoot(root).Render(); err != nil {
			return err
		}

		for _, c := range s.SRConflict {
			pterm.Warning.WithWriter(w).Printfln("state %d: shift/reduce conflict on symbol %d, resolved by rule %d", s.Number, c.Symbol, c.ResolvedBy)
		}
		for _, c := range s.RRConflict {
			pterm.Warning.WithWriter(w).Printfln("state %d: reduce/reduce conflict between productions %d and %d, resolved by rule %d", s.Number, c.Production1, c.Production2, c.ResolvedBy)
		}
	}

	return nil
}
