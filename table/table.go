// Package table holds the persisted form of a finalized parsing table: a
// flat, plain-int wire type with no dependency on the grammar package's
// internal symbol/production representations, plus Write/Load helpers that
// cache it to disk behind a fingerprint freshness check.
package table

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/cnf/structhash"
)

// wireVersion is bumped whenever the gob-encoded shape of ParsingTable
// changes incompatibly.
const wireVersion = 1

// ParsingTable is the persisted, symbol-free parsing table: actions and
// gotos are plain ints indexed by state*TerminalCount+symbol (for Action)
// or state*NonTerminalCount+symbol (for GoTo). A negative Action entry is
// a shift to state -entry; a positive entry is a reduce by production
// entry; zero is error.
type ParsingTable struct {
	Action     []int
	AltActions [][]int
	GoTo       []int

	StateCount       int
	InitialState     int
	TerminalCount    int
	NonTerminalCount int

	Terminals    []string
	NonTerminals []string
	EOFSymbol    int
	ErrorSymbol  int

	ErrorTrapperStates []int

	ProductionCount int
	StartProduction int
	LHSSymbols      []int
	RHSLengths      []int

	ArrayArgs bool

	// Fingerprint is a structhash digest of every field above except
	// itself; Load refuses to return a table whose Fingerprint doesn't
	// match the one freshly computed from a caller-supplied grammar, so a
	// stale cache on disk is never silently served.
	Fingerprint string
}

// ComputeFingerprint hashes t's structural fields (everything but the
// Fingerprint field itself) so Write/Load can detect a cache gone stale
// against the grammar that produced it.
func ComputeFingerprint(t *ParsingTable) (string, error) {
	cp := *t
	cp.Fingerprint = ""
	return structhash.Hash(cp, 1)
}

type wireEnvelope struct {
	Version int
	Table   ParsingTable
}

// Write gob-encodes t to w, after stamping its Fingerprint.
func Write(w io.Writer, t *ParsingTable) error {
	fp, err := ComputeFingerprint(t)
	if err != nil {
		return fmt.Errorf("table: compute fingerprint: %w", err)
	}
	t.Fingerprint = fp

	env := wireEnvelope{Version: wireVersion, Table: *t}
	return gob.NewEncoder(w).Encode(&env)
}

// WriteFile is Write against a freshly created/truncated file at path.
func WriteFile(path string, t *ParsingTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, t)
}

// Load gob-decodes a ParsingTable from r and verifies its Fingerprint
// against wantFingerprint (typically ComputeFingerprint run over a table
// freshly built from the current grammar). A mismatch means the cache on
// disk was built from a different grammar and must be rebuilt, reported as
// ErrStale rather than silently handed back. An empty wantFingerprint skips
// the check.
func Load(r io.Reader, wantFingerprint string) (*ParsingTable, error) {
	var env wireEnvelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("table: decode: %w", err)
	}
	if env.Version != wireVersion {
		return nil, fmt.Errorf("table: unsupported wire version %d (want %d)", env.Version, wireVersion)
	}
	if wantFingerprint != "" && env.Table.Fingerprint != wantFingerprint {
		return nil, ErrStale
	}
	t := env.Table
	return &t, nil
}

// LoadFile is Load against the file at path.
func LoadFile(path string, wantFingerprint string) (*ParsingTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(bytes.NewReader(b), wantFingerprint)
}

// ErrStale is returned by Load/LoadFile when the persisted table's
// fingerprint doesn't match the caller's current grammar.
var ErrStale = fmt.Errorf("table: persisted table is stale")

// Alternatives returns every action registered for (state, term), in
// registration order — the resolved winner first when no conflict ever
// touched the cell.
func (t *ParsingTable) Alternatives(state, term int) []int {
	pos := state*t.TerminalCount + term
	if pos < len(t.AltActions) && len(t.AltActions[pos]) > 0 {
		return t.AltActions[pos]
	}
	if pos < len(t.Action) && t.Action[pos] != 0 {
		return []int{t.Action[pos]}
	}
	return nil
}

// GoToState returns the registered goto state for (state, nonterm), or
// (0, false) if there is none. State 0 (the initial state) is never a
// valid goto target, so a stored 0 unambiguously means "no goto".
func (t *ParsingTable) GoToState(state, nonterm int) (int, bool) {
	pos := state*t.NonTerminalCount + nonterm
	if pos < 0 || pos >= len(t.GoTo) {
		return 0, false
	}
	s := t.GoTo[pos]
	return s, s != 0
}
