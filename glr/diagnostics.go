package glr

import (
	"fmt"

	"github.com/corvidtools/glrforge/token"
)

// BadToken reports a token the lexer produced whose terminal name the
// grammar never declared — a collaborator bug, not a syntax error, since
// the grammar and the lexer have drifted out of sync.
type BadToken struct {
	Terminal string
	Position token.Position
}

func (e *BadToken) Error() string {
	return fmt.Sprintf("%d:%d: token names undeclared terminal %q", e.Position.Line, e.Position.ColStart, e.Terminal)
}

// NotInLanguage reports that every live spine died and panic-mode
// recovery could not re-synchronize any of them — the input, as written,
// is not a sentence of the grammar.
type NotInLanguage struct {
	Position          token.Position
	ExpectedTerminals []string
}

func (e *NotInLanguage) Error() string {
	return fmt.Sprintf("%d:%d: not in language, expected one of %v", e.Position.Line, e.Position.ColStart, e.ExpectedTerminals)
}

// HandledError reports that at least one spine hit a syntax error but
// panic-mode recovery resynchronized it, so the parse completed anyway.
// It is returned alongside a successful Result, not in place of one.
type HandledError struct {
	Position          token.Position
	ExpectedTerminals []string
}

func (e *HandledError) Error() string {
	return fmt.Sprintf("%d:%d: recovered from syntax error, expected one of %v", e.Position.Line, e.Position.ColStart, e.ExpectedTerminals)
}

// InternalParserError reports a condition the GLR runtime itself cannot
// recover from: a malformed table, a reducer that errored, or the live
// spine count exceeding its configured ceiling.
type InternalParserError struct {
	Reason string
}

func (e *InternalParserError) Error() string {
	return fmt.Sprintf("internal parser error: %s", e.Reason)
}
