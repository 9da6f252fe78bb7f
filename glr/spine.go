package glr

import (
	"github.com/corvidtools/glrforge/grammar"
	"github.com/google/uuid"
)

// stackNode is one immutable frame of a spine's combined state/value stack.
// Forking a spine never copies its stack: the new spine simply starts from
// the same *stackNode, so unforked history is shared structurally rather
// than duplicated, the same way Tomita's graph-structured stack shares a
// common tail between diverging branches.
type stackNode struct {
	parent *stackNode
	state  int
	symbol int // the grammar symbol this frame was pushed for; 0 at the root
	value  interface{}
	pos    grammar.Position
	// tree is non-nil only when the Parse call asked for WithParseTree;
	// left nil otherwise so ordinary parsing never pays for it.
	tree *ParseTree
}

// recoveryState tracks one spine's progress through panic-mode error
// recovery, generalizing driver/parser.go's single onError/shiftCount
// pair so each spine in a frontier recovers independently.
type recoveryState struct {
	onError    bool
	shiftCount int
}

// spine is one branch of a GLR parse: a state/value stack plus its own
// cursor into the token buffer and its own recovery state. Spines fork when
// a table cell offers more than one contending action and merge back when
// two spines reach the same (cursor, state) pair with structurally equal
// stacks.
type spine struct {
	id     uuid.UUID
	top    *stackNode
	cursor int
	rec    recoveryState
	// dead is set once a spine fails panic-mode recovery (ran off the
	// bottom of its stack without finding an error-trapper state); dead
	// spines are dropped from the frontier rather than retried.
	dead bool
}

func newSpine(initialState int) *spine {
	return &spine{
		id:  uuid.New(),
		top: &stackNode{state: initialState},
	}
}

// fork clones s into a new spine sharing s's current stack top, cursor and
// recovery state, diverging only in subsequent steps.
func (s *spine) fork() *spine {
	c := *s
	c.id = uuid.New()
	return &c
}

func (s *spine) state() int { return s.top.state }

// mergeKey is the cheap first test of a merge: same read position and same
// automaton state. Spines sharing a key can still reduce into different
// stack contents, so mergeInto merges a candidate only when stacksEqual
// also holds, at the moment the candidate would be queued.
type mergeKey struct {
	cursor int
	state  int
}

func (s *spine) mergeKey() mergeKey {
	return mergeKey{cursor: s.cursor, state: s.state()}
}
