package grammar

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/corvidtools/glrforge/grammar/symbol"
	"golang.org/x/exp/slices"
)

type lrItemID [32]byte

func (id lrItemID) String() string {
	return fmt.Sprintf("%x", id.num())
}

func (id lrItemID) num() uint32 {
	return binary.LittleEndian.Uint32(id[:])
}

// lookAhead holds the terminals under which a reducible item actually fires.
// propagation is true while the item still needs to receive lookaheads from
// a predecessor item during LALR(1) propagation (see lalr1.go).
type lookAhead struct {
	symbols     *symbolSet
	propagation bool
}

// lrItem is an LR(0) item augmented with a LALR(1) lookahead set.
//
// E → E + T
//
// Dot | Dotted Symbol | Item
// ----+---------------+------------
// 0   | E             | E →・E + T
// 1   | +             | E → E・+ T
// 2   | T             | E → E +・T
// 3   | Nil           | E → E + T・
type lrItem struct {
	id   lrItemID
	prod productionID

	dot          int
	dottedSymbol symbol.Symbol

	// initial is true for the augmented item S' →・S.
	initial bool

	// reducible is true for an item of the form E → E + T・.
	reducible bool

	// kernel is true when the item belongs to a state's kernel (every item
	// but the initial item's dot must have advanced past position 0).
	kernel bool

	lookAhead lookAhead
}

func newLR0Item(prod *production, dot int) (*lrItem, error) {
	if prod == nil {
		return nil, fmt.Errorf("production must be non-nil")
	}
	if dot < 0 || dot > prod.rhsLen {
		return nil, fmt.Errorf("dot must be between 0 and %v", prod.rhsLen)
	}

	var id lrItemID
	{
		b := []byte{}
		b = append(b, prod.id[:]...)
		bDot := make([]byte, 8)
		binary.LittleEndian.PutUint64(bDot, uint64(dot))
		b = append(b, bDot...)
		id = sha256.Sum256(b)
	}

	dottedSymbol := symbol.SymbolNil
	if dot < prod.rhsLen {
		dottedSymbol = prod.rhs[dot]
	}

	initial := prod.lhs.IsStart() && dot == 0
	reducible := dot == prod.rhsLen
	kernel := initial || dot > 0

	return &lrItem{
		id:           id,
		prod:         prod.id,
		dot:          dot,
		dottedSymbol: dottedSymbol,
		initial:      initial,
		reducible:    reducible,
		kernel:       kernel,
	}, nil
}

type kernelID [32]byte

func (id kernelID) String() string {
	return fmt.Sprintf("%x", binary.LittleEndian.Uint32(id[:]))
}

type kernel struct {
	id    kernelID
	items []*lrItem
}

func newKernel(items []*lrItem) (*kernel, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("a kernel needs at least one item")
	}

	var sortedItems []*lrItem
	{
		m := map[lrItemID]*lrItem{}
		for _, item := range items {
			if !item.kernel {
				return nil, fmt.Errorf("not a kernel item: %v", item)
			}
			m[item.id] = item
		}
		for _, item := range m {
			sortedItems = append(sortedItems, item)
		}
		slices.SortFunc(sortedItems, func(a, b *lrItem) bool {
			return a.id.num() < b.id.num()
		})
	}

	var id kernelID
	{
		b := []byte{}
		for _, item := range sortedItems {
			b = append(b, item.id[:]...)
		}
		id = sha256.Sum256(b)
	}

	return &kernel{id: id, items: sortedItems}, nil
}

type stateNum int

const stateNumInitial = stateNum(0)

func (n stateNum) Int() int {
	return int(n)
}

func (n stateNum) String() string {
	return strconv.Itoa(int(n))
}

func (n stateNum) next() stateNum {
	return stateNum(n + 1)
}

// lrState is a canonical LR(0) item set (a GLR/LALR automaton state).
type lrState struct {
	*kernel
	num       stateNum
	next      map[symbol.Symbol]kernelID
	reducible map[productionID]struct{}

	// emptyProdItems holds reducible items whose production is empty
	// (p → ε). CLOSURE never puts such an item in a kernel, so their
	// lookahead sets have to be tracked out of band.
	emptyProdItems []*lrItem

	// isErrorTrapper is true when this state has an item of the form
	// A → α・error β, making it a valid target for panic-mode recovery.
	isErrorTrapper bool
}
