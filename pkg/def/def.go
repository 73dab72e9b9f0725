// Package def holds the mutable per-item resolution state the iterative
// resolver fills in across passes: a symbol's address or constant value, a
// bankdef's resolved numeric fields, and an instruction or data item's
// address, encoded bits and width. Each list here is keyed by the same
// itemref.Ref index the matching pkg/decl list uses, so "definition N" and
// "declaration N" are always the same item.
package def

import (
	"math/big"

	"github.com/casmlang/casm/pkg/eval"
	"github.com/casmlang/casm/pkg/itemref"
	"github.com/casmlang/casm/pkg/rule"
)

// SymbolState is what a decl.Symbol resolves to: an address for a label, or
// a value for a constant.
type SymbolState struct {
	Resolved bool
	Address  *big.Int   // set when the owning decl.Symbol.IsLabel
	Value    eval.Value // set when the owning decl.Symbol is a constant
}

// BankdefState holds a bankdef's resolved numeric fields. addr_end and
// size are mutually exclusive in source; EffectiveSize is always populated
// once resolved, computed from whichever one was given.
type BankdefState struct {
	Resolved      bool
	Bits          int // bits per addressable unit (addr_unit), default 8
	Addr          *big.Int
	EffectiveSize *big.Int // addr_end - addr, or size, whichever was specified
	LabelAlign    int
	OutputOffset  *big.Int // outp, in the same addr_unit units as Addr/EffectiveSize
	Fill          bool     // pad the bank's region with zero bits up to size
}

// ItemState is the per-source-item resolution record: the address it was
// placed at, the bit pattern it encodes, and (for instructions) which rule
// matched it. Indexed in lockstep with decl.Collector.Items.
type ItemState struct {
	Resolved   bool
	Address    *big.Int // the item's address, in addr_unit units
	BankBitPos *big.Int // bit offset from the active bank's own origin (precise, sub-unit)
	Bits       *big.Int // the encoded value, BitWidth-bits wide
	BitWidth   int
	NoEmit     bool
	Match      *rule.Match // set for instruction items once a rule has matched
	Bank       string      // the name of the active bank this item was placed in
}

// State is the full mutable half of a program's definitions, built once
// (sized to match a decl.Collector's lists) and mutated in place across the
// resolver's passes.
type State struct {
	Symbols  itemref.DefList[SymbolState]
	Bankdefs itemref.DefList[BankdefState]
	Items    []ItemState
}

// NewState allocates zero-valued per-item state for the given counts, ready
// for the resolver to fill in iteratively.
func NewState(symbolCount, bankdefCount, itemCount int) *State {
	s := &State{Items: make([]ItemState, itemCount)}
	for i := 0; i < symbolCount; i++ {
		s.Symbols.Add(SymbolState{})
	}
	for i := 0; i < bankdefCount; i++ {
		s.Bankdefs.Add(BankdefState{})
	}
	return s
}
