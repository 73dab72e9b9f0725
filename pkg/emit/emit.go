package emit

import (
	"math/big"

	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/decl"
	"github.com/casmlang/casm/pkg/def"
	"github.com/casmlang/casm/pkg/itemref"
	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/token"
)

// Emit places every resolved instruction/data/reserve artifact's encoded
// bits into one shared output buffer at its bank's scaled absolute bit
// position, rejects overlaps, pads every fill-enabled bank out to its
// declared size, and returns the final byte image.
func Emit(c *decl.Collector, st *def.State, rep *report.Report) []byte {
	buf := &BitBuf{}
	checker := &OverlapChecker{}

	offsetBits := map[string]*big.Int{}
	scaleBits := map[string]int64{}
	for _, ref := range c.Bankdefs.All() {
		bd := c.Bankdefs.Get(ref)
		bst := st.Bankdefs.Get(itemref.Of[def.BankdefState](ref.Index()))
		name := bankdefName(bd)
		scaleBits[name] = int64(bst.Bits)
		offsetBits[name] = new(big.Int).Mul(bst.OutputOffset, big.NewInt(int64(bst.Bits)))
	}

	for i := range c.Items {
		item := &st.Items[i]
		if item.Bits == nil || item.BitWidth == 0 || item.NoEmit {
			continue
		}
		base, ok := offsetBits[item.Bank]
		if !ok || item.BankBitPos == nil {
			continue
		}
		pos := new(big.Int).Add(base, item.BankBitPos)
		if !pos.IsInt64() {
			rep.Error(itemSpan(c.Items[i]), "output position exceeds what this assembler can address")
			continue
		}
		position := int(pos.Int64())

		if !checker.CheckAndInsert(rep, itemSpan(c.Items[i]), position, item.BitWidth) {
			continue
		}
		buf.SetBits(position, item.Bits, item.BitWidth)
	}

	for _, ref := range c.Bankdefs.All() {
		bd := c.Bankdefs.Get(ref)
		bst := st.Bankdefs.Get(itemref.Of[def.BankdefState](ref.Index()))
		if !bst.Fill || bst.EffectiveSize == nil {
			continue
		}
		name := bankdefName(bd)
		// Bank bit positions are relative to the bank's own origin, so the
		// filled region ends at outp + size*bits regardless of addr.
		endBits := new(big.Int).Mul(bst.EffectiveSize, big.NewInt(scaleBits[name]))
		absoluteEnd := new(big.Int).Add(offsetBits[name], endBits)
		if absoluteEnd.IsInt64() {
			buf.Grow(int(absoluteEnd.Int64()))
		}
	}

	return buf.Bytes()
}

func bankdefName(bd *ast.BankdefDirective) string {
	if bd.Name.Kind == ast.ExprString {
		return bd.Name.Str
	}
	return ""
}

// itemSpan picks out whichever sizing-directive field is set on a decl.Item,
// for attributing an overlap error to the right source location.
func itemSpan(item decl.Item) token.Span {
	switch {
	case item.Instruction != nil:
		return item.Instruction.Span
	case item.Data != nil:
		return item.Data.Span
	case item.Res != nil:
		return item.Res.Span
	case item.Align != nil:
		return item.Align.Span
	case item.Addr != nil:
		return item.Addr.Span
	case item.Assert != nil:
		return item.Assert.Span
	case item.Bank != nil:
		return item.Bank.Span
	case item.Label != nil:
		return item.Label.Span
	}
	return token.Span{}
}
