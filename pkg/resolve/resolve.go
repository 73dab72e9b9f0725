// Package resolve implements the iterative fixed-point resolver: repeated
// passes over the flattened item stream that advance every address, label,
// instruction encoding, data element, reserve, align and assert toward a
// stable value, breaking forward-reference cycles by comparing each pass's
// values to the previous pass's instead of following a mutable reference
// graph.
package resolve

import (
	"fmt"
	"math/big"

	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/decl"
	"github.com/casmlang/casm/pkg/def"
	"github.com/casmlang/casm/pkg/eval"
	"github.com/casmlang/casm/pkg/fsrv"
	"github.com/casmlang/casm/pkg/itemref"
	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/rule"
)

// MaxIterations bounds the main fixed-point loop.
const MaxIterations = 10

// Resolver ties the AST-derived declarations, the matcher, the expression
// evaluator and the mutable per-item state together for the duration of one
// assembly run.
type Resolver struct {
	Collector *decl.Collector
	State     *def.State
	Matcher   *rule.Matcher
	Report    *report.Report
	FS        fsrv.Server

	bankdefByName map[string]itemref.Ref[ast.BankdefDirective]
	matches       [][]rule.Match
}

// NewResolver prepares a Resolver for c's declarations, reading include
// files through fs for incbin-family builtins.
func NewResolver(c *decl.Collector, fs fsrv.Server, rep *report.Report) *Resolver {
	r := &Resolver{
		Collector:     c,
		State:         def.NewState(c.Symbols.Len(), c.Bankdefs.Len(), len(c.Items)),
		Matcher:       rule.NewMatcher(&c.Ruledefs),
		Report:        rep,
		FS:            fs,
		bankdefByName: map[string]itemref.Ref[ast.BankdefDirective]{},
		matches:       make([][]rule.Match, len(c.Items)),
	}
	for _, ref := range c.Bankdefs.All() {
		bd := c.Bankdefs.Get(ref)
		r.bankdefByName[bankdefName(bd)] = ref
	}
	return r
}

func bankdefName(bd *ast.BankdefDirective) string {
	if bd.Name.Kind == ast.ExprString {
		return bd.Name.Str
	}
	return ""
}

// snapshot captures everything the convergence check compares pass to pass.
type snapshot struct {
	symbolResolved []bool
	symbolValue    []string
	itemWidth      []int
	itemBits       []string
}

func (r *Resolver) snapshot() snapshot {
	s := snapshot{
		symbolResolved: make([]bool, r.Collector.Symbols.Len()),
		symbolValue:    make([]string, r.Collector.Symbols.Len()),
		itemWidth:      make([]int, len(r.State.Items)),
		itemBits:       make([]string, len(r.State.Items)),
	}
	for i := 0; i < r.Collector.Symbols.Len(); i++ {
		st := r.State.Symbols.Get(itemref.Of[def.SymbolState](i))
		s.symbolResolved[i] = st.Resolved
		if st.Address != nil {
			s.symbolValue[i] = st.Address.String()
		} else if st.Value.Kind == eval.KindInteger && st.Value.Int != nil {
			s.symbolValue[i] = st.Value.Int.String()
		}
	}
	for i, it := range r.State.Items {
		s.itemWidth[i] = it.BitWidth
		if it.Bits != nil {
			s.itemBits[i] = it.Bits.String()
		}
	}
	return s
}

func (a snapshot) equal(b snapshot) bool {
	for i := range a.symbolResolved {
		if a.symbolResolved[i] != b.symbolResolved[i] || a.symbolValue[i] != b.symbolValue[i] {
			return false
		}
	}
	for i := range a.itemWidth {
		if a.itemWidth[i] != b.itemWidth[i] || a.itemBits[i] != b.itemBits[i] {
			return false
		}
	}
	return true
}

// Run executes the iterative fixed-point loop followed by a final pass with
// is_last_iteration=true, then returns true iff no error was reported.
func (r *Resolver) Run() bool {
	prev := r.snapshot()
	for iter := 0; iter < MaxIterations; iter++ {
		r.pass(true)
		cur := r.snapshot()
		if iter > 0 && cur.equal(prev) {
			break
		}
		prev = cur
	}
	r.pass(false)
	return !r.Report.HasErrors()
}

// bankCursor tracks one bank's running bit position during a pass.
type bankCursor struct {
	bits *big.Int // bit offset from the bank's own addr*bitsPerUnit origin
}

// pass performs one complete walk of the item stream. canGuess permits
// Unknown to propagate instead of erroring on unresolved references; it is
// false only for the final call from Run.
func (r *Resolver) pass(canGuess bool) {
	r.resolveBankdefFields(canGuess)

	cursors := map[string]*bankCursor{}
	for name := range r.bankdefByName {
		cursors[name] = &bankCursor{bits: big.NewInt(0)}
	}
	currentBank := decl.GlobalBankName

	for i := range r.Collector.Items {
		item := &r.Collector.Items[i]
		st := &r.State.Items[i]

		switch {
		case item.Bank != nil:
			v, err := r.evalInCtx(item.Bank.Name, nil, currentBank, cursors[currentBank], canGuess)
			if err != nil {
				if !canGuess {
					r.Report.Error(item.Bank.Span, "%s", err.Error())
				}
				continue
			}
			if v.Kind == eval.KindString {
				if _, ok := r.bankdefByName[v.Str]; !ok {
					if !canGuess {
						r.Report.Error(item.Bank.Span, "unknown bank %q", v.Str)
					}
					continue
				}
				currentBank = v.Str
			}

		case item.Instruction != nil:
			r.resolveInstruction(i, item.Instruction, currentBank, cursors[currentBank], canGuess)

		case item.Res != nil:
			r.resolveRes(i, item.Res, currentBank, cursors[currentBank], canGuess)

		case item.Align != nil:
			r.resolveAlign(i, item.Align, currentBank, cursors[currentBank], canGuess)

		case item.Addr != nil:
			r.resolveAddr(i, item.Addr, currentBank, cursors[currentBank], canGuess)

		case item.Data != nil:
			r.resolveData(i, item.Data, currentBank, cursors[currentBank], canGuess)

		case item.Assert != nil:
			r.resolveAssert(item.Assert, currentBank, cursors[currentBank], canGuess)

		case item.Label != nil:
			r.resolveLabel(item.Label, currentBank, cursors[currentBank], canGuess)
		}

		st.Bank = currentBank
	}

	r.resolveSymbols(canGuess)

	if !canGuess {
		for _, ref := range r.Collector.Bankdefs.All() {
			bd := r.Collector.Bankdefs.Get(ref)
			bst := r.State.Bankdefs.Get(itemref.Of[def.BankdefState](ref.Index()))
			if bst.EffectiveSize == nil {
				continue
			}
			cur, ok := cursors[bankdefName(bd)]
			if !ok {
				continue
			}
			limit := new(big.Int).Mul(bst.EffectiveSize, big.NewInt(int64(bst.Bits)))
			if cur.bits.Cmp(limit) > 0 {
				r.Report.Error(bd.Span, "bank %q overflows its declared size", bankdefName(bd))
			}
		}
	}
}

// resolveSymbols is a second sub-pass over every constant in the symbol
// list, evaluated against the symbol's own recorded Ctx. Labels are not
// handled here: they occupy slots in the flattened Items stream and have
// their addresses published in emission order by resolveLabel.
func (r *Resolver) resolveSymbols(canGuess bool) {
	for _, ref := range r.Collector.Symbols.All() {
		sym := r.Collector.Symbols.Get(ref)
		if sym.IsLabel || sym.Const == nil {
			continue
		}
		st := r.State.Symbols.Get(itemref.Of[def.SymbolState](ref.Index()))
		v, err := r.evalInCtx(sym.Const.Value, sym.Const.Ctx, decl.GlobalBankName, &bankCursor{bits: big.NewInt(0)}, canGuess)
		if err != nil {
			if !canGuess {
				r.Report.Error(sym.Const.Span, "%s", err.Error())
			}
			continue
		}
		if v.IsUnknown() {
			continue
		}
		st.Value = v
		st.Resolved = true
	}
}

// bankdefField evaluates one declared field of bd, reporting evaluation
// failures at the field's own span on the final pass only. ok is false when
// the field is absent or its value isn't usable yet.
func (r *Resolver) bankdefField(bd *ast.BankdefDirective, name string, canGuess bool) (eval.Value, bool) {
	e, present := bd.Fields[name]
	if !present {
		return eval.Value{}, false
	}
	v, err := r.evalInCtx(e, nil, decl.GlobalBankName, &bankCursor{bits: big.NewInt(0)}, canGuess)
	if err != nil {
		if !canGuess {
			r.Report.Error(bd.FieldSpans[name], "%s", err.Error())
		}
		return eval.Value{}, false
	}
	if v.IsUnknown() {
		return eval.Value{}, false
	}
	return v, true
}

func (r *Resolver) resolveBankdefFields(canGuess bool) {
	for _, ref := range r.Collector.Bankdefs.All() {
		bd := r.Collector.Bankdefs.Get(ref)
		st := r.State.Bankdefs.Get(itemref.Of[def.BankdefState](ref.Index()))

		st.Bits = 8
		if v, ok := r.bankdefField(bd, "bits", canGuess); ok && v.Kind == eval.KindInteger {
			st.Bits = int(v.Int.Int64())
		}

		st.Addr = big.NewInt(0)
		if v, ok := r.bankdefField(bd, "addr", canGuess); ok && v.Kind == eval.KindInteger {
			st.Addr = v.Int
		}

		if v, ok := r.bankdefField(bd, "size", canGuess); ok && v.Kind == eval.KindInteger {
			st.EffectiveSize = v.Int
		} else if v, ok := r.bankdefField(bd, "addr_end", canGuess); ok && v.Kind == eval.KindInteger {
			st.EffectiveSize = new(big.Int).Sub(v.Int, st.Addr)
		}

		st.LabelAlign = 1
		if v, ok := r.bankdefField(bd, "labelalign", canGuess); ok && v.Kind == eval.KindInteger {
			st.LabelAlign = int(v.Int.Int64())
		}

		st.OutputOffset = big.NewInt(0)
		if v, ok := r.bankdefField(bd, "outp", canGuess); ok && v.Kind == eval.KindInteger {
			st.OutputOffset = v.Int // addr_unit units, scaled to bits by pkg/emit
		}

		if v, ok := r.bankdefField(bd, "fill", canGuess); ok && v.Kind == eval.KindBool {
			st.Fill = v.Bool
		}

		st.Resolved = true
	}
}

// addressOf returns the bank-relative address (in addr_unit units) the
// cursor currently points at.
func (r *Resolver) addressOf(bankName string, cur *bankCursor) *big.Int {
	ref, ok := r.bankdefByName[bankName]
	if !ok {
		return new(big.Int).Set(cur.bits)
	}
	st := r.State.Bankdefs.Get(itemref.Of[def.BankdefState](ref.Index()))
	if st.Bits == 0 {
		return new(big.Int).Set(cur.bits)
	}
	units := new(big.Int).Div(cur.bits, big.NewInt(int64(st.Bits)))
	return units.Add(units, st.Addr)
}

// evalInCtx runs the expression evaluator with a resolverCtx bound to the
// given reference context, current bank and cursor. The evaluator gets a
// scratch report: whether an evaluation failure is worth surfacing (and at
// which span) is decided by each resolve* call site, which stays quiet on
// guess passes and reports the returned error on the final one.
func (r *Resolver) evalInCtx(e ast.Expr, ctx []string, bank string, cur *bankCursor, canGuess bool) (eval.Value, error) {
	rc := &resolverCtx{r: r, ctx: ctx, bank: bank, cur: cur, canGuess: canGuess}
	ev := eval.New(rc, report.New(), e.Span.File)
	v, err := ev.Eval(&e)
	return v, err
}

func (r *Resolver) resolveAssert(a *ast.AssertDirective, bank string, cur *bankCursor, canGuess bool) {
	v, err := r.evalInCtx(a.Cond, a.Ctx, bank, cur, canGuess)
	if err != nil {
		if !canGuess {
			r.Report.Error(a.Span, "%s", err.Error())
		}
		return
	}
	if v.IsUnknown() {
		return
	}
	if v.Kind != eval.KindBool {
		if !canGuess {
			r.Report.Error(a.Span, "#assert requires a bool expression")
		}
		return
	}
	// A transiently false condition on a guess pass is not a failure;
	// assertions are only enforced once values are final.
	if !v.Bool && !canGuess {
		r.Report.Error(a.Span, "assertion failed")
	}
}

// resolveLabel publishes a label's address as the address the bank cursor
// currently sits at — labels occupy zero bits, so the cursor is left
// untouched. When the owning bankdef declared a `labelalign`, a label whose
// address isn't a multiple of it is reported on the final pass.
func (r *Resolver) resolveLabel(lbl *ast.LabelDecl, bank string, cur *bankCursor, canGuess bool) {
	symRef := itemref.Of[decl.Symbol](lbl.Ref.Index())
	st := r.State.Symbols.Get(itemref.Of[def.SymbolState](symRef.Index()))
	addr := r.addressOf(bank, cur)
	st.Address = addr
	st.Resolved = true

	if !canGuess {
		if ref, ok := r.bankdefByName[bank]; ok {
			bst := r.State.Bankdefs.Get(itemref.Of[def.BankdefState](ref.Index()))
			if bst.LabelAlign > 1 {
				rem := new(big.Int).Mod(addr, big.NewInt(int64(bst.LabelAlign)))
				if rem.Sign() != 0 {
					r.Report.Error(lbl.Span, "label %q is not aligned to %d", lbl.Name, bst.LabelAlign)
				}
			}
		}
	}
}

func (r *Resolver) resolveRes(i int, res *ast.ResDirective, bank string, cur *bankCursor, canGuess bool) {
	st := &r.State.Items[i]
	v, err := r.evalInCtx(res.Count, res.Ctx, bank, cur, canGuess)
	if err != nil || v.IsUnknown() || v.Kind != eval.KindInteger {
		if err != nil && !canGuess {
			r.Report.Error(res.Span, "%s", err.Error())
		}
		return
	}
	bits := unitsToBits(r, bank, v.Int)
	st.Address = r.addressOf(bank, cur)
	st.BankBitPos = new(big.Int).Set(cur.bits)
	st.BitWidth = int(bits.Int64())
	st.Bits = nil
	st.Resolved = true
	cur.bits.Add(cur.bits, bits)
}

func (r *Resolver) resolveAlign(i int, al *ast.AlignDirective, bank string, cur *bankCursor, canGuess bool) {
	st := &r.State.Items[i]
	v, err := r.evalInCtx(al.Amount, al.Ctx, bank, cur, canGuess)
	if err != nil || v.IsUnknown() || v.Kind != eval.KindInteger {
		if err != nil && !canGuess {
			r.Report.Error(al.Span, "%s", err.Error())
		}
		return
	}
	if v.Int.Sign() <= 0 {
		if !canGuess {
			r.Report.Error(al.Span, "alignment must be positive")
		}
		return
	}
	addr := r.addressOf(bank, cur)
	rem := new(big.Int).Mod(addr, v.Int)
	if rem.Sign() != 0 {
		gapUnits := new(big.Int).Sub(v.Int, rem)
		cur.bits.Add(cur.bits, unitsToBits(r, bank, gapUnits))
	}
	st.Address = r.addressOf(bank, cur)
	st.BankBitPos = new(big.Int).Set(cur.bits)
	st.BitWidth = 0
	st.Resolved = true
}

func (r *Resolver) resolveAddr(i int, ad *ast.AddrDirective, bank string, cur *bankCursor, canGuess bool) {
	st := &r.State.Items[i]
	v, err := r.evalInCtx(ad.Address, ad.Ctx, bank, cur, canGuess)
	if err != nil || v.IsUnknown() || v.Kind != eval.KindInteger {
		if err != nil && !canGuess {
			r.Report.Error(ad.Span, "%s", err.Error())
		}
		return
	}
	ref, ok := r.bankdefByName[bank]
	if !ok {
		return
	}
	bst := r.State.Bankdefs.Get(itemref.Of[def.BankdefState](ref.Index()))
	targetBits := new(big.Int).Sub(v.Int, bst.Addr)
	targetBits.Mul(targetBits, big.NewInt(int64(bst.Bits)))
	if !canGuess {
		if targetBits.Sign() < 0 {
			r.Report.Error(ad.Span, "address is below the bank's start")
			return
		}
		if bst.EffectiveSize != nil {
			limit := new(big.Int).Mul(bst.EffectiveSize, big.NewInt(int64(bst.Bits)))
			if targetBits.Cmp(limit) >= 0 {
				r.Report.Error(ad.Span, "address is beyond the bank's end")
				return
			}
		}
		if targetBits.Cmp(cur.bits) < 0 {
			r.Report.Error(ad.Span, "#addr may not move the cursor backwards")
		}
	}
	cur.bits = targetBits
	st.Address = v.Int
	st.BankBitPos = new(big.Int).Set(cur.bits)
	st.BitWidth = 0
	st.Resolved = true
}

func (r *Resolver) resolveData(i int, d *ast.DataDirective, bank string, cur *bankCursor, canGuess bool) {
	st := &r.State.Items[i]
	total := new(big.Int)
	width := 0
	ok := true
	for _, e := range d.Elements {
		v, err := r.evalInCtx(e, d.Ctx, bank, cur, canGuess)
		if err != nil {
			if !canGuess {
				r.Report.Error(e.Span, "%s", err.Error())
			}
			ok = false
			continue
		}
		if v.IsUnknown() || v.Kind != eval.KindInteger {
			ok = false
			continue
		}
		elemWidth := d.ElemSize
		if elemWidth == 0 {
			elemWidth = v.BitWidth
			if elemWidth < 0 {
				if !canGuess {
					r.Report.Error(e.Span, "cannot determine a static size for this #d element")
				}
				ok = false
				continue
			}
		}
		total.Lsh(total, uint(elemWidth))
		total.Or(total, maskTo(v.Int, elemWidth))
		width += elemWidth
	}
	if !ok {
		return
	}
	st.Address = r.addressOf(bank, cur)
	st.BankBitPos = new(big.Int).Set(cur.bits)
	st.Bits = total
	st.BitWidth = width
	st.Resolved = true
	cur.bits.Add(cur.bits, big.NewInt(int64(width)))
}

func maskTo(v *big.Int, width int) *big.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(width))
	mask.Sub(mask, big.NewInt(1))
	return new(big.Int).And(v, mask)
}

func unitsToBits(r *Resolver, bank string, units *big.Int) *big.Int {
	ref, ok := r.bankdefByName[bank]
	bits := int64(8)
	if ok {
		bst := r.State.Bankdefs.Get(itemref.Of[def.BankdefState](ref.Index()))
		if bst.Bits > 0 {
			bits = int64(bst.Bits)
		}
	}
	return new(big.Int).Mul(units, big.NewInt(bits))
}

// resolveInstruction matches (once, cached) the instruction's tokens
// against every ruledef, evaluates every candidate's production, and keeps
// the narrowest one that evaluates to a concrete sized integer.
func (r *Resolver) resolveInstruction(i int, inst *ast.Instruction, bank string, cur *bankCursor, canGuess bool) {
	st := &r.State.Items[i]

	if r.matches[i] == nil {
		matches := r.Matcher.MatchInstruction(inst.Tokens)
		if len(matches) == 0 {
			if !canGuess {
				r.Report.Error(inst.Span, "no rule matches this instruction")
			}
			return
		}
		r.matches[i] = matches
	}

	addr := r.addressOf(bank, cur)
	type candidate struct {
		value eval.Value
	}
	var best *candidate
	var bestCount int

	for _, m := range r.matches[i] {
		v, ok := r.evalMatch(m, inst.Ctx, bank, addr, canGuess)
		if !ok || v.IsUnknown() || v.Kind != eval.KindInteger || v.BitWidth < 0 {
			continue
		}
		if best == nil || v.BitWidth < best.value.BitWidth {
			best = &candidate{value: v}
			bestCount = 1
		} else if v.BitWidth == best.value.BitWidth {
			bestCount++
		}
	}

	if best == nil {
		if !canGuess {
			r.Report.Error(inst.Span, "instruction did not converge to a concrete encoding")
		}
		return
	}
	if bestCount > 1 && !canGuess {
		r.Report.Error(inst.Span, "instruction matches multiple rules with the same encoded width")
		return
	}

	st.Address = addr
	st.BankBitPos = new(big.Int).Set(cur.bits)
	st.Bits = best.value.Int
	st.BitWidth = best.value.BitWidth
	st.Resolved = true
	cur.bits.Add(cur.bits, big.NewInt(int64(best.value.BitWidth)))
}

// evalMatch evaluates one candidate Match's production expression, binding
// each rule parameter name to its argument's evaluated value (or, for a
// Ruleset parameter, recursively evaluating the nested match's own
// production).
func (r *Resolver) evalMatch(m rule.Match, refCtx []string, bank string, addr *big.Int, canGuess bool) (eval.Value, bool) {
	rd := r.Collector.Ruledefs.Get(m.Ruledef)
	rl := &rd.Rules[m.RuleIndex]

	scope := eval.NewScope(nil)
	for idx, pv := range m.Params {
		param := rl.Params[idx]
		var v eval.Value
		if param.Type == ast.ParamRuleset && pv.Sub != nil {
			sv, ok := r.evalMatch(*pv.Sub, refCtx, bank, addr, canGuess)
			if !ok {
				return eval.Value{}, false
			}
			v = sv
		} else {
			// Candidate-level failures (an argument window that isn't an
			// expression, a production that doesn't evaluate) just drop the
			// candidate; resolveInstruction reports once if none survive.
			file := ""
			if len(pv.Tokens) > 0 {
				file = pv.Tokens[0].Span.File
			}
			e, err := ast.ParseExprTokens(file, pv.Tokens, report.New())
			if err != nil {
				return eval.Value{}, false
			}
			rc := &resolverCtx{r: r, ctx: refCtx, bank: bank, cur: &bankCursor{bits: big.NewInt(0)}, canGuess: canGuess, addrOverride: addr}
			ev := eval.New(rc, report.New(), file)
			pvv, err := ev.Eval(&e)
			if err != nil {
				return eval.Value{}, false
			}
			v = pvv
		}
		if v.IsUnknown() {
			return eval.Unknown, true
		}
		if !checkParamType(param, v) {
			return eval.Value{}, false
		}
		// A u/s/iN-typed parameter is bound at its declared width, not
		// whatever width its own argument expression happened to carry, so
		// a production like `opcode @ a` concatenates at the pattern's
		// declared size regardless of how `a` was spelled at the call site.
		if v.Kind == eval.KindInteger && param.Size > 0 {
			v = eval.SizedInt(v.Int, param.Size)
		}
		scope.Bind(param.Name, v)
	}

	rc := &resolverCtx{r: r, ctx: refCtx, bank: bank, cur: &bankCursor{bits: big.NewInt(0)}, canGuess: canGuess, addrOverride: addr}
	ev := eval.New(rc, report.New(), rl.Span.File).WithScope(scope)
	v, err := ev.Eval(&rl.Production)
	if err != nil {
		return eval.Value{}, false
	}
	return v, true
}

func checkParamType(p ast.RuleParam, v eval.Value) bool {
	switch p.Type {
	case ast.ParamUnsigned:
		return v.Kind == eval.KindInteger && v.Int.Sign() >= 0 && v.Int.BitLen() <= p.Size
	case ast.ParamSigned, ast.ParamInteger:
		return v.Kind == eval.KindInteger
	default:
		return true
	}
}

// resolverCtx adapts one resolver position (hierarchical context, active
// bank, cursor) into the eval.Resolver interface.
type resolverCtx struct {
	r            *Resolver
	ctx          []string
	bank         string
	cur          *bankCursor
	canGuess     bool
	addrOverride *big.Int
}

func (rc *resolverCtx) LookupIdent(level int, name string) (eval.Value, error) {
	if level == 0 && (name == "$" || name == "pc") {
		addr := rc.addrOverride
		if addr == nil {
			addr = rc.r.addressOf(rc.bank, rc.cur)
		}
		return eval.Int(new(big.Int).Set(addr)), nil
	}

	ref, ok := rc.r.Collector.LookupSymbol(rc.ctx, level, name)
	if !ok {
		if level == 0 {
			if fref, isFn := rc.r.Collector.FunctionByName[name]; isFn {
				fn := rc.r.Collector.Functions.Get(fref)
				return eval.Value{
					Kind: eval.KindFunction,
					Fn:   &eval.Function{Params: fn.Params, Body: &fn.Body},
				}, nil
			}
		}
		if rc.canGuess {
			return eval.Unknown, nil
		}
		return eval.Value{}, fmt.Errorf("unresolved reference to `%s`", name)
	}

	sym := rc.r.Collector.Symbols.Get(ref)
	st := rc.r.State.Symbols.Get(itemref.Of[def.SymbolState](ref.Index()))
	if !st.Resolved {
		if rc.canGuess {
			return eval.Unknown, nil
		}
		return eval.Value{}, fmt.Errorf("`%s` did not converge", name)
	}
	if sym.IsLabel {
		return eval.Int(st.Address), nil
	}
	return st.Value, nil
}

func (rc *resolverCtx) ReadFile(relativeTo, path string) ([]byte, error) {
	full, err := fsrv.Join(relativeTo, path)
	if err != nil {
		return nil, err
	}
	return rc.r.FS.GetBytes(full)
}
