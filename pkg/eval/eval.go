package eval

import (
	"fmt"
	"math/big"

	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/token"
)

// Resolver supplies everything the evaluator cannot compute on its own: the
// value of an identifier (a symbol, a bank/bankdef field, a builtin name
// like `pc`), the current instruction address, and file bytes for the
// incbin family of builtins. pkg/resolve's iterative pass implements it
// over its own state, so eval stays decoupled from that state. (pkg/decl's
// `#if` pre-pass does not use this evaluator; it has its own const-only
// evalConstBool.)
type Resolver interface {
	LookupIdent(level int, name string) (Value, error)
	ReadFile(relativeTo string, path string) ([]byte, error)
}

// Evaluator walks one Expr tree against a Resolver and a Report for
// diagnostics.
type Evaluator struct {
	Resolver Resolver
	Report   *report.Report
	File     string // the file the expression was parsed from, for incbin paths
	Scope    *Scope // function-parameter bindings, nil at top level
}

// New returns an Evaluator reading identifiers through res and reporting
// errors to rep.
func New(res Resolver, rep *report.Report, file string) *Evaluator {
	return &Evaluator{Resolver: res, Report: rep, File: file}
}

// WithScope returns a copy of ev bound to a child scope, for evaluating a
// function call's body against its parameter bindings.
func (ev *Evaluator) WithScope(scope *Scope) *Evaluator {
	cp := *ev
	cp.Scope = scope
	return &cp
}

func (ev *Evaluator) errorf(span token.Span, format string, args ...any) (Value, error) {
	ev.Report.Error(span, format, args...)
	return Value{}, fmt.Errorf(format, args...)
}

// Eval evaluates e, returning Unknown (not an error) when a forward
// reference hasn't resolved yet, per the resolver's speculative-value
// protocol.
func (ev *Evaluator) Eval(e *ast.Expr) (Value, error) {
	switch e.Kind {
	case ast.ExprNumber:
		width := e.BitWidth
		if width < 0 {
			return Int(e.Int), nil
		}
		return SizedInt(e.Int, width), nil

	case ast.ExprString:
		return Str(e.Str), nil

	case ast.ExprBool:
		return Bool(e.Bool), nil

	case ast.ExprIdent:
		if ev.Scope != nil {
			if v, ok := ev.Scope.Lookup(e.Name); ok {
				return v, nil
			}
		}
		v, err := ev.Resolver.LookupIdent(e.Level, e.Name)
		if err != nil {
			return ev.errorf(e.Span, "%s", err.Error())
		}
		return v, nil

	case ast.ExprUnary:
		return ev.evalUnary(e)

	case ast.ExprBinary:
		return ev.evalBinary(e)

	case ast.ExprLogical:
		return ev.evalLogical(e)

	case ast.ExprTernary:
		cond, err := ev.Eval(e.Cond)
		if err != nil {
			return Value{}, err
		}
		if cond.IsUnknown() {
			return Unknown, nil
		}
		if cond.Kind != KindBool {
			return ev.errorf(e.Span, "ternary condition must be a bool")
		}
		if cond.Bool {
			return ev.Eval(e.Then)
		}
		return ev.Eval(e.Else)

	case ast.ExprConcat:
		return ev.evalConcat(e)

	case ast.ExprSlice:
		return ev.evalSlice(e)

	case ast.ExprCall:
		return ev.evalCall(e)

	case ast.ExprMember:
		return ev.errorf(e.Span, "member access is not supported on this value")

	case ast.ExprBlock:
		var last Value
		last = Bool(false)
		for _, stmt := range e.Args {
			v, err := ev.Eval(&stmt)
			if err != nil {
				return Value{}, err
			}
			last = v
		}
		return last, nil

	default:
		return ev.errorf(e.Span, "cannot evaluate this expression")
	}
}

func (ev *Evaluator) evalUnary(e *ast.Expr) (Value, error) {
	v, err := ev.Eval(e.Right)
	if err != nil {
		return Value{}, err
	}
	if v.IsUnknown() {
		return Unknown, nil
	}

	switch e.Op {
	case token.Minus:
		if v.Kind != KindInteger {
			return ev.errorf(e.Span, "unary '-' requires an integer")
		}
		return SizedInt(new(big.Int).Neg(v.Int), v.BitWidth), nil
	case token.Plus:
		if v.Kind != KindInteger {
			return ev.errorf(e.Span, "unary '+' requires an integer")
		}
		return v, nil
	case token.Tilde:
		if v.Kind != KindInteger {
			return ev.errorf(e.Span, "unary '~' requires an integer")
		}
		return SizedInt(new(big.Int).Not(v.Int), v.BitWidth), nil
	case token.Bang:
		if v.Kind != KindBool {
			return ev.errorf(e.Span, "unary '!' requires a bool")
		}
		return Bool(!v.Bool), nil
	default:
		return ev.errorf(e.Span, "unsupported unary operator")
	}
}

func (ev *Evaluator) evalLogical(e *ast.Expr) (Value, error) {
	left, err := ev.Eval(e.Left)
	if err != nil {
		return Value{}, err
	}
	if left.IsUnknown() {
		return Unknown, nil
	}
	if left.Kind != KindBool {
		return ev.errorf(e.Span, "'&&'/'||' require bool operands")
	}
	if e.Op == token.AndAnd && !left.Bool {
		return Bool(false), nil
	}
	if e.Op == token.OrOr && left.Bool {
		return Bool(true), nil
	}
	right, err := ev.Eval(e.Right)
	if err != nil {
		return Value{}, err
	}
	if right.IsUnknown() {
		return Unknown, nil
	}
	if right.Kind != KindBool {
		return ev.errorf(e.Span, "'&&'/'||' require bool operands")
	}
	return Bool(right.Bool), nil
}

func (ev *Evaluator) evalBinary(e *ast.Expr) (Value, error) {
	left, err := ev.Eval(e.Left)
	if err != nil {
		return Value{}, err
	}
	right, err := ev.Eval(e.Right)
	if err != nil {
		return Value{}, err
	}
	if left.IsUnknown() || right.IsUnknown() {
		return Unknown, nil
	}

	switch e.Op {
	case token.Eq, token.Ne, token.Lt, token.Le, token.Gt, token.Ge:
		return ev.evalComparison(e, left, right)
	}

	if left.Kind != KindInteger || right.Kind != KindInteger {
		return ev.errorf(e.Span, "operator requires integer operands")
	}

	width := widestOf(left.BitWidth, right.BitWidth)
	result := new(big.Int)
	switch e.Op {
	case token.Plus:
		result.Add(left.Int, right.Int)
	case token.Minus:
		result.Sub(left.Int, right.Int)
	case token.Star:
		result.Mul(left.Int, right.Int)
	case token.Slash:
		if right.Int.Sign() == 0 {
			return ev.errorf(e.Span, "division by zero")
		}
		result.Quo(left.Int, right.Int)
	case token.Percent:
		if right.Int.Sign() == 0 {
			return ev.errorf(e.Span, "division by zero")
		}
		result.Rem(left.Int, right.Int)
	case token.Amp:
		result.And(left.Int, right.Int)
	case token.Pipe:
		result.Or(left.Int, right.Int)
	case token.Caret:
		result.Xor(left.Int, right.Int)
	case token.ShiftL:
		result.Lsh(left.Int, uint(right.Int.Uint64()))
	case token.ShiftR:
		result.Rsh(left.Int, uint(right.Int.Uint64()))
	default:
		return ev.errorf(e.Span, "unsupported binary operator")
	}
	return SizedInt(result, width), nil
}

func (ev *Evaluator) evalComparison(e *ast.Expr, left, right Value) (Value, error) {
	if left.Kind != right.Kind {
		return ev.errorf(e.Span, "cannot compare values of different types")
	}

	var cmp int
	switch left.Kind {
	case KindInteger:
		cmp = left.Int.Cmp(right.Int)
	case KindBool:
		cmp = boolCmp(left.Bool, right.Bool)
	case KindString:
		cmp = stringCmp(left.Str, right.Str)
	default:
		return ev.errorf(e.Span, "this value cannot be compared")
	}

	switch e.Op {
	case token.Eq:
		return Bool(cmp == 0), nil
	case token.Ne:
		return Bool(cmp != 0), nil
	case token.Lt:
		return Bool(cmp < 0), nil
	case token.Le:
		return Bool(cmp <= 0), nil
	case token.Gt:
		return Bool(cmp > 0), nil
	case token.Ge:
		return Bool(cmp >= 0), nil
	}
	return ev.errorf(e.Span, "unsupported comparison operator")
}

func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func stringCmp(a, b string) int {
	switch {
	case a == b:
		return 0
	case a < b:
		return -1
	default:
		return 1
	}
}

func widestOf(a, b int) int {
	if a < 0 || b < 0 {
		return -1
	}
	if a > b {
		return a
	}
	return b
}

// evalConcat implements `a @ b`: both operands must carry an explicit bit
// width, and the result is `(a << width(b)) | b` at width(a)+width(b).
func (ev *Evaluator) evalConcat(e *ast.Expr) (Value, error) {
	parts := make([]Value, len(e.Args))
	for i := range e.Args {
		v, err := ev.Eval(&e.Args[i])
		if err != nil {
			return Value{}, err
		}
		parts[i] = v
	}
	for _, p := range parts {
		if p.IsUnknown() {
			return Unknown, nil
		}
	}

	result := new(big.Int)
	width := 0
	for _, p := range parts {
		if p.Kind != KindInteger || p.BitWidth < 0 {
			return ev.errorf(e.Span, "'@' operands must be sized integers")
		}
		result.Lsh(result, uint(p.BitWidth))
		masked := new(big.Int).And(p.Int, bitMask(p.BitWidth))
		result.Or(result, masked)
		width += p.BitWidth
	}
	return SizedInt(result, width), nil
}

// evalSlice implements `E[hi:lo]`: both bounds must be known, non-negative
// integers; the result is the inclusive bit range, normalized so hi/lo may
// be given in either order.
func (ev *Evaluator) evalSlice(e *ast.Expr) (Value, error) {
	target, err := ev.Eval(e.Target)
	if err != nil {
		return Value{}, err
	}
	hiV, err := ev.Eval(e.Hi)
	if err != nil {
		return Value{}, err
	}
	loV, err := ev.Eval(e.Lo)
	if err != nil {
		return Value{}, err
	}
	if target.IsUnknown() || hiV.IsUnknown() || loV.IsUnknown() {
		return Unknown, nil
	}
	if target.Kind != KindInteger || hiV.Kind != KindInteger || loV.Kind != KindInteger {
		return ev.errorf(e.Span, "bit-slice requires integer operands")
	}

	hi, lo := hiV.Int.Int64(), loV.Int.Int64()
	if hi < lo {
		hi, lo = lo, hi
	}
	if lo < 0 {
		return ev.errorf(e.Span, "bit-slice bounds must be non-negative")
	}

	width := int(hi - lo + 1)
	shifted := new(big.Int).Rsh(target.Int, uint(lo))
	masked := new(big.Int).And(shifted, bitMask(width))
	return SizedInt(masked, width), nil
}

func bitMask(width int) *big.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return mask.Sub(mask, big.NewInt(1))
}
