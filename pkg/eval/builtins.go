package eval

import (
	"math/big"

	"github.com/casmlang/casm/pkg/ast"
)

// evalCall dispatches a function-call expression: either one of the fixed
// builtins or a user `#fn` value bound through the identifier it was
// called through.
func (ev *Evaluator) evalCall(e *ast.Expr) (Value, error) {
	if e.Callee.Kind == ast.ExprIdent {
		switch e.Callee.Name {
		case "assert":
			return ev.builtinAssert(e)
		case "le":
			return ev.builtinLe(e)
		case "incbin":
			return ev.builtinIncbin(e, false, false)
		case "incbinstr":
			return ev.builtinIncbin(e, true, false)
		case "inchexstr":
			return ev.builtinIncbin(e, true, true)
		}
	}

	callee, err := ev.Eval(e.Callee)
	if err != nil {
		return Value{}, err
	}
	if callee.IsUnknown() {
		return Unknown, nil
	}
	if callee.Kind != KindFunction {
		return ev.errorf(e.Span, "value is not callable")
	}
	return ev.callFunction(e, callee.Fn)
}

func (ev *Evaluator) callFunction(e *ast.Expr, fn *Function) (Value, error) {
	if len(e.Args) != len(fn.Params) {
		return ev.errorf(e.Span, "function expects %d argument(s), got %d", len(fn.Params), len(e.Args))
	}
	scope := NewScope(fn.Scope)
	for i, p := range fn.Params {
		v, err := ev.Eval(&e.Args[i])
		if err != nil {
			return Value{}, err
		}
		scope.Bind(p, v)
	}
	return ev.WithScope(scope).Eval(fn.Body)
}

// builtinAssert implements `assert(cond)`: reports an error and fails
// evaluation if cond evaluates to false; otherwise evaluates to true.
func (ev *Evaluator) builtinAssert(e *ast.Expr) (Value, error) {
	if len(e.Args) != 1 {
		return ev.errorf(e.Span, "assert() takes exactly one argument")
	}
	cond, err := ev.Eval(&e.Args[0])
	if err != nil {
		return Value{}, err
	}
	if cond.IsUnknown() {
		return Unknown, nil
	}
	if cond.Kind != KindBool {
		return ev.errorf(e.Span, "assert() requires a bool argument")
	}
	if !cond.Bool {
		return ev.errorf(e.Span, "assertion failed")
	}
	return Bool(true), nil
}

// builtinLe implements `le(value)`: byte-swaps a sized integer whose width
// is a multiple of 8, the reversal a little-endian ruledef production
// applies to a big-endian-encoded multi-byte immediate before it's emitted.
func (ev *Evaluator) builtinLe(e *ast.Expr) (Value, error) {
	if len(e.Args) != 1 {
		return ev.errorf(e.Span, "le() takes exactly one argument")
	}
	v, err := ev.Eval(&e.Args[0])
	if err != nil {
		return Value{}, err
	}
	if v.IsUnknown() {
		return Unknown, nil
	}
	if v.Kind != KindInteger || v.BitWidth < 0 {
		return ev.errorf(e.Span, "le() requires a sized integer argument")
	}
	if v.BitWidth%8 != 0 {
		return ev.errorf(e.Span, "le() requires a width that is a multiple of 8, got %d", v.BitWidth)
	}

	nbytes := v.BitWidth / 8
	masked := new(big.Int).And(v.Int, bitMask(v.BitWidth))
	swapped := new(big.Int)
	for i := 0; i < nbytes; i++ {
		byteVal := new(big.Int).And(new(big.Int).Rsh(masked, uint(i*8)), big.NewInt(0xff))
		swapped.Or(swapped, new(big.Int).Lsh(byteVal, uint((nbytes-1-i)*8)))
	}
	return SizedInt(swapped, v.BitWidth), nil
}

// builtinIncbin implements incbin/incbinstr/inchexstr: read a file relative
// to the expression's own source file and turn its bytes into a sized
// integer, either directly (incbin), parsed as a run of '0'/'1' characters
// (incbinstr) or as hex digit characters (inchexstr).
func (ev *Evaluator) builtinIncbin(e *ast.Expr, asText bool, asHex bool) (Value, error) {
	if len(e.Args) != 1 {
		return ev.errorf(e.Span, "this builtin takes exactly one path argument")
	}
	pathV, err := ev.Eval(&e.Args[0])
	if err != nil {
		return Value{}, err
	}
	if pathV.IsUnknown() {
		return Unknown, nil
	}
	if pathV.Kind != KindString {
		return ev.errorf(e.Span, "this builtin requires a string path argument")
	}

	data, err := ev.Resolver.ReadFile(ev.File, pathV.Str)
	if err != nil {
		return ev.errorf(e.Span, "cannot read %q: %v", pathV.Str, err)
	}

	if !asText {
		n := new(big.Int).SetBytes(data)
		return SizedInt(n, len(data)*8), nil
	}

	base := 2
	bitsPerChar := 1
	if asHex {
		base = 16
		bitsPerChar = 4
	}
	n := new(big.Int)
	digits := 0
	for _, c := range string(data) {
		if c == '\n' || c == '\r' || c == ' ' || c == '\t' || c == '_' {
			continue
		}
		d := new(big.Int)
		if _, ok := d.SetString(string(c), base); !ok {
			return ev.errorf(e.Span, "invalid digit %q in %s", c, pathV.Str)
		}
		n.Lsh(n, uint(bitsPerChar))
		n.Or(n, d)
		digits++
	}
	return SizedInt(n, digits*bitsPerChar), nil
}
