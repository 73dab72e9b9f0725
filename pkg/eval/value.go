// Package eval implements the expression sub-language's values and
// evaluator: arbitrary-precision integers with optional bit-width tags,
// booleans, strings, user functions, and a distinguished Unknown value used
// during the resolver's early iterations.
//
// eval is deliberately decoupled from pkg/decl, pkg/def and pkg/resolve: it
// only reaches identifiers and files through the Resolver interface, which
// the iterative resolver implements.
package eval

import (
	"math/big"

	"github.com/casmlang/casm/pkg/ast"
)

// Kind tags the Value sum type.
type Kind int

const (
	KindUnknown Kind = iota
	KindInteger
	KindBool
	KindString
	KindFunction
)

// Function is a user-defined `#fn` value.
type Function struct {
	Params []string
	Body   *ast.Expr
	Scope  *Scope
}

// Value is the tagged union every expression evaluates to.
type Value struct {
	Kind Kind

	Int      *big.Int // KindInteger
	BitWidth int      // KindInteger: -1 if unsized

	Bool bool // KindBool

	Str string // KindString

	Fn *Function // KindFunction
}

// Unknown is the speculative placeholder used by the resolver before a
// forward reference's real value is known.
var Unknown = Value{Kind: KindUnknown}

// Int builds an unsized integer Value.
func Int(n *big.Int) Value { return Value{Kind: KindInteger, Int: n, BitWidth: -1} }

// SizedInt builds an integer Value with an explicit bit width.
func SizedInt(n *big.Int, width int) Value { return Value{Kind: KindInteger, Int: n, BitWidth: width} }

// Bool builds a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Str builds a string Value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// IsUnknown reports whether v is the speculative placeholder.
func (v Value) IsUnknown() bool { return v.Kind == KindUnknown }

// Scope is a chained variable environment for function-call parameter
// binding.
type Scope struct {
	vars   map[string]Value
	parent *Scope
}

// NewScope returns an empty scope chained to parent (nil for the root).
func NewScope(parent *Scope) *Scope {
	return &Scope{vars: map[string]Value{}, parent: parent}
}

// Bind assigns name to v in this scope.
func (s *Scope) Bind(name string, v Value) { s.vars[name] = v }

// Lookup searches this scope and its parents.
func (s *Scope) Lookup(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}
