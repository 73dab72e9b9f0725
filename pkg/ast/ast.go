// Package ast defines the parser's output: directive/symbol/instruction
// nodes and the expression sub-language shared by directive arguments and
// ruledef productions.
package ast

import (
	"math/big"

	"github.com/casmlang/casm/pkg/itemref"
	"github.com/casmlang/casm/pkg/token"
)

// Node is the tagged union over every top-level AST element: directives,
// symbol declarations and instructions. Concrete types implement it purely
// by being usable in a type switch; a marker interface keeps the union
// closed without any shared behavior.
type Node interface{ astNode() }

// Program is the ordered, flat top-level node list produced after parsing
// and `#include`/`#if` splicing.
type Program []Node

// ---------------------------------------------------------------------------
// Symbol declarations

// LabelDecl is a `.name:`-form symbol declaration.
type LabelDecl struct {
	Span  token.Span
	Level int    // count of leading dots
	Name  string // the identifier after the dots
	Ctx   []string

	Ref itemref.Ref[LabelDecl]
}

func (*LabelDecl) astNode() {}

// ConstDecl is a `.name = EXPR`-form symbol declaration.
type ConstDecl struct {
	Span   token.Span
	Level  int
	Name   string
	NoEmit bool
	Value  Expr
	Ctx    []string

	Ref itemref.Ref[ConstDecl]
}

func (*ConstDecl) astNode() {}

// ---------------------------------------------------------------------------
// Instructions

// Instruction is one source instruction, captured as an unparsed token
// slice; it is matched against the active ruledef grammar later, by
// pkg/rule.
type Instruction struct {
	Span   token.Span
	Tokens []token.Token
	Ctx    []string

	Ref itemref.Ref[Instruction]
}

func (*Instruction) astNode() {}

// ---------------------------------------------------------------------------
// Bank / bankdef directives

// BankDirective is `#bank N` (select the current bank).
type BankDirective struct {
	Span token.Span
	Name Expr
}

func (*BankDirective) astNode() {}

// BankdefDirective is `#bankdef N { field = EXPR, ... }`.
type BankdefDirective struct {
	Span       token.Span
	Name       Expr
	Fields     map[string]Expr // bits, addr, addr_end, size, labelalign, outp, fill
	FieldSpans map[string]token.Span

	Ref itemref.Ref[BankdefDirective]
}

func (*BankdefDirective) astNode() {}

// ---------------------------------------------------------------------------
// Ruledef / subruledef / fn directives

// PatternPartKind distinguishes an exact pattern token from a parameter
// slot.
type PatternPartKind int

const (
	PatternExact PatternPartKind = iota
	PatternParam
)

// PatternPart is one element of a rule's pattern.
type PatternPart struct {
	Kind PatternPartKind

	// PatternExact
	ExactText string // as written; pkg/rule lowercases up to 4 leading chars for the map key
	ExactKind token.Kind

	// PatternParam
	ParamIndex int
}

// ParamType enumerates the type annotations a rule parameter may carry:
// unsigned/signed/integer of a given width, a ruleset reference, or nothing.
type ParamType int

const (
	ParamUnspecified ParamType = iota
	ParamUnsigned
	ParamSigned
	ParamInteger
	ParamRuleset
)

// RuleParam is one named, typed parameter of a Rule.
type RuleParam struct {
	Name    string
	Type    ParamType
	Size    int    // bit width for Unsigned/Signed/Integer
	Ruleset string // ruledef name for ParamRuleset
}

// Rule is one pattern => production pair of a ruledef.
type Rule struct {
	Span       token.Span
	Pattern    []PatternPart
	Params     []RuleParam
	Production Expr
}

// ParamIndex returns the index of the named parameter, or -1.
func (r *Rule) ParamIndex(name string) int {
	for i, p := range r.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// RuledefDirective is `#ruledef [N] { pat => expr, ... }` or
// `#subruledef N { ... }`.
type RuledefDirective struct {
	Span        token.Span
	Name        string // user name, or the generated `#anonymous_N`
	IsAnonymous bool
	IsSub       bool
	Rules       []Rule

	Ref itemref.Ref[RuledefDirective]
}

func (*RuledefDirective) astNode() {}

// FnDirective is `#fn name(p, ...) => EXPR`.
type FnDirective struct {
	Span   token.Span
	Name   string
	Params []string
	Body   Expr

	Ref itemref.Ref[FnDirective]
}

func (*FnDirective) astNode() {}

// ---------------------------------------------------------------------------
// Address / sizing directives

type ResDirective struct {
	Span  token.Span
	Count Expr
	Ctx   []string

	Ref itemref.Ref[ResDirective]
}

func (*ResDirective) astNode() {}

type AlignDirective struct {
	Span   token.Span
	Amount Expr
	Ctx    []string

	Ref itemref.Ref[AlignDirective]
}

func (*AlignDirective) astNode() {}

type AddrDirective struct {
	Span    token.Span
	Address Expr
	Ctx     []string

	Ref itemref.Ref[AddrDirective]
}

func (*AddrDirective) astNode() {}

// DataDirective is `#d EXPR, ...` (ElemSize == 0, native size per datum) or
// `#dN EXPR, ...` (ElemSize == N).
type DataDirective struct {
	Span     token.Span
	ElemSize int
	Elements []Expr
	Ctx      []string

	Ref itemref.Ref[DataDirective]
}

func (*DataDirective) astNode() {}

// IfDirective is `#if EXPR { ... } [#elif EXPR {...}] [#else {...}]`. The
// parser keeps both arms intact; splicing the taken arm into the flat
// top-level list once the condition is statically decidable is done by the
// decl collector's pre-pass.
type IfDirective struct {
	Span     token.Span
	Cond     Expr
	TrueArm  Program
	FalseArm Program // nil if no #elif/#else matched
}

func (*IfDirective) astNode() {}

// AssertDirective is `#assert EXPR`.
type AssertDirective struct {
	Span token.Span
	Cond Expr
	Ctx  []string

	Ref itemref.Ref[AssertDirective]
}

func (*AssertDirective) astNode() {}

// ---------------------------------------------------------------------------
// Expressions

// ExprKind tags the Expr sum type.
type ExprKind int

const (
	ExprInvalid ExprKind = iota
	ExprNumber
	ExprString
	ExprBool
	ExprIdent
	ExprUnary
	ExprBinary
	ExprLogical
	ExprTernary
	ExprCall
	ExprMember
	ExprSlice
	ExprConcat
	ExprBlock
	ExprAssert
)

// Expr is a pointer-based node of the expression sub-language. A flat
// struct with kind-specific fields (rather than one Go type per kind) keeps
// the evaluator's dispatch a single switch.
type Expr struct {
	Span token.Span
	Kind ExprKind

	Int      *big.Int // ExprNumber
	BitWidth int      // ExprNumber: -1 if unsized
	Str      string   // ExprString
	Bool     bool     // ExprBool

	Name  string // ExprIdent ("$", "pc", or a dotted trailing name), ExprMember
	Level int    // ExprIdent: hierarchy level (leading dots before Name)

	Op    token.Kind // ExprUnary/ExprBinary/ExprLogical
	Left  *Expr
	Right *Expr

	Cond *Expr // ExprTernary
	Then *Expr
	Else *Expr

	Callee *Expr  // ExprCall
	Args   []Expr // ExprCall args; ExprConcat operands; ExprBlock statements

	Target *Expr // ExprSlice/ExprMember
	Hi     *Expr // ExprSlice
	Lo     *Expr
}
