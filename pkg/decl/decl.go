// Package decl walks a parsed Program and assigns every declared item (bank,
// bankdef, ruledef, function, label/constant symbol) a dense itemref.Ref
// identity, splices the `#if`/`#elif`/`#else` arm chosen by a const-only
// pre-evaluation into the flat item stream, and resolves each symbol's
// hierarchical dotted name.
package decl

import (
	"fmt"
	"strings"

	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/itemref"
	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/token"
)

// GlobalBankName is the name of the implicit bank every program starts in,
// declared before any user `#bank`/`#bankdef`.
const GlobalBankName = "global"

// Symbol is one declared label or constant, named by its full dotted path.
type Symbol struct {
	FullName string
	IsLabel  bool // false => constant
	NoEmit   bool
	Label    *ast.LabelDecl // set when IsLabel
	Const    *ast.ConstDecl // set when !IsLabel
}

// Item is one item in the final, flattened, `#if`-spliced instruction
// stream: an Instruction, a sizing or data directive, an `#assert`, a
// `#bank` switch, or a label (which also has its Symbol entry). Constants
// and other top-level declarations are collected separately into the
// Collector's lists; Item only carries what the resolver/emitter walk in
// source order.
type Item struct {
	Instruction *ast.Instruction
	Res         *ast.ResDirective
	Align       *ast.AlignDirective
	Addr        *ast.AddrDirective
	Data        *ast.DataDirective
	Assert      *ast.AssertDirective
	Bank        *ast.BankDirective
	Label       *ast.LabelDecl
}

// Collector is the single pass that turns a parsed Program into the decl
// tables every later stage (pkg/def, pkg/rule, pkg/resolve) keys off of.
type Collector struct {
	Report *report.Report

	Ruledefs  itemref.DefList[ast.RuledefDirective]
	Bankdefs  itemref.DefList[ast.BankdefDirective]
	Functions itemref.DefList[ast.FnDirective]

	Symbols        itemref.DefList[Symbol]
	SymbolByName   map[string]itemref.Ref[Symbol]
	FunctionByName map[string]itemref.Ref[ast.FnDirective]

	Items []Item

	ruledefNames map[string]bool
	bankdefNames map[string]bool
	anonCounter  int
}

// NewCollector returns an empty Collector reporting to rep.
func NewCollector(rep *report.Report) *Collector {
	return &Collector{
		Report:         rep,
		SymbolByName:   map[string]itemref.Ref[Symbol]{},
		FunctionByName: map[string]itemref.Ref[ast.FnDirective]{},
		ruledefNames:   map[string]bool{},
		bankdefNames:   map[string]bool{},
	}
}

// Collect runs the full pass over prog: splicing `#if` arms, assigning
// ItemRef identities, and building the flat Items stream. A synthetic
// "global" bankdef is seeded at ItemRef(0) first, covering any code written
// before the program's first `#bankdef`.
func (c *Collector) Collect(prog ast.Program) {
	c.Bankdefs.Add(ast.BankdefDirective{
		Name:   ast.Expr{Kind: ast.ExprString, Str: GlobalBankName},
		Fields: map[string]ast.Expr{},
	})
	c.bankdefNames[GlobalBankName] = true

	flat := c.spliceIfs(prog)
	for i := range flat {
		c.collectOne(flat[i])
	}
}

// spliceIfs evaluates every IfDirective's condition with a const-only
// evaluator (only prior #const declarations and integer/bool literals;
// anything else is treated as "not decidable yet" and both arms are
// dropped with an error) and replaces it with the chosen arm's nodes,
// recursively. `#if` conditions must be decidable from constants alone,
// not from resolver fixed-point state.
func (c *Collector) spliceIfs(prog ast.Program) ast.Program {
	consts := map[string]bool{}
	var out ast.Program
	for _, n := range prog {
		switch node := n.(type) {
		case *ast.IfDirective:
			taken, ok := evalConstBool(node.Cond, consts)
			if !ok {
				c.Report.Error(node.Span, "#if condition must be a constant expression")
				continue
			}
			arm := node.FalseArm
			if taken {
				arm = node.TrueArm
			}
			out = append(out, c.spliceIfs(arm)...)
		case *ast.ConstDecl:
			if v, ok := evalConstBool(node.Value, consts); ok {
				consts[node.Name] = v
			}
			out = append(out, node)
		default:
			out = append(out, node)
		}
	}
	return out
}

// evalConstBool evaluates the tiny subset of expressions usable in an `#if`
// condition before any ruledef/instruction resolution has happened: boolean
// and integer literals (nonzero is true), references to a `#const` already
// seen earlier in the same file, and `!`/`&&`/`||` over them. Anything else
// returns ok=false, and the enclosing `#if` is reported as an error.
func evalConstBool(e ast.Expr, consts map[string]bool) (bool, bool) {
	switch e.Kind {
	case ast.ExprBool:
		return e.Bool, true
	case ast.ExprNumber:
		return e.Int.Sign() != 0, true
	case ast.ExprIdent:
		v, ok := consts[e.Name]
		return v, ok
	case ast.ExprUnary:
		if e.Op != token.Bang {
			return false, false
		}
		v, ok := evalConstBool(*e.Right, consts)
		return !v, ok
	case ast.ExprLogical:
		l, lok := evalConstBool(*e.Left, consts)
		r, rok := evalConstBool(*e.Right, consts)
		if !lok || !rok {
			return false, false
		}
		if e.Op == token.AndAnd {
			return l && r, true
		}
		return l || r, true
	}
	return false, false
}

func (c *Collector) collectOne(n ast.Node) {
	switch node := n.(type) {
	case *ast.BankDirective:
		c.Items = append(c.Items, Item{Bank: node})

	case *ast.BankdefDirective:
		name := bankdefDeclName(node)
		if name != "" && c.bankdefNames[name] {
			c.Report.Error(node.Span, "duplicate bankdef %q", name)
			return
		}
		c.bankdefNames[name] = true
		ref := c.Bankdefs.Add(*node)
		node.Ref = ref

	case *ast.RuledefDirective:
		if node.IsAnonymous {
			node.Name = fmt.Sprintf("#anonymous_%d", c.anonCounter)
			c.anonCounter++
		} else if c.ruledefNames[node.Name] {
			c.Report.Error(node.Span, "duplicate ruledef `%s`", node.Name)
			return
		}
		c.ruledefNames[node.Name] = true
		ref := c.Ruledefs.Add(*node)
		node.Ref = ref

	case *ast.FnDirective:
		if _, dup := c.FunctionByName[node.Name]; dup {
			c.Report.Error(node.Span, "duplicate function `%s`", node.Name)
			return
		}
		ref := c.Functions.Add(*node)
		node.Ref = ref
		c.FunctionByName[node.Name] = ref

	case *ast.LabelDecl:
		// node.Ref mirrors the Symbol's own index; it exists so code holding
		// only the AST node can cross-reference its Symbol without a lookup.
		sym := Symbol{FullName: fullName(node.Ctx), IsLabel: true, Label: node}
		if _, dup := c.SymbolByName[sym.FullName]; dup {
			c.Report.Error(node.Span, "duplicate symbol `%s`", sym.FullName)
			return
		}
		ref := c.Symbols.Add(sym)
		node.Ref = itemref.Of[ast.LabelDecl](ref.Index())
		// Labels carry no encoding of their own, but they must still occupy
		// a slot in the flattened Items stream: the resolver publishes a
		// label's address from wherever it sits in source-emission order,
		// not from the (separate) Symbols list.
		c.Items = append(c.Items, Item{Label: node})
		c.SymbolByName[sym.FullName] = ref

	case *ast.ConstDecl:
		sym := Symbol{FullName: fullName(node.Ctx), IsLabel: false, NoEmit: node.NoEmit, Const: node}
		if _, dup := c.SymbolByName[sym.FullName]; dup {
			c.Report.Error(node.Span, "duplicate symbol `%s`", sym.FullName)
			return
		}
		ref := c.Symbols.Add(sym)
		node.Ref = itemref.Of[ast.ConstDecl](ref.Index())
		c.SymbolByName[sym.FullName] = ref

	case *ast.Instruction:
		c.Items = append(c.Items, Item{Instruction: node})
	case *ast.ResDirective:
		c.Items = append(c.Items, Item{Res: node})
	case *ast.AlignDirective:
		c.Items = append(c.Items, Item{Align: node})
	case *ast.AddrDirective:
		c.Items = append(c.Items, Item{Addr: node})
	case *ast.DataDirective:
		c.Items = append(c.Items, Item{Data: node})
	case *ast.AssertDirective:
		c.Items = append(c.Items, Item{Assert: node})
	}
}

// bankdefDeclName extracts the literal name a `#bankdef` was declared under,
// for duplicate detection; a non-literal name expression yields "" and is
// left to the resolver's own by-name lookup to complain about.
func bankdefDeclName(bd *ast.BankdefDirective) string {
	if bd.Name.Kind == ast.ExprString {
		return bd.Name.Str
	}
	return ""
}

// fullName is the dotted path for a symbol: the parser's Ctx already ends
// with this symbol's own leaf name (pushCtx is called before the Ctx
// snapshot is taken), so the full path is just Ctx joined with dots.
func fullName(ctx []string) string {
	return strings.Join(ctx, ".")
}

// LookupSymbol resolves a reference name relative to the referencing
// instruction's own Ctx. A bare (level 0) name is tried as an absolute path
// first. A dotted reference (level = number of leading dots) strips that
// many trailing components off refCtx before appending name, then walks
// shorter prefixes if no exact match exists — "the most recently declared
// symbol of strictly lower hierarchy level" without requiring
// the caller to know the exact enclosing depth.
func (c *Collector) LookupSymbol(refCtx []string, level int, name string) (itemref.Ref[Symbol], bool) {
	if level == 0 {
		if ref, ok := c.SymbolByName[name]; ok {
			return ref, true
		}
	}

	start := len(refCtx) - level
	if start < 0 {
		start = 0
	}
	if start > len(refCtx) {
		start = len(refCtx)
	}
	for depth := start; depth >= 0; depth-- {
		full := strings.Join(append(append([]string(nil), refCtx[:depth]...), name), ".")
		if ref, ok := c.SymbolByName[full]; ok {
			return ref, true
		}
	}
	return itemref.Nil[Symbol](), false
}
