package decl

import (
	"testing"

	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/token"
)

func TestCollectAssignsRefsAndFlattensIfs(t *testing.T) {
	rep := report.New()
	c := NewCollector(rep)

	trueConst := &ast.ConstDecl{Name: "debug", Value: ast.Expr{Kind: ast.ExprBool, Bool: true}, Ctx: []string{"debug"}}
	label := &ast.LabelDecl{Name: "start", Ctx: []string{"start"}}
	hidden := &ast.LabelDecl{Name: "dead", Ctx: []string{"dead"}}

	prog := ast.Program{
		trueConst,
		&ast.IfDirective{
			Cond:     ast.Expr{Kind: ast.ExprIdent, Name: "debug"},
			TrueArm:  ast.Program{label},
			FalseArm: ast.Program{hidden},
		},
		&ast.RuledefDirective{Name: "cpu"},
	}

	c.Collect(prog)

	if rep.HasErrors() {
		t.Fatalf("unexpected errors: %+v", rep.Messages())
	}
	if c.Symbols.Len() != 2 {
		t.Fatalf("expected 2 symbols (debug const + start label), got %d", c.Symbols.Len())
	}
	if _, ok := c.SymbolByName["start"]; !ok {
		t.Fatalf("expected `start` label to survive the #if splice")
	}
	if _, ok := c.SymbolByName["dead"]; ok {
		t.Fatalf("expected `dead` label in the untaken arm to be dropped")
	}
	if c.Ruledefs.Len() != 1 {
		t.Fatalf("expected 1 ruledef, got %d", c.Ruledefs.Len())
	}
}

func TestCollectAnonymousRuledefNaming(t *testing.T) {
	rep := report.New()
	c := NewCollector(rep)
	prog := ast.Program{
		&ast.RuledefDirective{IsAnonymous: true},
		&ast.RuledefDirective{IsAnonymous: true},
	}
	c.Collect(prog)

	r0 := c.Ruledefs.Get(c.Ruledefs.All()[0])
	r1 := c.Ruledefs.Get(c.Ruledefs.All()[1])
	if r0.Name == r1.Name {
		t.Fatalf("expected distinct anonymous names, got %q twice", r0.Name)
	}
}

func TestLookupSymbolHierarchical(t *testing.T) {
	rep := report.New()
	c := NewCollector(rep)
	prog := ast.Program{
		&ast.LabelDecl{Name: "loop", Level: 1, Ctx: []string{"loop"}},
		&ast.LabelDecl{Name: "body", Level: 2, Ctx: []string{"loop", "body"}},
	}
	c.Collect(prog)

	ref, ok := c.LookupSymbol([]string{"loop", "body"}, 1, "body")
	if !ok {
		t.Fatalf("expected to resolve .body relative to loop.body's own context")
	}
	sym := c.Symbols.Get(ref)
	if sym.FullName != "loop.body" {
		t.Fatalf("expected loop.body, got %q", sym.FullName)
	}
}

func TestCollectRejectsDuplicateSymbol(t *testing.T) {
	rep := report.New()
	c := NewCollector(rep)
	prog := ast.Program{
		&ast.LabelDecl{Name: "start", Ctx: []string{"start"}},
		&ast.LabelDecl{Name: "start", Ctx: []string{"start"}},
	}
	c.Collect(prog)

	if !rep.HasErrors() {
		t.Fatalf("expected a duplicate-symbol error")
	}
	if c.Symbols.Len() != 1 {
		t.Fatalf("expected only the first declaration to be kept, got %d", c.Symbols.Len())
	}
}

func TestCollectRegistersFunctionsByName(t *testing.T) {
	rep := report.New()
	c := NewCollector(rep)
	prog := ast.Program{
		&ast.FnDirective{Name: "double", Params: []string{"x"}},
		&ast.FnDirective{Name: "double", Params: []string{"x"}},
	}
	c.Collect(prog)

	if !rep.HasErrors() {
		t.Fatalf("expected a duplicate-function error")
	}
	ref, ok := c.FunctionByName["double"]
	if !ok {
		t.Fatalf("expected `double` to be registered by name")
	}
	if got := c.Functions.Get(ref).Name; got != "double" {
		t.Fatalf("ref resolves to %q, want double", got)
	}
}

func TestEvalConstBoolLogical(t *testing.T) {
	consts := map[string]bool{"a": true, "b": false}
	l := ast.Expr{Kind: ast.ExprIdent, Name: "a"}
	r := ast.Expr{Kind: ast.ExprIdent, Name: "b"}
	e := ast.Expr{Kind: ast.ExprLogical, Op: token.AndAnd, Left: &l, Right: &r}

	v, ok := evalConstBool(e, consts)
	if !ok {
		t.Fatalf("expected a decidable result")
	}
	if v {
		t.Fatalf("expected true && false to be false")
	}
}
