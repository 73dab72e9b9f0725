package eval

import (
	"math/big"
	"testing"

	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/token"
)

type stubResolver struct {
	idents map[string]Value
	files  map[string][]byte
}

func (s *stubResolver) LookupIdent(level int, name string) (Value, error) {
	if v, ok := s.idents[name]; ok {
		return v, nil
	}
	return Unknown, nil
}

func (s *stubResolver) ReadFile(relativeTo, path string) ([]byte, error) {
	return s.files[path], nil
}

func numExpr(n int64) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprNumber, Int: big.NewInt(n), BitWidth: -1}
}

func TestEvalArithmetic(t *testing.T) {
	ev := New(&stubResolver{}, report.New(), "test.casm")
	left, right := numExpr(3), numExpr(4)
	e := &ast.Expr{Kind: ast.ExprBinary, Op: token.Plus, Left: left, Right: right}

	v, err := ev.Eval(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Int.Int64() != 7 {
		t.Fatalf("expected 3 + 4 = 7, got %v", v.Int)
	}
}

func TestEvalSliceAndConcat(t *testing.T) {
	ev := New(&stubResolver{}, report.New(), "test.casm")

	target := &ast.Expr{Kind: ast.ExprNumber, Int: big.NewInt(0b1011_0010), BitWidth: 8}
	hi := numExpr(7)
	lo := numExpr(4)
	slice := &ast.Expr{Kind: ast.ExprSlice, Target: target, Hi: hi, Lo: lo}

	v, err := ev.Eval(slice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindInteger || v.BitWidth != 4 || v.Int.Int64() != 0b1011 {
		t.Fatalf("unexpected slice result: %+v", v)
	}

	a := &ast.Expr{Kind: ast.ExprNumber, Int: big.NewInt(0b10), BitWidth: 2}
	b := &ast.Expr{Kind: ast.ExprNumber, Int: big.NewInt(0b011), BitWidth: 3}
	concat := &ast.Expr{Kind: ast.ExprConcat, Args: []ast.Expr{*a, *b}}

	cv, err := ev.Eval(concat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cv.BitWidth != 5 || cv.Int.Int64() != 0b10011 {
		t.Fatalf("unexpected concat result: %+v", cv)
	}
}

func TestEvalUnknownPropagates(t *testing.T) {
	ev := New(&stubResolver{idents: map[string]Value{}}, report.New(), "test.casm")
	ident := &ast.Expr{Kind: ast.ExprIdent, Name: "forward_label"}
	v, err := ev.Eval(ident)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsUnknown() {
		t.Fatalf("expected Unknown for an unresolved identifier, got %+v", v)
	}
}

func TestEvalTernary(t *testing.T) {
	ev := New(&stubResolver{}, report.New(), "test.casm")
	cond := &ast.Expr{Kind: ast.ExprBool, Bool: true}
	then := numExpr(1)
	els := numExpr(2)
	tern := &ast.Expr{Kind: ast.ExprTernary, Cond: cond, Then: then, Else: els}

	v, err := ev.Eval(tern)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Int.Int64() != 1 {
		t.Fatalf("expected 1, got %v", v.Int)
	}
}

func TestEvalAssertBuiltinFailure(t *testing.T) {
	ev := New(&stubResolver{}, report.New(), "test.casm")
	falseArg := ast.Expr{Kind: ast.ExprBool, Bool: false}
	call := &ast.Expr{
		Kind:   ast.ExprCall,
		Callee: &ast.Expr{Kind: ast.ExprIdent, Name: "assert"},
		Args:   []ast.Expr{falseArg},
	}
	if _, err := ev.Eval(call); err == nil {
		t.Fatalf("expected assert(false) to fail evaluation")
	}
}

func TestEvalIncbinstr(t *testing.T) {
	res := &stubResolver{files: map[string][]byte{"bits.txt": []byte("10_11\n")}}
	ev := New(res, report.New(), "test.casm")
	call := &ast.Expr{
		Kind:   ast.ExprCall,
		Callee: &ast.Expr{Kind: ast.ExprIdent, Name: "incbinstr"},
		Args:   []ast.Expr{{Kind: ast.ExprString, Str: "bits.txt"}},
	}
	v, err := ev.Eval(call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.BitWidth != 4 || v.Int.Int64() != 0b1011 {
		t.Fatalf("unexpected incbinstr result: %+v", v)
	}
}
