package resolve

import (
	"bytes"
	"strings"
	"testing"

	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/decl"
	"github.com/casmlang/casm/pkg/emit"
	"github.com/casmlang/casm/pkg/fsrv"
	"github.com/casmlang/casm/pkg/report"
)

// assemble runs the pipeline up to and including emission over src placed
// at "main.casm" in a fresh mock file server.
func assemble(t *testing.T, src string) ([]byte, *report.Report) {
	t.Helper()
	fs := fsrv.NewMockServer()
	fs.PutString("main.casm", src)
	rep := report.New()

	parser := ast.NewParser(fs, rep)
	prog, _ := parser.ParseFile("main.casm")
	if rep.HasErrors() {
		return nil, rep
	}

	c := decl.NewCollector(rep)
	c.Collect(prog)
	if rep.HasErrors() {
		return nil, rep
	}

	r := NewResolver(c, fs, rep)
	r.Run()
	if rep.HasErrors() {
		return nil, rep
	}

	return emit.Emit(c, r.State, rep), rep
}

func requireOutput(t *testing.T, src string, want []byte) {
	t.Helper()
	out, rep := assemble(t, src)
	if rep.HasErrors() {
		var b bytes.Buffer
		rep.Print(&b)
		t.Fatalf("unexpected errors:\n%s", b.String())
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x, want % x", out, want)
	}
}

func requireErrorContaining(t *testing.T, src, fragment string) {
	t.Helper()
	_, rep := assemble(t, src)
	if !rep.HasErrors() {
		t.Fatalf("expected an error containing %q, assembly succeeded", fragment)
	}
	for _, m := range rep.Messages() {
		if strings.Contains(m.Text, fragment) {
			return
		}
	}
	var b bytes.Buffer
	rep.Print(&b)
	t.Fatalf("no message contains %q:\n%s", fragment, b.String())
}

// A forward reference through an instruction whose own width depends on the
// referenced label's value must still settle within the iteration cap, and
// settle on the narrower encoding once the label's address fits it.
func TestConvergenceAcrossWidths(t *testing.T) {
	requireOutput(t, `
#ruledef {
	jmp {a: u8}  => 8'0x40 @ a
	jmp {a: u16} => 8'0x50 @ a
}
jmp end
.end:
#d8 0xff
`, []byte{0x40, 0x02, 0xff})
}

// When both the narrow and the wide rule accept the operand, the narrowest
// successfully evaluated encoding wins.
func TestShortestWidthSelected(t *testing.T) {
	requireOutput(t, `
#ruledef {
	ld {a: u8}  => 8'0x10 @ a
	ld {a: u16} => 8'0x20 @ a
}
ld 5
`, []byte{0x10, 0x05})
}

// Two distinct rules producing the same width for the same instruction
// cannot be tie-broken and must be reported.
func TestAmbiguousSameWidthReported(t *testing.T) {
	requireErrorContaining(t, `
#ruledef {
	nop => 8'0x00
	nop => 8'0x01
}
nop
`, "multiple rules with the same encoded width")
}

func TestAlignAdvancesCursorToMultiple(t *testing.T) {
	requireOutput(t, `
#d8 0x01
#align 4
#d8 0x02
`, []byte{0x01, 0x00, 0x00, 0x00, 0x02})
}

func TestAddrSeeksWithinBank(t *testing.T) {
	requireOutput(t, `
#bankdef "rom" { addr = 0x100, size = 0x10, outp = 0 }
#bank "rom"
#addr 0x104
#d8 0xaa
`, []byte{0x00, 0x00, 0x00, 0x00, 0xaa})
}

func TestAddrBelowBankStartReported(t *testing.T) {
	requireErrorContaining(t, `
#bankdef "rom" { addr = 0x100, size = 0x10, outp = 0 }
#bank "rom"
#addr 0x90
`, "below the bank's start")
}

func TestAddrBeyondBankEndReported(t *testing.T) {
	requireErrorContaining(t, `
#bankdef "rom" { addr = 0x100, size = 0x10, outp = 0 }
#bank "rom"
#addr 0x200
`, "beyond the bank's end")
}

func TestBankOverflowReported(t *testing.T) {
	requireErrorContaining(t, `
#bankdef "rom" { addr = 0, size = 2, outp = 0 }
#bank "rom"
#d8 1, 2, 3
`, "overflows its declared size")
}

func TestLabelAlignEnforced(t *testing.T) {
	requireErrorContaining(t, `
#bankdef "rom" { addr = 0, size = 0x10, outp = 0, labelalign = 2 }
#bank "rom"
#d8 1
.x:
`, "not aligned")
}

// A `#fn` value is callable anywhere an expression appears.
func TestFnCallInExpression(t *testing.T) {
	requireOutput(t, `
#fn double(x) => x + x
#d8 double(3)
`, []byte{0x06})
}

// `$` binds to the current emission address.
func TestDollarBindsToCurrentAddress(t *testing.T) {
	requireOutput(t, `
#d8 0x11
#d8 $
`, []byte{0x11, 0x01})
}

func TestUnresolvedReferenceReported(t *testing.T) {
	requireErrorContaining(t, `
#d8 nothing
`, "unresolved reference")
}

// addr_end derives the bank's size; writing past it is still an overflow.
func TestAddrEndDerivesSize(t *testing.T) {
	requireErrorContaining(t, `
#bankdef "rom" { addr = 0x10, addr_end = 0x12, outp = 0 }
#bank "rom"
#d8 1, 2, 3
`, "overflows its declared size")
}
