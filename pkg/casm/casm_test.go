package casm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/casmlang/casm/pkg/fsrv"
)

// assembleString is a small test helper: it puts src at "main.casm" in a
// fresh MockServer and runs the full pipeline. It does not check the report;
// callers that expect success pass the result to requireNoErrors.
func assembleString(t *testing.T, src string) Result {
	t.Helper()
	fs := fsrv.NewMockServer()
	fs.PutString("main.casm", src)
	return Assemble(fs, "main.casm")
}

func requireNoErrors(t *testing.T, res Result) {
	t.Helper()
	if res.Report.HasErrors() {
		var b bytes.Buffer
		res.Report.Print(&b)
		t.Fatalf("unexpected assembly errors:\n%s", b.String())
	}
}

// A single parameterless rule compiles to its literal
// production.
func TestScenarioMinimalHalt(t *testing.T) {
	res := assembleString(t, `
#ruledef {
	halt => 8'0x33
}
halt
`)
	requireNoErrors(t, res)
	if !bytes.Equal(res.Output, []byte{0x33}) {
		t.Fatalf("got % x, want [33]", res.Output)
	}
}

// A backward jmp to a label declared immediately before
// it resolves once the label's own (zero) address is known, and a
// u8-typed parameter concatenates at its declared width.
func TestScenarioLabelBackref(t *testing.T) {
	res := assembleString(t, `
#ruledef {
	jmp {a: u8} => 8'0x55 @ a
}
.loop:
jmp loop
`)
	requireNoErrors(t, res)
	if !bytes.Equal(res.Output, []byte{0x55, 0x00}) {
		t.Fatalf("got % x, want [55 00]", res.Output)
	}
}

// Two banks at different output offsets leave a zero gap
// between them sized exactly to the offset difference.
func TestScenarioBankGap(t *testing.T) {
	res := assembleString(t, `
#bankdef "a" { addr=0, size=0x10, outp=0 }
#bankdef "b" { addr=0, size=0x10, outp=0x80 }
#ruledef {
	nop => 8'0x00
}
#bank "a"
nop
#bank "b"
nop
`)
	requireNoErrors(t, res)
	wantLen := 0x80 + 1
	if len(res.Output) != wantLen {
		t.Fatalf("got output length %d, want %d", len(res.Output), wantLen)
	}
	for i := 1; i < 0x80; i++ {
		if res.Output[i] != 0 {
			t.Fatalf("byte %#x should be zero, got %#x", i, res.Output[i])
		}
	}
}

// Two separate includes of the same `#once`-guarded file
// only splice its declarations in a single time.
func TestScenarioIncludeOnce(t *testing.T) {
	fs := fsrv.NewMockServer()
	fs.PutString("main.casm", `
#include "f1.casm"
#include "f2.casm"
`)
	fs.PutString("f1.casm", `#include "shared.casm"`)
	fs.PutString("f2.casm", `#include "shared.casm"`)
	fs.PutString("shared.casm", `
#once
#ruledef {
	halt => 8'0x33
}
.marker:
`)

	res := Assemble(fs, "main.casm")
	requireNoErrors(t, res)
}

// A false `#assert` aborts emission with an error
// report, without panicking.
func TestScenarioAssertionFailure(t *testing.T) {
	res := assembleString(t, `
#const x = 3
#assert x == 4
`)
	if !res.Report.HasErrors() {
		t.Fatalf("expected assertion failure to be reported")
	}

	found := false
	for _, m := range res.Report.Messages() {
		if m.Text == "assertion failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an 'assertion failed' message, got %+v", res.Report.Messages())
	}
}

// The elements of one data directive are placed back to back
// without colliding, and their bytes appear in source order.
func TestPropertyDataOrderingAndNoOverlap(t *testing.T) {
	res := assembleString(t, `
#d8 0x01, 0x02, 0x03
`)
	requireNoErrors(t, res)
	if !bytes.Equal(res.Output, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("got % x, want [01 02 03]", res.Output)
	}
}

// A `..body` sub-label nests under the nearest enclosing single-dot label,
// while a following single-dot label is a sibling of `loop`, not a child.
func TestPropertyHierarchicalLabelScoping(t *testing.T) {
	res := assembleString(t, `
#ruledef {
	jmp {a: u8} => 8'0x55 @ a
}
.loop:
jmp loop
..body:
jmp body
.next:
jmp next
`)
	requireNoErrors(t, res)
	// loop is at 0, loop.body right after the first jmp (2 bytes in), and
	// next — a top-level sibling — after the second (4 bytes in).
	want := []byte{0x55, 0x00, 0x55, 0x02, 0x55, 0x04}
	if !bytes.Equal(res.Output, want) {
		t.Fatalf("got % x, want % x", res.Output, want)
	}
}

// Two single-dot labels with the same name are the same top-level symbol,
// so declaring both is a duplicate.
func TestDuplicateTopLevelLabelReported(t *testing.T) {
	res := assembleString(t, `
.a:
.a:
`)
	if !res.Report.HasErrors() {
		t.Fatalf("expected a duplicate-symbol error")
	}
	found := false
	for _, m := range res.Report.Messages() {
		if strings.Contains(m.Text, "duplicate symbol") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no message mentions the duplicate symbol: %+v", res.Report.Messages())
	}
}
