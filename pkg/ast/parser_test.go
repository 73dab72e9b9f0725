package ast

import (
	"strings"
	"testing"

	"github.com/casmlang/casm/pkg/fsrv"
	"github.com/casmlang/casm/pkg/report"
)

func parseFiles(t *testing.T, entry string, files map[string]string) (Program, *report.Report, error) {
	t.Helper()
	fs := fsrv.NewMockServer()
	for name, src := range files {
		fs.PutString(name, src)
	}
	rep := report.New()
	prog, err := NewParser(fs, rep).ParseFile(entry)
	return prog, rep, err
}

func TestIncludeSplicesNodesInPlace(t *testing.T) {
	prog, rep, err := parseFiles(t, "main.casm", map[string]string{
		"main.casm": "#const a = 1\n#include \"defs.casm\"\n#const c = 3\n",
		"defs.casm": "#const b = 2\n",
	})
	if err != nil || rep.HasErrors() {
		t.Fatalf("parse failed: %v", err)
	}
	if len(prog) != 3 {
		t.Fatalf("got %d nodes, want 3", len(prog))
	}
	for i, want := range []string{"a", "b", "c"} {
		decl, ok := prog[i].(*ConstDecl)
		if !ok || decl.Name != want {
			t.Fatalf("node %d: got %T %+v, want const %q", i, prog[i], prog[i], want)
		}
	}
}

func TestIncludeCycleReported(t *testing.T) {
	_, rep, err := parseFiles(t, "a.casm", map[string]string{
		"a.casm": "#include \"b.casm\"\n",
		"b.casm": "#include \"a.casm\"\n",
	})
	if err == nil && !rep.HasErrors() {
		t.Fatalf("expected an include cycle error")
	}
	found := false
	for _, m := range rep.Messages() {
		if strings.Contains(m.Text, "include cycle") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no message mentions the include cycle: %+v", rep.Messages())
	}
}

func TestOnceSkipsRepeatedInclusion(t *testing.T) {
	prog, rep, err := parseFiles(t, "main.casm", map[string]string{
		"main.casm":   "#include \"shared.casm\"\n#include \"shared.casm\"\n",
		"shared.casm": "#once\n#const x = 1\n",
	})
	if err != nil || rep.HasErrors() {
		t.Fatalf("parse failed: %v", err)
	}
	if len(prog) != 1 {
		t.Fatalf("got %d nodes, want the shared const spliced exactly once", len(prog))
	}
}

func TestBankdefRejectsDuplicateField(t *testing.T) {
	_, rep, _ := parseFiles(t, "main.casm", map[string]string{
		"main.casm": "#bankdef \"a\" { addr = 0, addr = 1, size = 4 }\n",
	})
	if !rep.HasErrors() {
		t.Fatalf("expected a duplicate-field error")
	}
}

func TestBankdefRejectsSizeAndAddrEndTogether(t *testing.T) {
	_, rep, _ := parseFiles(t, "main.casm", map[string]string{
		"main.casm": "#bankdef \"a\" { addr = 0, size = 4, addr_end = 8 }\n",
	})
	if !rep.HasErrors() {
		t.Fatalf("expected a size/addr_end conflict error")
	}
}

func TestUnknownDirectiveReported(t *testing.T) {
	_, rep, _ := parseFiles(t, "main.casm", map[string]string{
		"main.casm": "#frobnicate 1\n",
	})
	if !rep.HasErrors() {
		t.Fatalf("expected an unknown-directive error")
	}
}
