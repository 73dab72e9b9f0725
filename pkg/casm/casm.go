// Package casm drives one full assembly behind a single entry point:
// parse, collect declarations, resolve to a fixed point, and emit the
// final byte image.
package casm

//go:generate go run ../../internal/rulesdoc/cmd/gendoc

import (
	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/decl"
	"github.com/casmlang/casm/pkg/emit"
	"github.com/casmlang/casm/pkg/fsrv"
	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/resolve"
	"github.com/casmlang/casm/pkg/token"
)

// Result is the outcome of one Assemble call: the final byte image (valid
// only when Report has no errors) and the diagnostics accumulated along
// the way.
type Result struct {
	Output []byte
	Report *report.Report
}

// Assemble runs the full pipeline against entryFile, reading every source
// file (including `#include` targets) through fs.
func Assemble(fs fsrv.Server, entryFile string) Result {
	rep := report.New()

	parser := ast.NewParser(fs, rep)
	prog, err := parser.ParseFile(entryFile)
	if err != nil && !rep.HasErrors() {
		rep.Error(token.Span{File: entryFile}, "failed to parse %q: %v", entryFile, err)
	}
	if rep.HasErrors() {
		return Result{Report: rep}
	}

	collector := decl.NewCollector(rep)
	collector.Collect(prog)
	if rep.HasErrors() {
		return Result{Report: rep}
	}

	resolver := resolve.NewResolver(collector, fs, rep)
	resolver.Run()
	if rep.HasErrors() {
		return Result{Report: rep}
	}

	output := emit.Emit(collector, resolver.State, rep)
	return Result{Output: output, Report: rep}
}
