package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/maloquacious/semver"
	"github.com/teris-io/cli"

	"github.com/casmlang/casm/internal/format"
	"github.com/casmlang/casm/pkg/casm"
	"github.com/casmlang/casm/pkg/fsrv"
)

var version = semver.Version{Minor: 1, PreRelease: "alpha"}

var Description = strings.ReplaceAll(`
Casm is a configurable assembler: it reads a user-supplied instruction-set
description (mnemonic patterns and their bit-level productions) alongside a
source program written against it, and produces a bit-accurate binary image.
`, "\n", " ")

var Casm = cli.New(Description).
	WithArg(cli.NewArg("input", "The source (.casm) file to assemble")).
	WithOption(cli.NewOption("output", "Output file path (defaults to the input name with its format's extension)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("format", "Output format: rawbin, hexstr or intelhex (default rawbin)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("quiet", "Suppress the diagnostic report on success").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("version", "Print the casm version and exit").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if _, ok := options["version"]; ok {
		fmt.Printf("casm %s\n", version.String())
		return 0
	}
	if len(args) < 1 {
		fmt.Println("ERROR: no input file specified, use --help")
		return 1
	}

	input := args[0]
	dir := path.Dir(input)
	fs := fsrv.NewOSServer(os.DirFS(dir), nil)

	result := casm.Assemble(fs, path.Base(input))

	if _, quiet := options["quiet"]; !quiet || result.Report.HasErrors() {
		result.Report.Print(os.Stderr)
	}
	if result.Report.HasErrors() {
		return 1
	}

	outFormat := format.Name(options["format"])
	if outFormat == "" {
		outFormat = format.Raw
	}
	rendered, err := format.Render(outFormat, result.Output)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return 1
	}

	outPath := options["output"]
	if outPath == "" {
		outPath = defaultOutputPath(input, outFormat)
	}
	if err := os.WriteFile(outPath, rendered, 0o644); err != nil {
		fmt.Printf("ERROR: unable to write output file: %s\n", err)
		return 1
	}

	return 0
}

func defaultOutputPath(input string, f format.Name) string {
	ext := path.Ext(input)
	base := strings.TrimSuffix(input, ext)
	switch f {
	case format.HexStr:
		return base + ".hex"
	case format.IntelHex:
		return base + ".ihex"
	default:
		return base + ".bin"
	}
}

func main() { os.Exit(Casm.Run(os.Args, os.Stdout)) }
