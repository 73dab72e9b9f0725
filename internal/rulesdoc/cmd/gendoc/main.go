// Command gendoc walks the bundled examples/*.casm programs and writes a
// single markdown file documenting every "///"-commented #ruledef it finds.
// Invoked via `go generate` from pkg/casm.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/casmlang/casm/internal/rulesdoc"
)

const (
	examplesDir = "../../examples"
	outPath     = "../../docs/ruledefs.md"
)

func main() {
	matches, err := filepath.Glob(filepath.Join(examplesDir, "*.casm"))
	if err != nil {
		log.Fatalf("gendoc: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		log.Fatalf("gendoc: %v", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("gendoc: %v", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	fmt.Fprint(w, "# Bundled ruledef reference\n\n")

	for _, path := range matches {
		src, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("gendoc: %v", err)
		}
		blocks, err := rulesdoc.Extract(src)
		if err != nil {
			log.Fatalf("gendoc: %s: %v", path, err)
		}
		if len(blocks) == 0 {
			continue
		}
		fmt.Fprintf(w, "### %s\n\n", filepath.Base(path))
		if err := rulesdoc.Render(w, blocks); err != nil {
			log.Fatalf("gendoc: %v", err)
		}
	}

	if err := w.Flush(); err != nil {
		log.Fatalf("gendoc: %v", err)
	}
}
