// Package rulesdoc extracts "///" doc comments attached to #ruledef blocks
// in a bundled example program and renders them as markdown. Unlike the
// assembler's own hand-rolled parser, the grammar here is tiny and fixed —
// a run of doc-comment lines immediately followed by a #ruledef header — so
// it is expressed directly as a parser-combinator AST.
package rulesdoc

import (
	"bufio"
	"fmt"
	"strings"

	pc "github.com/prataprc/goparsec"
)

// Block is one documented ruledef: its declared name (empty for an
// anonymous ruledef) and the doc-comment text that preceded it, with every
// line's leading "///" marker stripped and joined with spaces.
type Block struct {
	Name string
	Text string
}

var ast = pc.NewAST("rulesdoc", 0)

var (
	pDocLine  = ast.And("docline", nil, pc.Atom("///", "///"), pc.Token(`[^\n]*`, "TEXT"))
	pDocBlock = ast.Kleene("docblock", nil, pDocLine)
	pName     = pc.Token(`[A-Za-z_][0-9A-Za-z_]*`, "NAME")
	pHeader   = ast.And("header", nil, pc.Atom("#ruledef", "#ruledef"), ast.Maybe("maybe_name", nil, pName))
	pEntry    = ast.And("entry", nil, pDocBlock, pHeader)
)

// Extract scans src line by line for runs of "///" comment lines that are
// immediately followed by a line containing a "#ruledef" header, and parses
// each such window with the grammar above.
func Extract(src []byte) ([]Block, error) {
	lines := strings.Split(string(src), "\n")
	var blocks []Block

	for i := 0; i < len(lines); {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "///") {
			i++
			continue
		}

		start := i
		for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "///") {
			i++
		}
		if i >= len(lines) || !strings.Contains(lines[i], "#ruledef") {
			continue
		}
		i++ // consume the header line too

		window := strings.Join(lines[start:i], "\n")
		root, _ := ast.Parsewith(pEntry, pc.NewScanner([]byte(window)))
		if root == nil || root.GetName() != "entry" {
			return nil, fmt.Errorf("rulesdoc: malformed doc block near line %d", start+1)
		}
		blocks = append(blocks, blockFromNode(root))
	}

	return blocks, nil
}

func blockFromNode(node pc.Queryable) Block {
	var b Block
	children := node.GetChildren()
	if len(children) != 2 {
		return b
	}
	docblock, header := children[0], children[1]

	var lines []string
	for _, line := range docblock.GetChildren() {
		lchildren := line.GetChildren()
		if len(lchildren) == 2 {
			lines = append(lines, strings.TrimSpace(lchildren[1].GetValue()))
		}
	}
	b.Text = strings.TrimSpace(strings.Join(lines, " "))

	for _, child := range header.GetChildren() {
		if child.GetName() == "maybe_name" {
			for _, nameChild := range child.GetChildren() {
				b.Name = nameChild.GetValue()
			}
		}
	}
	return b
}

// Render writes blocks out as a flat markdown document, one heading per
// documented ruledef in source order. Anonymous ruledefs are headed
// "(anonymous)".
func Render(w *bufio.Writer, blocks []Block) error {
	for _, b := range blocks {
		name := b.Name
		if name == "" {
			name = "(anonymous)"
		}
		if _, err := fmt.Fprintf(w, "## %s\n\n%s\n\n", name, b.Text); err != nil {
			return err
		}
	}
	return w.Flush()
}
