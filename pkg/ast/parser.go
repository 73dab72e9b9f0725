package ast

import (
	"fmt"

	"github.com/casmlang/casm/pkg/fsrv"
	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/token"
)

// Parser is a recursive-descent parser over the token stream produced by
// pkg/token, with one-token lookahead (and nth-lookahead skipping
// ignorable tokens) over a stateful cursor. One Parser instance is shared
// across an entire `#include` tree so it can detect cycles and honor
// `#once`.
type Parser struct {
	fs     fsrv.Server
	report *report.Report

	includeStack []string
	onceMarked   map[string]bool
}

// NewParser returns a Parser that reads source files through fs and reports
// diagnostics to rep.
func NewParser(fs fsrv.Server, rep *report.Report) *Parser {
	return &Parser{fs: fs, report: rep, onceMarked: map[string]bool{}}
}

// ParseFile parses filename as the root of the source graph, splicing in
// every file reachable via `#include`.
func (p *Parser) ParseFile(filename string) (Program, error) {
	return p.parseInclude(filename, token.Dummy())
}

// parseInclude parses one file, honoring `#once` (skip if this exact file
// was already marked by a previous inclusion) and detecting cycles via the
// shared includeStack.
func (p *Parser) parseInclude(filename string, refSpan token.Span) (Program, error) {
	if p.onceMarked[filename] {
		return nil, nil
	}

	for _, inStack := range p.includeStack {
		if inStack == filename {
			p.report.Error(refSpan, "include cycle detected: %q is already being included", filename)
			return nil, fmt.Errorf("include cycle at %q", filename)
		}
	}

	src, err := p.fs.GetChars(filename)
	if err != nil {
		p.report.Error(refSpan, "cannot read file %q: %v", filename, err)
		return nil, err
	}

	lx := token.New(filename, src)
	toks, err := lx.Tokenize()
	if err != nil {
		p.report.Error(refSpan, "lexical error in %q: %v", filename, err)
		return nil, err
	}

	p.includeStack = append(p.includeStack, filename)
	defer func() { p.includeStack = p.includeStack[:len(p.includeStack)-1] }()

	fp := &fileParser{parser: p, filename: filename, toks: toks}
	return fp.parseProgram()
}

// markOnce records that filename must be skipped on any future inclusion.
func (p *Parser) markOnce(filename string) { p.onceMarked[filename] = true }

// fileParser holds the per-file cursor state; the shared Parser carries
// only cross-file bookkeeping (include stack, once set).
type fileParser struct {
	parser   *Parser
	filename string
	toks     []token.Token
	pos      int

	// hierCtx is the dotted-name chain of labels declared so far at each
	// level, truncated whenever a lower-level label is declared. It is
	// copied onto every instruction/directive node so later passes can
	// resolve hierarchical references relative to "the most recently
	// declared symbol of strictly lower hierarchy level".
	hierCtx []string
}

func (fp *fileParser) report() *report.Report { return fp.parser.report }

// next returns the token at fp.pos + n, skipping ignorable (whitespace,
// comment) tokens but not line breaks, which are syntactically meaningful.
func (fp *fileParser) next(n int) token.Token {
	idx := fp.pos
	for {
		for idx < len(fp.toks) && fp.toks[idx].Kind.Ignorable() {
			idx++
		}
		if idx >= len(fp.toks) {
			return token.NewEnd(fp.lastSpan())
		}
		if n == 0 {
			return fp.toks[idx]
		}
		n--
		idx++
	}
}

func (fp *fileParser) lastSpan() token.Span {
	if len(fp.toks) == 0 {
		return token.Span{File: fp.filename}
	}
	return fp.toks[len(fp.toks)-1].Span
}

// advance consumes and returns the next significant token.
func (fp *fileParser) advance() token.Token {
	for fp.pos < len(fp.toks) && fp.toks[fp.pos].Kind.Ignorable() {
		fp.pos++
	}
	if fp.pos >= len(fp.toks) {
		return token.NewEnd(fp.lastSpan())
	}
	tk := fp.toks[fp.pos]
	fp.pos++
	return tk
}

func (fp *fileParser) nextIs(n int, kind token.Kind) bool { return fp.next(n).Kind == kind }

func (fp *fileParser) maybeExpect(kind token.Kind) (token.Token, bool) {
	if fp.nextIs(0, kind) {
		return fp.advance(), true
	}
	return token.Token{}, false
}

func (fp *fileParser) expect(kind token.Kind) (token.Token, error) {
	if tk, ok := fp.maybeExpect(kind); ok {
		return tk, nil
	}
	got := fp.next(0)
	fp.report().Error(got.Span, "expected %s, found %s", kind, got.Kind)
	return token.Token{}, fmt.Errorf("expected %s, found %s at %s", kind, got.Kind, got.Span)
}

// skipLineBreaks consumes any run of LineBreak tokens (blank lines between
// statements carry no meaning).
func (fp *fileParser) skipLineBreaks() {
	for fp.nextIs(0, token.LineBreak) {
		fp.advance()
	}
}

// parseProgram parses every top-level item in the file, recursing into
// `#include` and splicing the result in place.
func (fp *fileParser) parseProgram() (Program, error) {
	var prog Program

	fp.skipLineBreaks()
	for !fp.nextIs(0, token.End) {
		nodes, err := fp.parseItem()
		if err != nil {
			// Recover: skip to the next line break and keep parsing, so a
			// single bad statement doesn't abort the whole file's report.
			fp.skipToLineBreak()
		}
		prog = append(prog, nodes...)
		fp.skipLineBreaks()
	}

	return prog, nil
}

func (fp *fileParser) skipToLineBreak() {
	for !fp.nextIs(0, token.LineBreak) && !fp.nextIs(0, token.End) {
		fp.advance()
	}
}

// parseItem parses one directive, symbol declaration or instruction,
// possibly returning multiple nodes (an `#include` splices a whole file's
// worth, an `#if` that's still pending evaluation is kept as a single
// placeholder — see directive.go).
func (fp *fileParser) parseItem() ([]Node, error) {
	if fp.nextIs(0, token.Hash) {
		return fp.parseDirective()
	}
	if fp.nextIs(0, token.Dot) {
		return fp.parseSymbolDecl()
	}
	return fp.parseInstruction()
}

// parseSymbolDecl parses `.name:` (label) or `.name = EXPR` (constant),
// with Level set to the number of leading dots.
func (fp *fileParser) parseSymbolDecl() ([]Node, error) {
	start := fp.next(0).Span
	level := 0
	for fp.nextIs(0, token.Dot) {
		fp.advance()
		level++
	}

	nameTk, err := fp.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	name := nameTk.Excerpt

	if _, ok := fp.maybeExpect(token.Colon); ok {
		fp.pushCtx(level, name)
		decl := &LabelDecl{
			Span:  start.Join(nameTk.Span),
			Level: level,
			Name:  name,
			Ctx:   fp.ctxSnapshot(),
		}
		return []Node{decl}, nil
	}

	if _, err := fp.expect(token.Equal); err != nil {
		return nil, err
	}
	value, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	fp.pushCtx(level, name)
	decl := &ConstDecl{
		Span:  start.Join(value.Span),
		Level: level,
		Name:  name,
		Value: value,
		Ctx:   fp.ctxSnapshot(),
	}
	return []Node{decl}, nil
}

// pushCtx truncates the hierarchical context to the symbol's parent depth
// and appends name there. level is the 1-based leading-dot count (`.x:` is
// top-level, `..x:` nests one deeper), so the parent context keeps level-1
// entries: declaring a symbol at level L attaches it to the nearest prior
// symbol at a strictly lower level, and two single-dot labels in a row are
// siblings, not parent and child.
func (fp *fileParser) pushCtx(level int, name string) {
	depth := level - 1
	if depth < 0 {
		depth = 0
	}
	if depth > len(fp.hierCtx) {
		depth = len(fp.hierCtx)
	}
	fp.hierCtx = append(fp.hierCtx[:depth], name)
}

func (fp *fileParser) ctxSnapshot() []string {
	out := make([]string, len(fp.hierCtx))
	copy(out, fp.hierCtx)
	return out
}

// parseInstruction captures tokens up to the next line break as an
// unparsed slice, to be matched against the ruledef grammar later.
func (fp *fileParser) parseInstruction() ([]Node, error) {
	start := fp.next(0)
	if start.Kind == token.End {
		return nil, nil
	}

	var toks []token.Token
	for !fp.nextIs(0, token.LineBreak) && !fp.nextIs(0, token.End) {
		toks = append(toks, fp.advance())
	}
	if len(toks) == 0 {
		return nil, nil
	}

	sp := toks[0].Span.Join(toks[len(toks)-1].Span)
	inst := &Instruction{Span: sp, Tokens: toks, Ctx: fp.ctxSnapshot()}
	return []Node{inst}, nil
}
