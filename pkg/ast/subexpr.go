package ast

import (
	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/token"
)

// ParseExprTokens parses a standalone token slice as a single expression,
// used by pkg/resolve to turn a matched rule parameter's raw token window
// back into an Expr it can evaluate.
func ParseExprTokens(filename string, toks []token.Token, rep *report.Report) (Expr, error) {
	fp := &fileParser{
		parser:   &Parser{report: rep, onceMarked: map[string]bool{}},
		filename: filename,
		toks:     append(toks, token.NewEnd(token.Span{File: filename})),
	}
	return fp.parseExpr()
}
