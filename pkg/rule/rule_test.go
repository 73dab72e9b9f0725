package rule

import (
	"testing"

	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/itemref"
	"github.com/casmlang/casm/pkg/token"
)

func tok(kind token.Kind, text string) token.Token {
	return token.Token{Kind: kind, Excerpt: text, Span: token.Dummy()}
}

func exact(kind token.Kind, text string) ast.PatternPart {
	return ast.PatternPart{Kind: ast.PatternExact, ExactKind: kind, ExactText: text}
}

func param(idx int) ast.PatternPart {
	return ast.PatternPart{Kind: ast.PatternParam, ParamIndex: idx}
}

func TestMatchInstructionExactMnemonic(t *testing.T) {
	var ruledefs itemref.DefList[ast.RuledefDirective]
	ruledefs.Add(ast.RuledefDirective{
		Name: "cpu",
		Rules: []ast.Rule{
			{
				Pattern: []ast.PatternPart{exact(token.Identifier, "nop")},
			},
		},
	})

	m := NewMatcher(&ruledefs)
	matches := m.MatchInstruction([]token.Token{tok(token.Identifier, "nop")})
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

func TestMatchInstructionWithParameter(t *testing.T) {
	var ruledefs itemref.DefList[ast.RuledefDirective]
	ruledefs.Add(ast.RuledefDirective{
		Name: "cpu",
		Rules: []ast.Rule{
			{
				Pattern: []ast.PatternPart{exact(token.Identifier, "mov"), param(0)},
				Params:  []ast.RuleParam{{Name: "dst", Type: ast.ParamUnspecified}},
			},
		},
	})

	m := NewMatcher(&ruledefs)
	toks := []token.Token{tok(token.Identifier, "mov"), tok(token.Number, "5")}
	matches := m.MatchInstruction(toks)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if len(matches[0].Params[0].Tokens) != 1 || matches[0].Params[0].Tokens[0].Excerpt != "5" {
		t.Fatalf("unexpected param window: %+v", matches[0].Params[0])
	}
}

func TestMatchInstructionNoMatchWrongMnemonic(t *testing.T) {
	var ruledefs itemref.DefList[ast.RuledefDirective]
	ruledefs.Add(ast.RuledefDirective{
		Name:  "cpu",
		Rules: []ast.Rule{{Pattern: []ast.PatternPart{exact(token.Identifier, "nop")}}},
	})

	m := NewMatcher(&ruledefs)
	matches := m.MatchInstruction([]token.Token{tok(token.Identifier, "halt")})
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
}

func TestMatchRulesetParameter(t *testing.T) {
	var ruledefs itemref.DefList[ast.RuledefDirective]
	ruledefs.Add(ast.RuledefDirective{
		Name: "reg",
		Rules: []ast.Rule{
			{Pattern: []ast.PatternPart{exact(token.Identifier, "a")}},
			{Pattern: []ast.PatternPart{exact(token.Identifier, "b")}},
		},
	})
	ruledefs.Add(ast.RuledefDirective{
		Name: "cpu",
		Rules: []ast.Rule{
			{
				Pattern: []ast.PatternPart{exact(token.Identifier, "mov"), param(0)},
				Params:  []ast.RuleParam{{Name: "r", Type: ast.ParamRuleset, Ruleset: "reg"}},
			},
		},
	})

	m := NewMatcher(&ruledefs)
	toks := []token.Token{tok(token.Identifier, "mov"), tok(token.Identifier, "b")}
	matches := m.MatchInstruction(toks)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	sub := matches[0].Params[0].Sub
	if sub == nil || sub.RuleIndex != 1 {
		t.Fatalf("expected sub-match against reg rule index 1, got %+v", sub)
	}
}

func TestPrefixAccelerationSkipsUnrelatedEntries(t *testing.T) {
	var ruledefs itemref.DefList[ast.RuledefDirective]
	ruledefs.Add(ast.RuledefDirective{
		Name: "cpu",
		Rules: []ast.Rule{
			{Pattern: []ast.PatternPart{exact(token.Identifier, "add")}},
			{Pattern: []ast.PatternPart{exact(token.Identifier, "sub")}},
		},
	})

	m := NewMatcher(&ruledefs)
	prefix := patternPrefix(ruledefs.Get(itemref.Of[ast.RuledefDirective](0)).Rules[0].Pattern)
	if prefix != "add" {
		t.Fatalf("unexpected prefix %q", prefix)
	}
	cands := m.global.Candidates([]token.Token{tok(token.Identifier, "sub")})
	if len(cands) != 1 || cands[0].RuleIndex != 1 {
		t.Fatalf("expected only the sub rule as a candidate, got %+v", cands)
	}
}

// TestPrefixAccelerationFindsShortLiteralBeforeParam guards against a
// regression where looking up a rule's literal prefix accidentally consumed
// characters from the token following it (e.g. a parameter's own text),
// which would never match the shorter key the rule itself was stored under.
func TestPrefixAccelerationFindsShortLiteralBeforeParam(t *testing.T) {
	var ruledefs itemref.DefList[ast.RuledefDirective]
	ruledefs.Add(ast.RuledefDirective{
		Name: "cpu",
		Rules: []ast.Rule{
			{
				Pattern: []ast.PatternPart{exact(token.Identifier, "jmp"), param(0)},
				Params:  []ast.RuleParam{{Name: "a", Type: ast.ParamUnspecified}},
			},
		},
	})

	m := NewMatcher(&ruledefs)
	toks := []token.Token{tok(token.Identifier, "jmp"), tok(token.Identifier, "loop")}
	matches := m.MatchInstruction(toks)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}
