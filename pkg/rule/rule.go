// Package rule implements the pattern-prefix-accelerated instruction
// matcher: given a ruledef's rules, build a lookup keyed by the first few
// literal characters of each rule's pattern, then walk a candidate rule's
// pattern against an instruction's token stream in lockstep.
package rule

import (
	"strings"

	"github.com/casmlang/casm/pkg/ast"
	"github.com/casmlang/casm/pkg/itemref"
	"github.com/casmlang/casm/pkg/token"
)

// PrefixSize is the maximum number of leading literal characters used as a
// map key; rules whose pattern starts with a parameter, or that run out of
// literal characters before any key length, fall back to a linear scan list.
const PrefixSize = 4

// Entry names one candidate rule: the ruledef it belongs to and the rule's
// index within that ruledef's Rules slice.
type Entry struct {
	Ruledef   itemref.Ref[ast.RuledefDirective]
	RuleIndex int
}

// Map is the prefix-accelerated rule index for one scope: either every
// top-level ruledef (for matching whole instructions) or a single named
// ruledef's own rules (for matching a Ruleset-typed parameter).
//
// Keys are the literal prefix text itself (1 to PrefixSize lowercased
// characters), not a fixed-width zero-padded array: a rule like
// `jmp {a: u8}` only ever contributes 3 literal characters before its first
// parameter, and looking it up must not depend on what character a given
// instruction's argument happens to start with.
type Map struct {
	prefixed   map[string][]Entry
	unprefixed []Entry
}

func newMap() *Map { return &Map{prefixed: map[string][]Entry{}} }

func (m *Map) insert(ruledef itemref.Ref[ast.RuledefDirective], ruleIndex int, rule *ast.Rule) {
	prefix := patternPrefix(rule.Pattern)
	entry := Entry{Ruledef: ruledef, RuleIndex: ruleIndex}
	if prefix != "" {
		m.prefixed[prefix] = append(m.prefixed[prefix], entry)
	} else {
		m.unprefixed = append(m.unprefixed, entry)
	}
}

// patternPrefix returns the rule's leading literal text, lowercased and
// truncated to PrefixSize characters, stopping at the first non-exact
// pattern part.
func patternPrefix(pattern []ast.PatternPart) string {
	var b strings.Builder
	for _, part := range pattern {
		if b.Len() >= PrefixSize || part.Kind != ast.PatternExact {
			break
		}
		for _, c := range strings.ToLower(part.ExactText) {
			if b.Len() >= PrefixSize {
				break
			}
			b.WriteRune(c)
		}
	}
	return b.String()
}

// TokenPrefix computes the same kind of leading text over a raw token run,
// up to PrefixSize characters, so an instruction (or a candidate parameter
// window) can be probed against a Map's prefix keys.
func TokenPrefix(toks []token.Token) string {
	var b strings.Builder
	for _, tk := range toks {
		if b.Len() >= PrefixSize || !tk.Kind.IsAllowedPatternToken() {
			break
		}
		for _, c := range strings.ToLower(tk.Excerpt) {
			if b.Len() >= PrefixSize {
				break
			}
			b.WriteRune(c)
		}
	}
	return b.String()
}

// Candidates returns every entry that could plausibly match toks: every
// registered prefix length that toks's own leading text matches exactly (so
// both a rule keyed on "jmp" and one keyed on "jmpl" can be found from the
// same instruction), followed by every parameter-led entry.
func (m *Map) Candidates(toks []token.Token) []Entry {
	full := TokenPrefix(toks)
	var out []Entry
	for l := 1; l <= len(full); l++ {
		out = append(out, m.prefixed[full[:l]]...)
	}
	return append(out, m.unprefixed...)
}

// Matcher ties together the global instruction-matching Map (over every
// non-sub ruledef) with a per-ruledef Map for each named ruledef, used when
// a rule parameter is typed as a reference to another ruledef's rules.
type Matcher struct {
	ruledefs *itemref.DefList[ast.RuledefDirective]
	byName   map[string]itemref.Ref[ast.RuledefDirective]
	global   *Map
	perName  map[string]*Map
}

// NewMatcher builds the global and per-ruledef maps from every ruledef in
// the list. Anonymous ruledefs are reachable only through byName via the
// decl collector's generated `#anonymous_N` name.
func NewMatcher(ruledefs *itemref.DefList[ast.RuledefDirective]) *Matcher {
	m := &Matcher{
		ruledefs: ruledefs,
		byName:   map[string]itemref.Ref[ast.RuledefDirective]{},
		global:   newMap(),
		perName:  map[string]*Map{},
	}

	for _, ref := range ruledefs.All() {
		rd := ruledefs.Get(ref)
		m.byName[rd.Name] = ref

		perName := newMap()
		for i := range rd.Rules {
			perName.insert(ref, i, &rd.Rules[i])
			if !rd.IsSub {
				m.global.insert(ref, i, &rd.Rules[i])
			}
		}
		m.perName[rd.Name] = perName
	}

	return m
}

// ParamValue is what one matched rule parameter resolved to: either a raw
// token window (to be parsed and evaluated as an expression by pkg/eval) or
// a nested Match, for parameters typed as a reference to another ruledef.
type ParamValue struct {
	Tokens []token.Token
	Sub    *Match
}

// Match is one way an instruction's tokens were successfully matched against
// a rule's pattern. Multiple Matches for the same instruction are possible;
// pkg/resolve is responsible for evaluating each and choosing among them.
type Match struct {
	Ruledef   itemref.Ref[ast.RuledefDirective]
	RuleIndex int
	Params    []ParamValue
}

// MatchInstruction returns every rule, across every top-level ruledef, whose
// pattern matches toks exactly (every token consumed).
func (m *Matcher) MatchInstruction(toks []token.Token) []Match {
	return m.matchAgainst(m.global, toks)
}

// MatchRuleset matches toks against the named ruledef's own rules, used to
// resolve a Ruleset-typed rule parameter.
func (m *Matcher) MatchRuleset(name string, toks []token.Token) []Match {
	sub, ok := m.perName[name]
	if !ok {
		return nil
	}
	return m.matchAgainst(sub, toks)
}

func (m *Matcher) matchAgainst(scope *Map, toks []token.Token) []Match {
	var out []Match
	for _, c := range scope.Candidates(toks) {
		rd := m.ruledefs.Get(c.Ruledef)
		rule := &rd.Rules[c.RuleIndex]
		if params, ok := m.tryMatch(toks, rule); ok {
			out = append(out, Match{Ruledef: c.Ruledef, RuleIndex: c.RuleIndex, Params: params})
		}
	}
	return out
}

// tryMatch walks rule.Pattern and toks in lockstep. Exact parts must match
// the token at the current position verbatim; a parameter part consumes
// tokens up to (but not including) the first token of the next Exact part,
// or every remaining token if it is the pattern's last part. A Ruleset
// parameter then recursively matches that consumed window in full.
func (m *Matcher) tryMatch(toks []token.Token, rule *ast.Rule) ([]ParamValue, bool) {
	params := make([]ParamValue, len(rule.Params))
	pos := 0

	for i, part := range rule.Pattern {
		switch part.Kind {
		case ast.PatternExact:
			if pos >= len(toks) || !exactMatches(part, toks[pos]) {
				return nil, false
			}
			pos++

		case ast.PatternParam:
			end := paramEnd(rule.Pattern, i, toks, pos)
			if end < pos {
				return nil, false
			}
			window := toks[pos:end]
			param := rule.Params[part.ParamIndex]
			if param.Type == ast.ParamRuleset {
				subMatches := m.MatchRuleset(param.Ruleset, window)
				if len(subMatches) == 0 {
					return nil, false
				}
				sub := subMatches[0]
				params[part.ParamIndex] = ParamValue{Tokens: window, Sub: &sub}
			} else {
				if len(window) == 0 {
					return nil, false
				}
				params[part.ParamIndex] = ParamValue{Tokens: window}
			}
			pos = end
		}
	}

	if pos != len(toks) {
		return nil, false
	}
	return params, true
}

// paramEnd finds the boundary a parameter at pattern[idx] consumes up to:
// len(toks) if idx is the pattern's last part; exactly one token if the
// next part is also a parameter (no separator exists to bound it);
// otherwise the position of the next Exact part's first token (scanning
// forward from pos), or len(toks) if no such token follows.
func paramEnd(pattern []ast.PatternPart, idx int, toks []token.Token, pos int) int {
	if idx+1 >= len(pattern) {
		return len(toks)
	}
	next := pattern[idx+1]
	if next.Kind != ast.PatternExact {
		if pos < len(toks) {
			return pos + 1
		}
		return pos
	}
	for i := pos; i < len(toks); i++ {
		if exactMatches(next, toks[i]) {
			return i
		}
	}
	return len(toks)
}

func exactMatches(part ast.PatternPart, tk token.Token) bool {
	return tk.Kind == part.ExactKind && tk.Excerpt == part.ExactText
}
