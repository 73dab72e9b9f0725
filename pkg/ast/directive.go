package ast

import (
	"fmt"

	"github.com/casmlang/casm/pkg/fsrv"
	"github.com/casmlang/casm/pkg/token"
)

// knownBankdefFields is the set of `#bankdef` field names the parser
// recognizes; anything else is an "unknown field" error.
var knownBankdefFields = map[string]bool{
	"bits": true, "addr": true, "addr_end": true, "size": true,
	"labelalign": true, "outp": true, "fill": true,
}

// parseDirective dispatches on the identifier following `#`.
func (fp *fileParser) parseDirective() ([]Node, error) {
	hash := fp.advance() // '#'
	nameTk, err := fp.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	header := hash.Span.Join(nameTk.Span)

	switch nameTk.Excerpt {
	case "bank":
		return fp.parseBankDirective(header)
	case "bankdef":
		return fp.parseBankdefDirective(header)
	case "ruledef":
		return fp.parseRuledefDirective(header, false)
	case "subruledef":
		return fp.parseRuledefDirective(header, true)
	case "fn":
		return fp.parseFnDirective(header)
	case "const":
		return fp.parseConstDirective(header)
	case "if":
		return fp.parseIfDirective(header)
	case "include":
		return fp.parseIncludeDirective(header)
	case "once":
		fp.parser.markOnce(fp.filename)
		return nil, nil
	case "res":
		return fp.parseResDirective(header)
	case "align":
		return fp.parseAlignDirective(header)
	case "addr":
		return fp.parseAddrDirective(header)
	case "assert":
		return fp.parseAssertDirective(header)
	case "d":
		return fp.parseDataDirective(header, 0)
	default:
		if n, ok := parseDWidth(nameTk.Excerpt); ok {
			return fp.parseDataDirective(header, n)
		}
		fp.report().Error(nameTk.Span, "unknown directive `#%s`", nameTk.Excerpt)
		return nil, fmt.Errorf("unknown directive #%s at %s", nameTk.Excerpt, nameTk.Span)
	}
}

// parseDWidth recognizes `dN` (e.g. `d8`, `d16`) as the element-sized data
// directive spelling.
func parseDWidth(name string) (int, bool) {
	if len(name) < 2 || name[0] != 'd' {
		return 0, false
	}
	n := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func (fp *fileParser) parseBankDirective(header token.Span) ([]Node, error) {
	name, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	return []Node{&BankDirective{Span: header.Join(name.Span), Name: name}}, nil
}

func (fp *fileParser) parseBankdefDirective(header token.Span) ([]Node, error) {
	name, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := fp.expect(token.BraceOpen); err != nil {
		return nil, err
	}

	fields := map[string]Expr{}
	fieldSpans := map[string]token.Span{}
	fp.skipLineBreaks()
	for !fp.nextIs(0, token.BraceClose) {
		fname, fspan, err := fp.parseIdentName()
		if err != nil {
			return nil, err
		}
		if _, dup := fields[fname]; dup {
			fp.report().Error(fspan, "duplicate field `%s`", fname)
			return nil, fmt.Errorf("duplicate bankdef field %q", fname)
		}
		if !knownBankdefFields[fname] {
			fp.report().Error(fspan, "unknown bankdef field `%s`", fname)
			return nil, fmt.Errorf("unknown bankdef field %q", fname)
		}
		if _, err := fp.expect(token.Equal); err != nil {
			return nil, err
		}
		val, err := fp.parseExpr()
		if err != nil {
			return nil, err
		}
		fields[fname] = val
		fieldSpans[fname] = fspan.Join(val.Span)

		if _, ok := fp.maybeExpect(token.Comma); !ok {
			fp.skipLineBreaks()
		}
		fp.skipLineBreaks()
	}
	closeTk, err := fp.expect(token.BraceClose)
	if err != nil {
		return nil, err
	}

	if fields["size"].Kind != ExprInvalid && fields["addr_end"].Kind != ExprInvalid {
		fp.report().Error(header, "`size` and `addr_end` cannot both be specified")
		return nil, fmt.Errorf("conflicting bankdef fields at %s", header)
	}

	return []Node{&BankdefDirective{
		Span: header.Join(closeTk.Span), Name: name, Fields: fields, FieldSpans: fieldSpans,
	}}, nil
}

func (fp *fileParser) parseRuledefDirective(header token.Span, isSub bool) ([]Node, error) {
	name := ""
	isAnon := false
	if !fp.nextIs(0, token.BraceOpen) {
		tk, err := fp.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		name = tk.Excerpt
	} else if isSub {
		fp.report().Error(header, "`#subruledef` requires a name")
		return nil, fmt.Errorf("subruledef missing name at %s", header)
	} else {
		isAnon = true
	}

	if _, err := fp.expect(token.BraceOpen); err != nil {
		return nil, err
	}

	var rules []Rule
	fp.skipLineBreaks()
	for !fp.nextIs(0, token.BraceClose) {
		rule, err := fp.parseRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
		fp.skipLineBreaks()
	}
	closeTk, err := fp.expect(token.BraceClose)
	if err != nil {
		return nil, err
	}

	return []Node{&RuledefDirective{
		Span: header.Join(closeTk.Span), Name: name, IsAnonymous: isAnon, IsSub: isSub, Rules: rules,
	}}, nil
}

// parseRule parses one `pattern => production` pair. Pattern tokens are
// either exact allowed-pattern tokens or a `{name[: type]}` parameter block.
func (fp *fileParser) parseRule() (Rule, error) {
	var rule Rule
	start := fp.next(0).Span
	rule.Span = start

	for !fp.nextIs(0, token.HeavyArrow) {
		if fp.nextIs(0, token.End) || fp.nextIs(0, token.LineBreak) {
			fp.report().Error(fp.next(0).Span, "expected '=>' to end rule pattern")
			return Rule{}, fmt.Errorf("unterminated rule pattern")
		}

		if fp.nextIs(0, token.BraceOpen) {
			fp.advance()
			nameTk, err := fp.expect(token.Identifier)
			if err != nil {
				return Rule{}, err
			}
			param := RuleParam{Name: nameTk.Excerpt, Type: ParamUnspecified}
			if _, ok := fp.maybeExpect(token.Colon); ok {
				typeTk, err := fp.expect(token.Identifier)
				if err != nil {
					return Rule{}, err
				}
				if err := fillParamType(&param, typeTk.Excerpt); err != nil {
					fp.report().Error(typeTk.Span, "%s", err.Error())
					return Rule{}, err
				}
			}
			if _, err := fp.expect(token.BraceClose); err != nil {
				return Rule{}, err
			}
			rule.Params = append(rule.Params, param)
			rule.Pattern = append(rule.Pattern, PatternPart{Kind: PatternParam, ParamIndex: len(rule.Params) - 1})
			continue
		}

		tk := fp.advance()
		if !tk.Kind.IsAllowedPatternToken() {
			fp.report().Error(tk.Span, "invalid token in rule pattern")
			return Rule{}, fmt.Errorf("invalid rule pattern token at %s", tk.Span)
		}
		rule.Pattern = append(rule.Pattern, PatternPart{Kind: PatternExact, ExactText: tk.Excerpt, ExactKind: tk.Kind})
	}

	if len(rule.Pattern) == 0 {
		fp.report().Error(fp.next(0).Span, "expected pattern")
		return Rule{}, fmt.Errorf("empty rule pattern")
	}

	fp.advance() // '=>'
	prod, err := fp.parseExpr()
	if err != nil {
		return Rule{}, err
	}
	rule.Production = prod
	rule.Span = rule.Span.Join(prod.Span)
	return rule, nil
}

func fillParamType(p *RuleParam, typename string) error {
	if len(typename) >= 2 {
		first := typename[0]
		if first == 'u' || first == 's' || first == 'i' {
			size := 0
			ok := true
			for _, c := range typename[1:] {
				if c < '0' || c > '9' {
					ok = false
					break
				}
				size = size*10 + int(c-'0')
			}
			if ok {
				switch first {
				case 'u':
					p.Type = ParamUnsigned
				case 's':
					p.Type = ParamSigned
				case 'i':
					p.Type = ParamInteger
				}
				p.Size = size
				return nil
			}
		}
	}
	p.Type = ParamRuleset
	p.Ruleset = typename
	return nil
}

func (fp *fileParser) parseFnDirective(header token.Span) ([]Node, error) {
	nameTk, err := fp.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	if _, err := fp.expect(token.ParenOpen); err != nil {
		return nil, err
	}
	var params []string
	if !fp.nextIs(0, token.ParenClose) {
		for {
			p, _, err := fp.parseIdentName()
			if err != nil {
				return nil, err
			}
			params = append(params, p)
			if _, ok := fp.maybeExpect(token.Comma); !ok {
				break
			}
		}
	}
	if _, err := fp.expect(token.ParenClose); err != nil {
		return nil, err
	}
	if _, err := fp.expect(token.HeavyArrow); err != nil {
		return nil, err
	}
	body, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	return []Node{&FnDirective{
		Span: header.Join(body.Span), Name: nameTk.Excerpt, Params: params, Body: body,
	}}, nil
}

func (fp *fileParser) parseConstDirective(header token.Span) ([]Node, error) {
	noEmit := false
	if _, ok := fp.maybeExpect(token.ParenOpen); ok {
		attrTk, err := fp.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		if attrTk.Excerpt != "noemit" {
			fp.report().Error(attrTk.Span, "invalid attribute `%s`", attrTk.Excerpt)
			return nil, fmt.Errorf("invalid const attribute %q", attrTk.Excerpt)
		}
		noEmit = true
		if _, err := fp.expect(token.ParenClose); err != nil {
			return nil, err
		}
	}

	level := 0
	for fp.nextIs(0, token.Dot) {
		fp.advance()
		level++
	}
	nameTk, err := fp.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	if _, err := fp.expect(token.Equal); err != nil {
		return nil, err
	}
	val, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	fp.pushCtx(level, nameTk.Excerpt)
	decl := &ConstDecl{
		Span: header.Join(val.Span), Level: level, Name: nameTk.Excerpt,
		NoEmit: noEmit, Value: val, Ctx: fp.ctxSnapshot(),
	}
	return []Node{decl}, nil
}

func (fp *fileParser) parseIfDirective(header token.Span) ([]Node, error) {
	cond, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	trueArm, err := fp.parseBracedProgram()
	if err != nil {
		return nil, err
	}

	var falseArm Program
	if fp.nextIs(0, token.Hash) {
		if id := fp.next(1); id.Kind == token.Identifier && id.Excerpt == "else" {
			fp.advance()
			fp.advance()
			falseArm, err = fp.parseBracedProgram()
			if err != nil {
				return nil, err
			}
		} else if id.Kind == token.Identifier && id.Excerpt == "elif" {
			elifHash := fp.advance()
			elifName := fp.advance()
			elifHeader := elifHash.Span.Join(elifName.Span)
			nested, err := fp.parseIfDirective(elifHeader)
			if err != nil {
				return nil, err
			}
			falseArm = nested
		}
	}

	return []Node{&IfDirective{Span: header.Join(cond.Span), Cond: cond, TrueArm: trueArm, FalseArm: falseArm}}, nil
}

func (fp *fileParser) parseBracedProgram() (Program, error) {
	if _, err := fp.expect(token.BraceOpen); err != nil {
		return nil, err
	}
	var prog Program
	fp.skipLineBreaks()
	for !fp.nextIs(0, token.BraceClose) {
		nodes, err := fp.parseItem()
		if err != nil {
			fp.skipToLineBreak()
		}
		prog = append(prog, nodes...)
		fp.skipLineBreaks()
	}
	if _, err := fp.expect(token.BraceClose); err != nil {
		return nil, err
	}
	return prog, nil
}

func (fp *fileParser) parseIncludeDirective(header token.Span) ([]Node, error) {
	tk, err := fp.expect(token.String)
	if err != nil {
		return nil, err
	}
	path, err := joinIncludePath(fp, tk)
	if err != nil {
		return nil, err
	}
	return fp.parser.parseInclude(path, header)
}

func (fp *fileParser) parseResDirective(header token.Span) ([]Node, error) {
	count, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	return []Node{&ResDirective{Span: header.Join(count.Span), Count: count, Ctx: fp.ctxSnapshot()}}, nil
}

func (fp *fileParser) parseAlignDirective(header token.Span) ([]Node, error) {
	amt, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	return []Node{&AlignDirective{Span: header.Join(amt.Span), Amount: amt, Ctx: fp.ctxSnapshot()}}, nil
}

func (fp *fileParser) parseAddrDirective(header token.Span) ([]Node, error) {
	addr, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	return []Node{&AddrDirective{Span: header.Join(addr.Span), Address: addr, Ctx: fp.ctxSnapshot()}}, nil
}

func (fp *fileParser) parseAssertDirective(header token.Span) ([]Node, error) {
	cond, err := fp.parseExpr()
	if err != nil {
		return nil, err
	}
	return []Node{&AssertDirective{Span: header.Join(cond.Span), Cond: cond, Ctx: fp.ctxSnapshot()}}, nil
}

func (fp *fileParser) parseDataDirective(header token.Span, elemSize int) ([]Node, error) {
	var elems []Expr
	for {
		e, err := fp.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if _, ok := fp.maybeExpect(token.Comma); !ok {
			break
		}
	}
	sp := header
	if len(elems) > 0 {
		sp = header.Join(elems[len(elems)-1].Span)
	}
	return []Node{&DataDirective{Span: sp, ElemSize: elemSize, Elements: elems, Ctx: fp.ctxSnapshot()}}, nil
}

// joinIncludePath resolves a `#include "..."` string literal relative to the
// including file, rejecting attempts to escape the source tree root.
func joinIncludePath(fp *fileParser, tk token.Token) (string, error) {
	path, err := fsrv.Join(fp.filename, tk.Excerpt)
	if err != nil {
		fp.report().Error(tk.Span, "%s", err.Error())
		return "", err
	}
	return path, nil
}
