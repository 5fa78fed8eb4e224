package condition

import (
	"strconv"
	"strings"
	"unicode"
)

// Parse converts a predicate string into an Expr. AND/OR associate
// left-to-right without precedence; parentheses group explicitly.
func Parse(input string) (Expr, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &ConditionError{Input: input, Message: "empty predicate"}
	}
	p := &parser{input: input, tokens: tokens}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, &ConditionError{Input: input, Message: "unexpected trailing input near " + strconv.Quote(p.peek().text)}
	}
	return expr, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokSymbol // = != > >= < <= ( ) [ ] ,
	tokKeyword
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			var sb strings.Builder
			for j < len(runes) && runes[j] != quote {
				sb.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, &ConditionError{Input: input, Message: "unterminated string literal"}
			}
			tokens = append(tokens, token{tokString, sb.String()})
			i = j + 1
		case r == '(' || r == ')' || r == '[' || r == ']' || r == ',':
			tokens = append(tokens, token{tokSymbol, string(r)})
			i++
		case r == '=':
			tokens = append(tokens, token{tokSymbol, "="})
			i++
		case r == '!' && i+1 < len(runes) && runes[i+1] == '=':
			tokens = append(tokens, token{tokSymbol, "!="})
			i += 2
		case r == '>' || r == '<':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{tokSymbol, string(r) + "="})
				i += 2
			} else {
				tokens = append(tokens, token{tokSymbol, string(r)})
				i++
			}
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}
			word := string(runes[i:j])
			if isKeyword(word) {
				tokens = append(tokens, token{tokKeyword, strings.ToUpper(word)})
			} else {
				tokens = append(tokens, token{tokIdent, word})
			}
			i = j
		default:
			return nil, &ConditionError{Input: input, Message: "unexpected character " + strconv.Quote(string(r))}
		}
	}
	return tokens, nil
}

func isKeyword(word string) bool {
	switch strings.ToUpper(word) {
	case "AND", "OR", "IN", "NOT", "CONTAINS", "STARTS_WITH", "ENDS_WITH", "TRUE", "FALSE":
		return true
	}
	return false
}

type parser struct {
	input  string
	tokens []token
	pos    int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.done() {
		return token{tokSymbol, ""}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) errf(message string) error {
	return &ConditionError{Input: p.input, Message: message}
}

// parseExpr handles the AND/OR chain, folding left-to-right.
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for !p.done() {
		t := p.peek()
		if t.kind != tokKeyword || (t.text != "AND" && t.text != "OR") {
			break
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: LogicOp(t.text), Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	if p.peek().kind == tokSymbol && p.peek().text == "(" {
		p.next()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.text != ")" {
			return nil, p.errf("missing closing parenthesis")
		}
		return expr, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	field := p.next()
	if field.kind != tokIdent {
		return nil, p.errf("expected attribute name, got " + strconv.Quote(field.text))
	}

	op := p.next()
	switch {
	case op.kind == tokSymbol && isCompareSymbol(op.text):
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Comparison{Field: field.text, Op: CompareOp(op.text), Value: value}, nil

	case op.kind == tokKeyword && (op.text == "CONTAINS" || op.text == "STARTS_WITH" || op.text == "ENDS_WITH"):
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Comparison{Field: field.text, Op: CompareOp(op.text), Value: value}, nil

	case op.kind == tokKeyword && op.text == "IN":
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &Comparison{Field: field.text, Op: OpIn, List: list}, nil

	case op.kind == tokKeyword && op.text == "NOT":
		if t := p.next(); t.kind != tokKeyword || t.text != "IN" {
			return nil, p.errf("expected IN after NOT")
		}
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &Comparison{Field: field.text, Op: OpNotIn, List: list}, nil
	}
	return nil, p.errf("expected comparison operator after " + strconv.Quote(field.text))
}

func isCompareSymbol(s string) bool {
	switch s {
	case "=", "!=", ">", ">=", "<", "<=":
		return true
	}
	return false
}

func (p *parser) parseLiteral() (any, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errf("invalid number " + strconv.Quote(t.text))
		}
		return f, nil
	case tokKeyword:
		switch t.text {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
	case tokIdent:
		// Bare words are treated as string literals: `entity_type = PERSON`.
		return t.text, nil
	}
	return nil, p.errf("expected literal value, got " + strconv.Quote(t.text))
}

func (p *parser) parseList() ([]any, error) {
	open := p.next()
	if open.kind != tokSymbol || (open.text != "[" && open.text != "(") {
		return nil, p.errf("expected list after IN")
	}
	closing := "]"
	if open.text == "(" {
		closing = ")"
	}
	var list []any
	for {
		if p.peek().kind == tokSymbol && p.peek().text == closing {
			p.next()
			return list, nil
		}
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		list = append(list, value)
		if p.peek().kind == tokSymbol && p.peek().text == "," {
			p.next()
		}
	}
}
