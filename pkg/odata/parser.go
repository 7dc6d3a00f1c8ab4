package odata

import (
	"net/url"
	"strconv"
	"strings"
)

// ParseQuery extracts and parses the OData system options from a query
// string. $top is capped at MaxTop; negative $top or $skip is rejected.
func ParseQuery(values url.Values) (*Query, error) {
	q := &Query{Top: -1}

	if v := values.Get("$select"); v != "" {
		sel, err := ParseSelect(v)
		if err != nil {
			return nil, err
		}
		q.Select = sel
	}

	if v := values.Get("$filter"); v != "" {
		expr, err := ParseFilter(v)
		if err != nil {
			return nil, err
		}
		q.Filter = expr
	}

	if v := values.Get("$orderby"); v != "" {
		items, err := ParseOrderBy(v)
		if err != nil {
			return nil, err
		}
		q.OrderBy = items
	}

	if v := values.Get("$top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, syntaxErr("$top", -1, "must be a non-negative integer, got %q", v)
		}
		if n > MaxTop {
			n = MaxTop
		}
		q.Top = n
	}

	if v := values.Get("$skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, syntaxErr("$skip", -1, "must be a non-negative integer, got %q", v)
		}
		q.Skip = n
	}

	return q, nil
}

// ParseSelect parses the $select option: a comma-separated list of aliases.
func ParseSelect(input string) ([]string, error) {
	var fields []string
	for _, part := range strings.Split(input, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, syntaxErr("$select", -1, "empty field in list")
		}
		if !isIdentifier(name) {
			return nil, syntaxErr("$select", -1, "invalid field name %q", name)
		}
		fields = append(fields, name)
	}
	return fields, nil
}

// ParseOrderBy parses the $orderby option: `field [asc|desc]` entries.
func ParseOrderBy(input string) ([]OrderItem, error) {
	var items []OrderItem
	for _, part := range strings.Split(input, ",") {
		words := strings.Fields(part)
		switch len(words) {
		case 1:
			if !isIdentifier(words[0]) {
				return nil, syntaxErr("$orderby", -1, "invalid field name %q", words[0])
			}
			items = append(items, OrderItem{Field: words[0]})
		case 2:
			if !isIdentifier(words[0]) {
				return nil, syntaxErr("$orderby", -1, "invalid field name %q", words[0])
			}
			switch strings.ToLower(words[1]) {
			case "asc":
				items = append(items, OrderItem{Field: words[0]})
			case "desc":
				items = append(items, OrderItem{Field: words[0], Desc: true})
			default:
				return nil, syntaxErr("$orderby", -1, "direction must be asc or desc, got %q", words[1])
			}
		default:
			return nil, syntaxErr("$orderby", -1, "malformed entry %q", strings.TrimSpace(part))
		}
	}
	return items, nil
}

// ParseFilter parses the $filter option into an expression tree.
func ParseFilter(input string) (Expr, error) {
	toks, err := lex("$filter", input)
	if err != nil {
		return nil, err
	}
	p := &parser{option: "$filter", toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, syntaxErr(p.option, tok.pos, "unexpected trailing input")
	}
	return expr, nil
}

type parser struct {
	option string
	toks   []token
	pos    int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// keyword reports whether the current token is the given keyword, matched
// case-insensitively, and consumes it if so.
func (p *parser) keyword(kw string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.keyword("not") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.next(); tok.kind != tokRParen {
			return nil, syntaxErr(p.option, tok.pos, "expected closing parenthesis")
		}
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	op, ok := p.comparisonOp()
	if !ok {
		tok := p.peek()
		return nil, syntaxErr(p.option, tok.pos, "expected comparison operator (eq, ne, lt, le, gt, ge)")
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	return &BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func (p *parser) comparisonOp() (BinaryOp, bool) {
	t := p.peek()
	if t.kind != tokIdent {
		return "", false
	}
	switch strings.ToLower(t.text) {
	case "eq", "ne", "lt", "le", "gt", "ge":
		p.pos++
		return BinaryOp(strings.ToLower(t.text)), true
	}
	return "", false
}

func (p *parser) parseOperand() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return &Literal{Kind: LiteralString, Value: t.text}, nil
	case tokNumber:
		if t.flt {
			return &Literal{Kind: LiteralNumber, Value: t.num}, nil
		}
		return &Literal{Kind: LiteralNumber, Value: t.i64}, nil
	case tokDateTime:
		return &Literal{Kind: LiteralDateTime, Value: t.t}, nil
	case tokGUID:
		return &Literal{Kind: LiteralGUID, Value: t.text}, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "null":
			return &Literal{Kind: LiteralNull, Value: nil}, nil
		case "true":
			return &Literal{Kind: LiteralBool, Value: true}, nil
		case "false":
			return &Literal{Kind: LiteralBool, Value: false}, nil
		}
		return &FieldRef{Name: t.text}, nil
	default:
		return nil, syntaxErr(p.option, t.pos, "expected a field or literal")
	}
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}
