package odata

import (
	"fmt"
	"strings"
)

// SelectSource describes the database object a query compiles against.
type SelectSource struct {
	Schema     string
	Object     string
	Columns    *ColumnMap // nil or empty → SELECT *
	PrimaryKey string     // alias used for stable ordering; "" when none
	Function   bool       // Object is a table-valued function
	Args       []FunctionArg
}

// FunctionArg is one positional argument of a table-valued function call.
// Default emits the literal DEFAULT instead of a bound parameter.
type FunctionArg struct {
	Default bool
	Value   any
}

// Expression precedence, loosest first. Used to decide parenthesisation
// when emitting SQL.
const (
	precNone = iota
	precOr
	precAnd
	precNot
	precCmp
)

var comparisonSQL = map[BinaryOp]string{
	OpEq: "=",
	OpNe: "<>",
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

// CompileSelect emits a parameterised SELECT for the given dialect. Every
// field referenced by the query must be a declared alias; violations return
// an UnknownFieldError. Values never appear inline in the SQL text.
func CompileSelect(d Dialect, src SelectSource, q *Query) (*Statement, error) {
	if q == nil {
		q = &Query{Top: -1}
	}
	c := &compiler{d: d, cols: src.Columns}

	projection, err := c.projection(q.Select)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(projection)
	sb.WriteString(" FROM ")
	sb.WriteString(c.from(src))

	if q.Filter != nil {
		where, err := c.compileExpr(q.Filter, precNone)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	orderBy, err := c.orderBy(q, src)
	if err != nil {
		return nil, err
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}

	if q.HasPaging() {
		sb.WriteString(" ")
		sb.WriteString(d.Paging(q.Skip, q.Top))
	}

	return &Statement{SQL: sb.String(), Params: c.params}, nil
}

// CompileFilter emits just the boolean SQL for a filter expression. Used by
// the mutation builders to share alias binding and parameter numbering.
func CompileFilter(d Dialect, cols *ColumnMap, expr Expr) (*Statement, error) {
	c := &compiler{d: d, cols: cols}
	sql, err := c.compileExpr(expr, precNone)
	if err != nil {
		return nil, err
	}
	return &Statement{SQL: sql, Params: c.params}, nil
}

type compiler struct {
	d      Dialect
	cols   *ColumnMap
	params []Param
}

// bind appends a parameter and returns its placeholder.
func (c *compiler) bind(v any) string {
	i := len(c.params)
	c.params = append(c.params, Param{Name: fmt.Sprintf("p%d", i), Value: v})
	return c.d.Placeholder(i)
}

func (c *compiler) projection(selected []string) (string, error) {
	if c.cols.Len() == 0 {
		if len(selected) > 0 {
			return "", &UnknownFieldError{Field: selected[0]}
		}
		return "*", nil
	}

	aliases := selected
	if len(aliases) == 0 {
		aliases = c.cols.Aliases()
	}

	parts := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		col, ok := c.cols.Column(alias)
		if !ok {
			return "", &UnknownFieldError{Field: alias}
		}
		if col == alias {
			parts = append(parts, c.d.QuoteIdent(col))
		} else {
			parts = append(parts, c.d.QuoteIdent(col)+" AS "+c.d.QuoteIdent(alias))
		}
	}
	return strings.Join(parts, ", "), nil
}

func (c *compiler) from(src SelectSource) string {
	name := c.d.QuoteIdent(src.Object)
	if src.Schema != "" {
		name = c.d.QuoteIdent(src.Schema) + "." + name
	}
	if !src.Function {
		return name
	}

	args := make([]string, 0, len(src.Args))
	for _, a := range src.Args {
		if a.Default {
			args = append(args, "DEFAULT")
			continue
		}
		args = append(args, c.bind(a.Value))
	}
	return name + "(" + strings.Join(args, ", ") + ")"
}

func (c *compiler) orderBy(q *Query, src SelectSource) (string, error) {
	if len(q.OrderBy) > 0 {
		parts := make([]string, 0, len(q.OrderBy))
		for _, item := range q.OrderBy {
			col, err := c.resolveField(item.Field)
			if err != nil {
				return "", err
			}
			s := c.d.QuoteIdent(col)
			if item.Desc {
				s += " DESC"
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), nil
	}

	// Stable paging: fall back to the primary key when the client did not
	// order explicitly.
	if src.PrimaryKey != "" {
		if col, ok := c.cols.Column(src.PrimaryKey); ok {
			return c.d.QuoteIdent(col), nil
		}
		return c.d.QuoteIdent(src.PrimaryKey), nil
	}

	if q.HasPaging() && c.d.PagingRequiresOrder() {
		return "(SELECT NULL)", nil
	}
	return "", nil
}

func (c *compiler) resolveField(name string) (string, error) {
	col, ok := c.cols.Column(name)
	if !ok {
		return "", &UnknownFieldError{Field: name}
	}
	return col, nil
}

func (c *compiler) compileExpr(e Expr, ctx int) (string, error) {
	switch n := e.(type) {
	case *LogicalExpr:
		prec := precOr
		op := "OR"
		if n.Op == OpAnd {
			prec = precAnd
			op = "AND"
		}
		left, err := c.compileExpr(n.Left, prec)
		if err != nil {
			return "", err
		}
		right, err := c.compileExpr(n.Right, prec)
		if err != nil {
			return "", err
		}
		s := left + " " + op + " " + right
		if prec < ctx {
			s = "(" + s + ")"
		}
		return s, nil

	case *NotExpr:
		inner, err := c.compileExpr(n.Expr, precNone)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil

	case *BinaryExpr:
		return c.compileComparison(n)

	default:
		return "", syntaxErr("$filter", -1, "expected a boolean expression")
	}
}

func (c *compiler) compileComparison(b *BinaryExpr) (string, error) {
	// null only combines with eq/ne and becomes IS [NOT] NULL.
	if isNullLiteral(b.Left) || isNullLiteral(b.Right) {
		operand := b.Left
		if isNullLiteral(operand) {
			operand = b.Right
		}
		sql, err := c.operand(operand)
		if err != nil {
			return "", err
		}
		switch b.Op {
		case OpEq:
			return sql + " IS NULL", nil
		case OpNe:
			return sql + " IS NOT NULL", nil
		default:
			return "", syntaxErr("$filter", -1, "null literal only valid with eq or ne")
		}
	}

	left, err := c.operand(b.Left)
	if err != nil {
		return "", err
	}
	right, err := c.operand(b.Right)
	if err != nil {
		return "", err
	}
	return left + " " + comparisonSQL[b.Op] + " " + right, nil
}

func (c *compiler) operand(e Expr) (string, error) {
	switch n := e.(type) {
	case *FieldRef:
		col, err := c.resolveField(n.Name)
		if err != nil {
			return "", err
		}
		return c.d.QuoteIdent(col), nil
	case *Literal:
		return c.bind(n.Value), nil
	default:
		return "", syntaxErr("$filter", -1, "expected a field or literal operand")
	}
}

func isNullLiteral(e Expr) bool {
	lit, ok := e.(*Literal)
	return ok && lit.IsNull()
}
