package odata

import "time"

// MaxTop is the hard cap applied to $top regardless of what the client asks for.
const MaxTop = 1000

// Query holds the parsed OData system options of one request.
type Query struct {
	Select  []string
	Filter  Expr // nil when $filter is absent
	OrderBy []OrderItem
	Top     int // -1 when $top is absent
	Skip    int // 0 when $skip is absent
}

// HasPaging reports whether the query requests an OFFSET/LIMIT window.
func (q *Query) HasPaging() bool {
	return q.Top >= 0 || q.Skip > 0
}

// OrderItem is one `field [asc|desc]` entry of $orderby.
type OrderItem struct {
	Field string
	Desc  bool
}

// Expr is a node of the parsed $filter expression tree.
type Expr interface {
	exprNode()
}

// BinaryOp is a comparison operator (eq, ne, lt, le, gt, ge).
type BinaryOp string

const (
	OpEq BinaryOp = "eq"
	OpNe BinaryOp = "ne"
	OpLt BinaryOp = "lt"
	OpLe BinaryOp = "le"
	OpGt BinaryOp = "gt"
	OpGe BinaryOp = "ge"
)

// LogicalOp joins two boolean expressions.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
)

// BinaryExpr is a comparison between two operands.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// LogicalExpr combines two boolean expressions with and/or.
type LogicalExpr struct {
	Op    LogicalOp
	Left  Expr
	Right Expr
}

// NotExpr negates a boolean expression.
type NotExpr struct {
	Expr Expr
}

// FieldRef references a column alias.
type FieldRef struct {
	Name string
}

// LiteralKind discriminates literal values.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralBool
	LiteralNull
	LiteralDateTime
	LiteralGUID
)

// Literal is a constant operand. Value holds string, int64, float64, bool,
// time.Time, or nil depending on Kind.
type Literal struct {
	Kind  LiteralKind
	Value any
}

func (*BinaryExpr) exprNode()  {}
func (*LogicalExpr) exprNode() {}
func (*NotExpr) exprNode()     {}
func (*FieldRef) exprNode()    {}
func (*Literal) exprNode()     {}

// IsNull reports whether the expression is the null literal.
func (l *Literal) IsNull() bool {
	return l.Kind == LiteralNull
}

// Time returns the literal as time.Time; the second return is false when the
// literal is not a datetime.
func (l *Literal) Time() (time.Time, bool) {
	t, ok := l.Value.(time.Time)
	return t, ok
}
