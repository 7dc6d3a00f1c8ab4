package odata

import (
	"strconv"
	"strings"
	"time"
)

// FormatFilter renders an expression tree back to $filter text. rename maps
// field names on the way out and may be nil. The output round-trips through
// ParseFilter.
func FormatFilter(expr Expr, rename func(string) string) string {
	if rename == nil {
		rename = func(s string) string { return s }
	}
	var sb strings.Builder
	writeExpr(&sb, expr, rename, 0)
	return sb.String()
}

// FormatOrderBy renders $orderby items, applying rename to each field.
func FormatOrderBy(items []OrderItem, rename func(string) string) string {
	if rename == nil {
		rename = func(s string) string { return s }
	}
	parts := make([]string, len(items))
	for i, item := range items {
		if item.Desc {
			parts[i] = rename(item.Field) + " desc"
		} else {
			parts[i] = rename(item.Field)
		}
	}
	return strings.Join(parts, ",")
}

func writeExpr(sb *strings.Builder, expr Expr, rename func(string) string, parent int) {
	switch n := expr.(type) {
	case *LogicalExpr:
		prec := precOr
		if n.Op == OpAnd {
			prec = precAnd
		}
		if prec < parent {
			sb.WriteByte('(')
		}
		writeExpr(sb, n.Left, rename, prec)
		sb.WriteByte(' ')
		sb.WriteString(string(n.Op))
		sb.WriteByte(' ')
		writeExpr(sb, n.Right, rename, prec+1)
		if prec < parent {
			sb.WriteByte(')')
		}

	case *NotExpr:
		sb.WriteString("not ")
		writeExpr(sb, n.Expr, rename, precNot)

	case *BinaryExpr:
		writeOperand(sb, n.Left, rename)
		sb.WriteByte(' ')
		sb.WriteString(string(n.Op))
		sb.WriteByte(' ')
		writeOperand(sb, n.Right, rename)
	}
}

func writeOperand(sb *strings.Builder, expr Expr, rename func(string) string) {
	switch n := expr.(type) {
	case *FieldRef:
		sb.WriteString(rename(n.Name))
	case *Literal:
		sb.WriteString(formatLiteral(n))
	}
}

func formatLiteral(l *Literal) string {
	switch l.Kind {
	case LiteralString:
		s, _ := l.Value.(string)
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	case LiteralNumber:
		switch v := l.Value.(type) {
		case int64:
			return strconv.FormatInt(v, 10)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	case LiteralBool:
		if b, _ := l.Value.(bool); b {
			return "true"
		}
		return "false"
	case LiteralNull:
		return "null"
	case LiteralDateTime:
		if t, ok := l.Value.(time.Time); ok {
			return "datetime'" + t.Format(time.RFC3339) + "'"
		}
	case LiteralGUID:
		s, _ := l.Value.(string)
		return "guid'" + s + "'"
	}
	return ""
}
