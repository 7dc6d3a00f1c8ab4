package odata

import (
	"sort"
	"strings"
	"time"
)

// ApplyQuery evaluates the query client-side over a decoded JSON array.
// It is used by static endpoints that enable filtering: filter, order, page,
// then project. Rows that are not JSON objects never match a filter and are
// returned unprojected.
func ApplyQuery(q *Query, rows []any) ([]any, error) {
	if q == nil {
		return rows, nil
	}

	out := rows
	if q.Filter != nil {
		filtered := make([]any, 0, len(out))
		for _, row := range out {
			obj, ok := row.(map[string]any)
			if !ok {
				continue
			}
			match, err := EvalFilter(q.Filter, obj)
			if err != nil {
				return nil, err
			}
			if match {
				filtered = append(filtered, row)
			}
		}
		out = filtered
	}

	if len(q.OrderBy) > 0 {
		sorted := make([]any, len(out))
		copy(sorted, out)
		sort.SliceStable(sorted, func(i, j int) bool {
			return lessByOrder(q.OrderBy, sorted[i], sorted[j])
		})
		out = sorted
	}

	if q.Skip > 0 {
		if q.Skip >= len(out) {
			out = nil
		} else {
			out = out[q.Skip:]
		}
	}
	if q.Top >= 0 && q.Top < len(out) {
		out = out[:q.Top]
	}

	if len(q.Select) > 0 {
		projected := make([]any, len(out))
		for i, row := range out {
			obj, ok := row.(map[string]any)
			if !ok {
				projected[i] = row
				continue
			}
			p := make(map[string]any, len(q.Select))
			for _, field := range q.Select {
				if v, present := obj[field]; present {
					p[field] = v
				}
			}
			projected[i] = p
		}
		out = projected
	}

	return out, nil
}

// EvalFilter evaluates a filter expression against one JSON object. Type
// mismatches are not errors: a comparison between incompatible values is
// simply false.
func EvalFilter(expr Expr, row map[string]any) (bool, error) {
	switch n := expr.(type) {
	case *LogicalExpr:
		left, err := EvalFilter(n.Left, row)
		if err != nil {
			return false, err
		}
		// Short-circuit.
		if n.Op == OpAnd && !left {
			return false, nil
		}
		if n.Op == OpOr && left {
			return true, nil
		}
		return EvalFilter(n.Right, row)

	case *NotExpr:
		v, err := EvalFilter(n.Expr, row)
		if err != nil {
			return false, err
		}
		return !v, nil

	case *BinaryExpr:
		left := resolveValue(n.Left, row)
		right := resolveValue(n.Right, row)
		return compareLoose(n.Op, left, right), nil

	default:
		return false, syntaxErr("$filter", -1, "expected a boolean expression")
	}
}

func resolveValue(e Expr, row map[string]any) any {
	switch n := e.(type) {
	case *FieldRef:
		return row[n.Name]
	case *Literal:
		return n.Value
	default:
		return nil
	}
}

func compareLoose(op BinaryOp, a, b any) bool {
	if a == nil || b == nil {
		switch op {
		case OpEq:
			return a == nil && b == nil
		case OpNe:
			return (a == nil) != (b == nil)
		default:
			return false
		}
	}

	cmp, ok := compareValues(a, b)
	if !ok {
		// Incomparable types: only ne holds.
		return op == OpNe
	}
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

// compareValues orders two JSON-ish values of compatible kinds.
func compareValues(a, b any) (int, bool) {
	if na, aok := asFloat(a); aok {
		if nb, bok := asFloat(b); bok {
			switch {
			case na < nb:
				return -1, true
			case na > nb:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	if ta, aok := asTime(a); aok {
		if tb, bok := asTime(b); bok {
			switch {
			case ta.Before(tb):
				return -1, true
			case ta.After(tb):
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	if sa, aok := a.(string); aok {
		if sb, bok := b.(string); bok {
			return strings.Compare(sa, sb), true
		}
		return 0, false
	}

	if ba, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ba == bb:
				return 0, true
			case bb:
				return -1, true
			default:
				return 1, true
			}
		}
		return 0, false
	}

	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// asTime accepts time.Time directly or an RFC 3339 string, so datetime
// literals compare against JSON string fields.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func lessByOrder(order []OrderItem, a, b any) bool {
	oa, aok := a.(map[string]any)
	ob, bok := b.(map[string]any)
	if !aok || !bok {
		return false
	}
	for _, item := range order {
		va, vb := oa[item.Field], ob[item.Field]
		if va == nil && vb == nil {
			continue
		}
		// nil sorts first ascending.
		if va == nil {
			return !item.Desc
		}
		if vb == nil {
			return item.Desc
		}
		cmp, ok := compareValues(va, vb)
		if !ok || cmp == 0 {
			continue
		}
		if item.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}
