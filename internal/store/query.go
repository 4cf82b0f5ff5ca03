package store

import (
	"fmt"
	"strings"
)

// Cond is a single predicate on a column.
type Cond struct {
	Col string
	Op  string // "=", "!=", "<", "<=", ">", ">=", "IN", "IS NULL", "IS NOT NULL"
	Val any    // nil for the IS NULL forms; []any for IN
}

// Eq builds an equality predicate.
func Eq(col string, val any) Cond { return Cond{Col: col, Op: "=", Val: val} }

// Neq builds an inequality predicate.
func Neq(col string, val any) Cond { return Cond{Col: col, Op: "!=", Val: val} }

// Gt builds a greater-than predicate.
func Gt(col string, val any) Cond { return Cond{Col: col, Op: ">", Val: val} }

// In builds a membership predicate.
func In(col string, vals ...any) Cond { return Cond{Col: col, Op: "IN", Val: vals} }

// IsNull matches rows where col is NULL.
func IsNull(col string) Cond { return Cond{Col: col, Op: "IS NULL"} }

// NotNull matches rows where col is not NULL.
func NotNull(col string) Cond { return Cond{Col: col, Op: "IS NOT NULL"} }

// Query describes a predicate query: conditions are ANDed, results are
// optionally sorted and paginated. Records marked deleted are excluded
// unless IncludeDeleted is set.
type Query struct {
	Conds          []Cond
	OrderBy        string
	Desc           bool
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// Where is shorthand for Query{Conds: conds}.
func Where(conds ...Cond) Query { return Query{Conds: conds} }

func buildWhere(cols []string, conds []Cond, includeDeleted bool) (string, []any, error) {
	var parts []string
	var args []any
	for _, c := range conds {
		if err := checkColumn(cols, c.Col); err != nil {
			return "", nil, err
		}
		switch c.Op {
		case "=", "!=", "<", "<=", ">", ">=":
			parts = append(parts, fmt.Sprintf("%s %s ?", c.Col, c.Op))
			args = append(args, c.Val)
		case "IN":
			vals, ok := c.Val.([]any)
			if !ok || len(vals) == 0 {
				// An empty IN matches nothing.
				parts = append(parts, "1 = 0")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)",
				c.Col, strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")))
			args = append(args, vals...)
		case "IS NULL", "IS NOT NULL":
			parts = append(parts, fmt.Sprintf("%s %s", c.Col, c.Op))
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	// Bookkeeping tables (sync_state) carry no sync metadata and are
	// never filtered.
	if !includeDeleted && checkColumn(cols, "sync_status") == nil {
		parts = append(parts, "sync_status != 'deleted'")
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
