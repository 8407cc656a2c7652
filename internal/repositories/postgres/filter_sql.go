package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

// CompileFilter compiles a filter expression into a parameterized SQL
// fragment over the records table (id TEXT, attributes JSONB). Parameter
// numbering starts at startIndex so the fragment can be appended to a query
// that already binds arguments.
//
// The compilation mirrors the in-memory Matches semantics exactly:
//   - attribute comparisons are guarded by jsonb_typeof, so a field holding a
//     value of the wrong type (or missing entirely) never matches, instead of
//     raising a cast error;
//   - negation compiles to NOT COALESCE(inner, FALSE), mapping SQL NULL
//     ("the field was absent") to "the inner comparison did not match", which
//     makes negated comparisons include records without the field.
func CompileFilter(expr sharing.Expr, startIndex int) (string, []interface{}, error) {
	b := &filterBuilder{next: startIndex}
	clause, err := b.compile(expr)
	if err != nil {
		return "", nil, err
	}
	return clause, b.args, nil
}

type filterBuilder struct {
	args []interface{}
	next int
}

func (b *filterBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	placeholder := fmt.Sprintf("$%d", b.next)
	b.next++
	return placeholder
}

func (b *filterBuilder) compile(expr sharing.Expr) (string, error) {
	switch e := expr.(type) {
	case *sharing.EqExpr:
		return b.compileEq(e.Field, e.Value)
	case *sharing.InExpr:
		return b.compileIn(e)
	case *sharing.CmpExpr:
		return b.compileCmp(e)
	case *sharing.ContainsExpr:
		return b.compileContains(e)
	case *sharing.NotExpr:
		inner, err := b.compile(e.Expr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT COALESCE(%s, FALSE)", inner), nil
	case *sharing.OrExpr:
		return b.compileList(e.Exprs, "OR", "FALSE")
	case *sharing.AndExpr:
		return b.compileList(e.Exprs, "AND", "TRUE")
	}
	return "", fmt.Errorf("unsupported filter expression: %T", expr)
}

func (b *filterBuilder) compileEq(field string, value interface{}) (string, error) {
	if field == "id" {
		return fmt.Sprintf("id = %s", b.arg(fmt.Sprintf("%v", value))), nil
	}
	key := b.arg(field)
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("(jsonb_typeof(attributes -> %s) = 'string' AND attributes ->> %s = %s)", key, key, b.arg(v)), nil
	case bool:
		return fmt.Sprintf("(jsonb_typeof(attributes -> %s) = 'boolean' AND (attributes ->> %s)::boolean = %s)", key, key, b.arg(v)), nil
	default:
		if n, ok := toSQLNumber(value); ok {
			return fmt.Sprintf("(jsonb_typeof(attributes -> %s) = 'number' AND (attributes ->> %s)::numeric = %s)", key, key, b.arg(n)), nil
		}
	}
	return "", fmt.Errorf("cannot compile equality against %T value", value)
}

func (b *filterBuilder) compileIn(e *sharing.InExpr) (string, error) {
	if len(e.Values) == 0 {
		return "FALSE", nil
	}
	if e.Field == "id" {
		ids := make([]string, len(e.Values))
		for i, v := range e.Values {
			ids[i] = fmt.Sprintf("%v", v)
		}
		return fmt.Sprintf("id = ANY(%s)", b.arg(pq.Array(ids))), nil
	}
	clauses := make([]string, 0, len(e.Values))
	for _, v := range e.Values {
		clause, err := b.compileEq(e.Field, v)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return "(" + strings.Join(clauses, " OR ") + ")", nil
}

func (b *filterBuilder) compileCmp(e *sharing.CmpExpr) (string, error) {
	op, err := cmpOperator(e.Op)
	if err != nil {
		return "", err
	}
	if e.Field == "id" {
		return fmt.Sprintf("id %s %s", op, b.arg(fmt.Sprintf("%v", e.Value))), nil
	}
	key := b.arg(e.Field)
	if s, ok := e.Value.(string); ok {
		return fmt.Sprintf("(jsonb_typeof(attributes -> %s) = 'string' AND attributes ->> %s %s %s)", key, key, op, b.arg(s)), nil
	}
	if n, ok := toSQLNumber(e.Value); ok {
		return fmt.Sprintf("(jsonb_typeof(attributes -> %s) = 'number' AND (attributes ->> %s)::numeric %s %s)", key, key, op, b.arg(n)), nil
	}
	return "", fmt.Errorf("cannot compile comparison against %T value", e.Value)
}

func (b *filterBuilder) compileContains(e *sharing.ContainsExpr) (string, error) {
	like := "LIKE"
	if e.Fold {
		like = "ILIKE"
	}
	key := b.arg(e.Field)
	pattern := b.arg("%" + escapeLike(e.Substr) + "%")
	return fmt.Sprintf("(jsonb_typeof(attributes -> %s) = 'string' AND attributes ->> %s %s %s)", key, key, like, pattern), nil
}

func (b *filterBuilder) compileList(exprs []sharing.Expr, junction string, empty string) (string, error) {
	if len(exprs) == 0 {
		return empty, nil
	}
	clauses := make([]string, 0, len(exprs))
	for _, sub := range exprs {
		clause, err := b.compile(sub)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return "(" + strings.Join(clauses, " "+junction+" ") + ")", nil
}

func cmpOperator(op sharing.CmpOp) (string, error) {
	switch op {
	case sharing.CmpGt, sharing.CmpGte, sharing.CmpLt, sharing.CmpLte:
		return string(op), nil
	}
	return "", fmt.Errorf("unsupported comparison operator: %q", string(op))
}

func toSQLNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// escapeLike escapes LIKE metacharacters so the substring matches literally
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
