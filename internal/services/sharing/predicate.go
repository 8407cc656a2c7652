package sharing

import (
	"reflect"
	"strings"

	"github.com/opencrm/rowshare/internal/entities"
)

// CombineMode selects how Combine joins a list of expressions
type CombineMode int

const (
	CombineOr CombineMode = iota
	CombineAnd
)

// ValidatePredicate performs the structural checks on a predicate: the field
// must name a scalar attribute (no relationship traversal), the operator must
// be known, and the value's shape must fit the operator. The administration
// surface calls this at rule authoring time; ToFilter calls it again at
// evaluation time so a persisted rule that has gone stale is detected too.
// All failures are *InvalidPredicateError.
func ValidatePredicate(p *entities.Predicate) error {
	if p == nil {
		return &InvalidPredicateError{Reason: "predicate is missing"}
	}
	if p.Field == "" {
		return &InvalidPredicateError{Operator: string(p.Operator), Reason: "field is required"}
	}
	if strings.Contains(p.Field, ".") || strings.Contains(p.Field, "__") {
		return &InvalidPredicateError{Field: p.Field, Operator: string(p.Operator), Reason: "field must reference a scalar attribute, not a relationship path"}
	}
	if !p.Operator.Known() {
		return &InvalidPredicateError{Field: p.Field, Operator: string(p.Operator), Reason: "unrecognized operator"}
	}
	if p.Value == nil {
		return &InvalidPredicateError{Field: p.Field, Operator: string(p.Operator), Reason: "value is required"}
	}
	isList := isListValue(p.Value)
	if p.Operator.RequiresList() && !isList {
		return &InvalidPredicateError{Field: p.Field, Operator: string(p.Operator), Reason: "operator requires a list value"}
	}
	if !p.Operator.RequiresList() && isList {
		return &InvalidPredicateError{Field: p.Field, Operator: string(p.Operator), Reason: "operator requires a scalar value"}
	}
	switch p.Operator {
	case entities.OpContains, entities.OpIContains:
		if _, ok := p.Value.(string); !ok {
			return &InvalidPredicateError{Field: p.Field, Operator: string(p.Operator), Reason: "operator requires a string value"}
		}
	case entities.OpGt, entities.OpGte, entities.OpLt, entities.OpLte:
		if _, isNum := toFloat(p.Value); !isNum {
			if _, isStr := p.Value.(string); !isStr {
				return &InvalidPredicateError{Field: p.Field, Operator: string(p.Operator), Reason: "operator requires a numeric or string value"}
			}
		}
	}
	return nil
}

// ToFilter compiles a predicate into the filter algebra. It is deterministic
// and side-effect-free. Negating operators compile to the negation of the
// whole positive sub-expression (ne = Not(Eq), nin = Not(In)) so that a
// multi-value nin excludes every listed value.
func ToFilter(p *entities.Predicate) (Expr, error) {
	if err := ValidatePredicate(p); err != nil {
		return nil, err
	}
	switch p.Operator {
	case entities.OpEq:
		return &EqExpr{Field: p.Field, Value: p.Value}, nil
	case entities.OpNe:
		return &NotExpr{Expr: &EqExpr{Field: p.Field, Value: p.Value}}, nil
	case entities.OpIn:
		return &InExpr{Field: p.Field, Values: listValues(p.Value)}, nil
	case entities.OpNin:
		return &NotExpr{Expr: &InExpr{Field: p.Field, Values: listValues(p.Value)}}, nil
	case entities.OpContains:
		return &ContainsExpr{Field: p.Field, Substr: p.Value.(string)}, nil
	case entities.OpIContains:
		return &ContainsExpr{Field: p.Field, Substr: p.Value.(string), Fold: true}, nil
	case entities.OpGt:
		return &CmpExpr{Field: p.Field, Op: CmpGt, Value: p.Value}, nil
	case entities.OpGte:
		return &CmpExpr{Field: p.Field, Op: CmpGte, Value: p.Value}, nil
	case entities.OpLt:
		return &CmpExpr{Field: p.Field, Op: CmpLt, Value: p.Value}, nil
	case entities.OpLte:
		return &CmpExpr{Field: p.Field, Op: CmpLte, Value: p.Value}, nil
	}
	return nil, &InvalidPredicateError{Field: p.Field, Operator: string(p.Operator), Reason: "unrecognized operator"}
}

// Evaluate tests a single record against a predicate. It compiles through
// ToFilter and matches in memory, so for every predicate p and record r,
// Evaluate(p, r) agrees with r matching ToFilter(p) by construction.
func Evaluate(p *entities.Predicate, r *entities.Record) (bool, error) {
	expr, err := ToFilter(p)
	if err != nil {
		return false, err
	}
	return expr.Matches(r), nil
}

// Combine joins expressions with OR or AND using the classical identity
// elements: the empty OR matches nothing (no true disjunct exists), the empty
// AND matches everything (vacuous conjunction). The enforcer relies on the
// empty-OR case for tenants with no active rules and users with no shares.
func Combine(exprs []Expr, mode CombineMode) Expr {
	if mode == CombineAnd {
		return &AndExpr{Exprs: exprs}
	}
	return &OrExpr{Exprs: exprs}
}

func isListValue(v interface{}) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

func listValues(v interface{}) []interface{} {
	if vs, ok := v.([]interface{}); ok {
		return vs
	}
	rv := reflect.ValueOf(v)
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
