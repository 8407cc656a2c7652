package sharing

import (
	"reflect"
	"strings"

	"github.com/opencrm/rowshare/internal/entities"
)

// Expr is the closed filter algebra produced by the predicate evaluator and
// the enforcer. Every Expr can test a single in-memory record via Matches;
// store adapters compile the same tree into their native query language, so
// the two sides stay semantically aligned by sharing one representation.
//
// Null convention: a positive comparison (Eq, In, Cmp, Contains) never matches
// a record whose field is absent or nil. Not negates its whole inner
// expression, so negated comparisons do match records with the field absent.
type Expr interface {
	Matches(r *entities.Record) bool
	isExpr()
}

// EqExpr matches records whose field equals Value
type EqExpr struct {
	Field string
	Value interface{}
}

// InExpr matches records whose field equals any of Values.
// An empty Values list matches nothing.
type InExpr struct {
	Field  string
	Values []interface{}
}

// CmpOp is an ordering comparison carried by CmpExpr
type CmpOp string

const (
	CmpGt  CmpOp = ">"
	CmpGte CmpOp = ">="
	CmpLt  CmpOp = "<"
	CmpLte CmpOp = "<="
)

// CmpExpr matches records whose field is ordered against Value by Op.
// Numbers compare numerically, strings lexicographically; a field whose type
// does not match the value's type never matches.
type CmpExpr struct {
	Field string
	Op    CmpOp
	Value interface{}
}

// ContainsExpr matches records whose string field contains Substr.
// Fold makes the match case-insensitive.
type ContainsExpr struct {
	Field  string
	Substr string
	Fold   bool
}

// NotExpr negates its whole inner expression
type NotExpr struct {
	Expr Expr
}

// OrExpr is a disjunction; the empty disjunction matches nothing
type OrExpr struct {
	Exprs []Expr
}

// AndExpr is a conjunction; the empty conjunction matches everything
type AndExpr struct {
	Exprs []Expr
}

func (*EqExpr) isExpr()       {}
func (*InExpr) isExpr()       {}
func (*CmpExpr) isExpr()      {}
func (*ContainsExpr) isExpr() {}
func (*NotExpr) isExpr()      {}
func (*OrExpr) isExpr()       {}
func (*AndExpr) isExpr()      {}

// Matches implements Expr
func (e *EqExpr) Matches(r *entities.Record) bool {
	v, ok := r.GetField(e.Field)
	if !ok || v == nil {
		return false
	}
	return looseEqual(v, e.Value)
}

// Matches implements Expr
func (e *InExpr) Matches(r *entities.Record) bool {
	v, ok := r.GetField(e.Field)
	if !ok || v == nil {
		return false
	}
	for _, candidate := range e.Values {
		if looseEqual(v, candidate) {
			return true
		}
	}
	return false
}

// Matches implements Expr
func (e *CmpExpr) Matches(r *entities.Record) bool {
	v, ok := r.GetField(e.Field)
	if !ok || v == nil {
		return false
	}
	cmp, comparable := compareOrdered(v, e.Value)
	if !comparable {
		return false
	}
	switch e.Op {
	case CmpGt:
		return cmp > 0
	case CmpGte:
		return cmp >= 0
	case CmpLt:
		return cmp < 0
	case CmpLte:
		return cmp <= 0
	}
	return false
}

// Matches implements Expr
func (e *ContainsExpr) Matches(r *entities.Record) bool {
	v, ok := r.GetField(e.Field)
	if !ok || v == nil {
		return false
	}
	s, isString := v.(string)
	if !isString {
		return false
	}
	if e.Fold {
		return strings.Contains(strings.ToLower(s), strings.ToLower(e.Substr))
	}
	return strings.Contains(s, e.Substr)
}

// Matches implements Expr
func (e *NotExpr) Matches(r *entities.Record) bool {
	return !e.Expr.Matches(r)
}

// Matches implements Expr
func (e *OrExpr) Matches(r *entities.Record) bool {
	for _, sub := range e.Exprs {
		if sub.Matches(r) {
			return true
		}
	}
	return false
}

// Matches implements Expr
func (e *AndExpr) Matches(r *entities.Record) bool {
	for _, sub := range e.Exprs {
		if !sub.Matches(r) {
			return false
		}
	}
	return true
}

// looseEqual compares two scalar values. Numeric values compare across Go
// numeric types (JSON decoding yields float64, stores may yield int64);
// everything else compares type-strictly.
func looseEqual(a, b interface{}) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
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

// compareOrdered returns the sign of a compared to b and whether the two are
// comparable at all (both numeric, or both strings).
func compareOrdered(a, b interface{}) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}
