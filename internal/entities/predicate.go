package entities

// Operator is a predicate comparison operator
type Operator string

const (
	OpEq        Operator = "eq"
	OpNe        Operator = "ne"
	OpIn        Operator = "in"
	OpNin       Operator = "nin"
	OpContains  Operator = "contains"
	OpIContains Operator = "icontains"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
)

// Known reports whether the operator is part of the predicate vocabulary
func (o Operator) Known() bool {
	switch o {
	case OpEq, OpNe, OpIn, OpNin, OpContains, OpIContains, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// RequiresList reports whether the operator takes a list value
func (o Operator) RequiresList() bool {
	return o == OpIn || o == OpNin
}

// Predicate is a single-field condition carried by a sharing rule.
// Field must name a scalar attribute of the target object type; relationship
// traversal is not part of the model. Structural validation lives in the
// sharing package so rule authoring and rule evaluation share one code path.
type Predicate struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}
