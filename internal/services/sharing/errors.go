package sharing

import "fmt"

// ConfigurationError reports that an enforcement operation was invoked without
// an active tenant context. It indicates a caller bug (typically missing
// middleware) and is never a substitute for an access-denied result: denial is
// reported as false or an empty collection, not as an error.
type ConfigurationError struct {
	Op string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: no active tenant context", e.Op)
}

// InvalidPredicateError reports a structurally malformed or type-inconsistent
// predicate. It is surfaced to whoever authors rules; during enforcement a
// persisted rule that fails with it is skipped with a logged warning rather
// than silently widening or failing the whole decision.
type InvalidPredicateError struct {
	Field    string
	Operator string
	Reason   string
}

func (e *InvalidPredicateError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid predicate: %s", e.Reason)
	}
	return fmt.Sprintf("invalid predicate on field %q (operator %q): %s", e.Field, e.Operator, e.Reason)
}
