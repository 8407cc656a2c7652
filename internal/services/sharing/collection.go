package sharing

import (
	"context"

	"github.com/opencrm/rowshare/internal/entities"
)

// Collection is the abstract queryable store the enforcer filters. A
// collection is already scoped to one tenant and one object type; Select
// returns the records matching the compiled filter expression. The Postgres
// adapter compiles the expression to SQL; MemoryCollection evaluates it
// in memory.
type Collection interface {
	Select(ctx context.Context, filter Expr) ([]*entities.Record, error)
}

// MemoryCollection is an in-memory Collection over a fixed record slice,
// used by tests and by callers that already hold the candidate records.
type MemoryCollection struct {
	Records []*entities.Record
}

// Select implements Collection
func (c *MemoryCollection) Select(ctx context.Context, filter Expr) ([]*entities.Record, error) {
	matched := make([]*entities.Record, 0, len(c.Records))
	for _, r := range c.Records {
		if filter.Matches(r) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
