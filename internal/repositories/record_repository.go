package repositories

import (
	"context"

	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

// RecordRepository defines the interface the engine needs from the record
// store: fetching one record by ID, and a tenant-and-type-scoped collection
// that the enforcer's compiled filter can be applied to. Record CRUD itself
// belongs to the object modules, not to this engine.
type RecordRepository interface {
	// GetByID retrieves one record; returns (nil, nil) when absent
	GetByID(ctx context.Context, tenantID string, objectType entities.ObjectType, id string) (*entities.Record, error)

	// Collection returns the queryable record set for one tenant and object type
	Collection(tenantID string, objectType entities.ObjectType) sharing.Collection
}
