package repositories

import (
	"context"

	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

// ShareRepository defines the interface for record share data access.
// ListShares (inherited from sharing.ShareSource) serves both the bulk
// enforcement path (filter by grantee) and the single-record path (filter by
// object ID and grantee).
type ShareRepository interface {
	sharing.ShareSource

	// Create persists a share. The store upserts on the uniqueness key
	// (tenant, object type, object, grantee), so regranting updates the
	// access level and reason of the existing row.
	Create(ctx context.Context, share *entities.RecordShare) error

	// Delete removes the share for one grantee on one record
	Delete(ctx context.Context, tenantID string, objectType entities.ObjectType, objectID, granteeUserID string) error
}
