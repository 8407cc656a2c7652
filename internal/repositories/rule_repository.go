package repositories

import (
	"context"

	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

// RuleRepository defines the interface for sharing rule data access.
// ListActive (inherited from sharing.RuleSource) is the enforcement path;
// the remaining methods serve the administration surface. Rules are never
// auto-deleted: deactivation is an Update of IsActive, and inactive rules
// stay readable through List for audit.
type RuleRepository interface {
	sharing.RuleSource

	// Create persists a new sharing rule
	Create(ctx context.Context, rule *entities.SharingRule) error

	// Update rewrites an existing rule's mutable fields
	Update(ctx context.Context, rule *entities.SharingRule) error

	// Delete removes a rule permanently
	Delete(ctx context.Context, tenantID, ruleID string) error

	// GetByID retrieves one rule; returns (nil, nil) when absent
	GetByID(ctx context.Context, tenantID, ruleID string) (*entities.SharingRule, error)

	// List retrieves all rules for an object type, inactive ones included
	List(ctx context.Context, tenantID string, objectType entities.ObjectType) ([]*entities.SharingRule, error)
}
