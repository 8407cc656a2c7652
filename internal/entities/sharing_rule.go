package entities

import (
	"fmt"
	"time"
)

// SharingRule is a tenant-scoped, declarative grant: every record of ObjectType
// matching Predicate is visible to all users of the tenant at AccessLevel.
// Inactive rules are kept for audit but contribute nothing to enforcement.
type SharingRule struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	Name        string      `json:"name"`
	ObjectType  ObjectType  `json:"object_type"`
	Predicate   *Predicate  `json:"predicate"`
	AccessLevel AccessLevel `json:"access_level"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Validate checks the rule's own fields. The predicate's structural validity
// is checked separately by the predicate evaluator.
func (r *SharingRule) Validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("sharing rule: tenant ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("sharing rule: name is required")
	}
	if err := r.ObjectType.Validate(); err != nil {
		return fmt.Errorf("sharing rule: %w", err)
	}
	if r.Predicate == nil {
		return fmt.Errorf("sharing rule: predicate is required")
	}
	if err := r.AccessLevel.Validate(); err != nil {
		return fmt.Errorf("sharing rule: %w", err)
	}
	return nil
}
