package entities

import (
	"fmt"
	"time"
)

// RecordShare is an explicit grant of one record to one user. At most one
// share exists per (tenant, object type, object, grantee); regranting updates
// the existing row. Shares never expire implicitly.
type RecordShare struct {
	ID            string      `json:"id"`
	TenantID      string      `json:"tenant_id"`
	ObjectType    ObjectType  `json:"object_type"`
	ObjectID      string      `json:"object_id"`
	GranteeUserID string      `json:"grantee_user_id"`
	AccessLevel   AccessLevel `json:"access_level"`
	Reason        string      `json:"reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Validate checks that all required share fields are present
func (s *RecordShare) Validate() error {
	if s.TenantID == "" {
		return fmt.Errorf("record share: tenant ID is required")
	}
	if err := s.ObjectType.Validate(); err != nil {
		return fmt.Errorf("record share: %w", err)
	}
	if s.ObjectID == "" {
		return fmt.Errorf("record share: object ID is required")
	}
	if s.GranteeUserID == "" {
		return fmt.Errorf("record share: grantee user ID is required")
	}
	if err := s.AccessLevel.Validate(); err != nil {
		return fmt.Errorf("record share: %w", err)
	}
	return nil
}
