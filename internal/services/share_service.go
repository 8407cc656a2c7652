package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/repositories"
	"github.com/opencrm/rowshare/internal/services/sharing"
	"github.com/opencrm/rowshare/internal/tenant"
)

// ErrGrantorNoAccess is returned when a user tries to share a record they
// cannot access themselves.
var ErrGrantorNoAccess = errors.New("grantor has no access to the record")

// ErrRecordNotFound is returned when a grant targets a record that does not
// exist in the grantor's tenant.
var ErrRecordNotFound = errors.New("record not found")

// ShareService provides the administration operations over record shares.
// A grant is only accepted from a user who can already see the record, which
// routes back through the enforcer rather than duplicating its logic.
type ShareService struct {
	shares   repositories.ShareRepository
	records  repositories.RecordRepository
	enforcer *sharing.Enforcer
}

// NewShareService creates a new ShareService
func NewShareService(shares repositories.ShareRepository, records repositories.RecordRepository, enforcer *sharing.Enforcer) *ShareService {
	return &ShareService{shares: shares, records: records, enforcer: enforcer}
}

// GrantInput contains the parameters for granting access to one record
type GrantInput struct {
	GrantedBy     string // user performing the grant
	ObjectType    entities.ObjectType
	ObjectID      string
	GranteeUserID string
	AccessLevel   entities.AccessLevel
	Reason        string
}

// Grant creates (or updates, on regrant) a record share after verifying the
// grantor can see the record
func (s *ShareService) Grant(ctx context.Context, input *GrantInput) (*entities.RecordShare, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, &sharing.ConfigurationError{Op: "services: grant share"}
	}

	record, err := s.records.GetByID(ctx, tenantID, input.ObjectType, input.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}

	visible, err := s.enforcer.CanAccess(ctx, &sharing.CheckRequest{
		User:       input.GrantedBy,
		Record:     record,
		ObjectType: input.ObjectType,
	})
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, ErrGrantorNoAccess
	}

	share := &entities.RecordShare{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		ObjectType:    input.ObjectType,
		ObjectID:      input.ObjectID,
		GranteeUserID: input.GranteeUserID,
		AccessLevel:   input.AccessLevel,
		Reason:        input.Reason,
	}
	if err := s.shares.Create(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to create share: %w", err)
	}
	return share, nil
}

// Revoke deletes the share for one grantee on one record. Shares never expire
// implicitly; this is the only way one goes away.
func (s *ShareService) Revoke(ctx context.Context, objectType entities.ObjectType, objectID, granteeUserID string) error {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return &sharing.ConfigurationError{Op: "services: revoke share"}
	}
	if err := s.shares.Delete(ctx, tenantID, objectType, objectID, granteeUserID); err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}
	return nil
}

// ListShares retrieves shares matching the filter
func (s *ShareService) ListShares(ctx context.Context, filter sharing.ShareFilter) ([]*entities.RecordShare, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, &sharing.ConfigurationError{Op: "services: list shares"}
	}
	return s.shares.ListShares(ctx, tenantID, filter)
}
