package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/repositories"
	"github.com/opencrm/rowshare/internal/services/sharing"
	"github.com/opencrm/rowshare/internal/tenant"
)

// RuleService provides the administration operations over sharing rules.
// Every create and update revalidates the predicate through the predicate
// evaluator, so authoring-time validation and enforcement-time validation
// are one code path.
type RuleService struct {
	rules repositories.RuleRepository
}

// NewRuleService creates a new RuleService
func NewRuleService(rules repositories.RuleRepository) *RuleService {
	return &RuleService{rules: rules}
}

// CreateRuleInput contains the parameters for creating a sharing rule
type CreateRuleInput struct {
	Name        string
	ObjectType  entities.ObjectType
	Predicate   *entities.Predicate
	AccessLevel entities.AccessLevel
	IsActive    bool
}

// CreateRule validates and persists a new sharing rule
func (s *RuleService) CreateRule(ctx context.Context, input *CreateRuleInput) (*entities.SharingRule, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, &sharing.ConfigurationError{Op: "services: create rule"}
	}
	if err := sharing.ValidatePredicate(input.Predicate); err != nil {
		return nil, err
	}

	rule := &entities.SharingRule{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Name:        input.Name,
		ObjectType:  input.ObjectType,
		Predicate:   input.Predicate,
		AccessLevel: input.AccessLevel,
		IsActive:    input.IsActive,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return rule, nil
}

// UpdateRuleInput contains the parameters for updating a sharing rule
type UpdateRuleInput struct {
	Name        string
	Predicate   *entities.Predicate
	AccessLevel entities.AccessLevel
	IsActive    bool
}

// UpdateRule validates and rewrites an existing rule's mutable fields
func (s *RuleService) UpdateRule(ctx context.Context, ruleID string, input *UpdateRuleInput) (*entities.SharingRule, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, &sharing.ConfigurationError{Op: "services: update rule"}
	}
	rule, err := s.rules.GetByID(ctx, tenantID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	if rule == nil {
		return nil, nil
	}
	if err := sharing.ValidatePredicate(input.Predicate); err != nil {
		return nil, err
	}

	rule.Name = input.Name
	rule.Predicate = input.Predicate
	rule.AccessLevel = input.AccessLevel
	rule.IsActive = input.IsActive
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return rule, nil
}

// SetRuleActive flips a rule's active flag without touching anything else.
// Deactivated rules stop contributing to enforcement immediately but remain
// stored for audit.
func (s *RuleService) SetRuleActive(ctx context.Context, ruleID string, active bool) (*entities.SharingRule, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, &sharing.ConfigurationError{Op: "services: set rule active"}
	}
	rule, err := s.rules.GetByID(ctx, tenantID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	if rule == nil {
		return nil, nil
	}

	rule.IsActive = active
	rule.UpdatedAt = time.Now()
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return rule, nil
}

// DeleteRule removes a rule permanently
func (s *RuleService) DeleteRule(ctx context.Context, ruleID string) error {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return &sharing.ConfigurationError{Op: "services: delete rule"}
	}
	if err := s.rules.Delete(ctx, tenantID, ruleID); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// GetRule retrieves one rule; returns (nil, nil) when absent
func (s *RuleService) GetRule(ctx context.Context, ruleID string) (*entities.SharingRule, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, &sharing.ConfigurationError{Op: "services: get rule"}
	}
	return s.rules.GetByID(ctx, tenantID, ruleID)
}

// ListRules retrieves all rules for an object type, inactive ones included
func (s *RuleService) ListRules(ctx context.Context, objectType entities.ObjectType) ([]*entities.SharingRule, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, &sharing.ConfigurationError{Op: "services: list rules"}
	}
	return s.rules.List(ctx, tenantID, objectType)
}
