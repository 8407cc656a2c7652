package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/repositories"
)

// PostgresRuleRepository implements RuleRepository using PostgreSQL
type PostgresRuleRepository struct {
	db *sql.DB
}

// NewPostgresRuleRepository creates a new PostgreSQL rule repository
func NewPostgresRuleRepository(db *sql.DB) repositories.RuleRepository {
	return &PostgresRuleRepository{db: db}
}

// Create persists a new sharing rule
func (r *PostgresRuleRepository) Create(ctx context.Context, rule *entities.SharingRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid sharing rule: %w", err)
	}

	predicateJSON, err := json.Marshal(rule.Predicate)
	if err != nil {
		return fmt.Errorf("failed to marshal predicate: %w", err)
	}

	query := `
		INSERT INTO sharing_rules (id, tenant_id, name, object_type, predicate, access_level, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	now := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.TenantID, rule.Name, string(rule.ObjectType),
		string(predicateJSON), string(rule.AccessLevel), rule.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create sharing rule: %w", err)
	}

	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// Update rewrites an existing rule's mutable fields
func (r *PostgresRuleRepository) Update(ctx context.Context, rule *entities.SharingRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid sharing rule: %w", err)
	}

	predicateJSON, err := json.Marshal(rule.Predicate)
	if err != nil {
		return fmt.Errorf("failed to marshal predicate: %w", err)
	}

	query := `
		UPDATE sharing_rules
		SET name = $1, object_type = $2, predicate = $3, access_level = $4, is_active = $5, updated_at = $6
		WHERE tenant_id = $7 AND id = $8
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		rule.Name, string(rule.ObjectType), string(predicateJSON),
		string(rule.AccessLevel), rule.IsActive, now,
		rule.TenantID, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sharing rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sharing rule %s not found", rule.ID)
	}

	rule.UpdatedAt = now
	return nil
}

// Delete removes a rule permanently
func (r *PostgresRuleRepository) Delete(ctx context.Context, tenantID, ruleID string) error {
	query := `DELETE FROM sharing_rules WHERE tenant_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, tenantID, ruleID); err != nil {
		return fmt.Errorf("failed to delete sharing rule: %w", err)
	}
	return nil
}

// GetByID retrieves one rule; returns (nil, nil) when absent
func (r *PostgresRuleRepository) GetByID(ctx context.Context, tenantID, ruleID string) (*entities.SharingRule, error) {
	query := `
		SELECT id, tenant_id, name, object_type, predicate, access_level, is_active, created_at, updated_at
		FROM sharing_rules
		WHERE tenant_id = $1 AND id = $2
	`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, tenantID, ruleID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sharing rule: %w", err)
	}
	return rule, nil
}

// ListActive retrieves the active rules for an object type, unordered.
// Rule combination is OR, so enforcement does not depend on any ordering.
func (r *PostgresRuleRepository) ListActive(ctx context.Context, tenantID string, objectType entities.ObjectType) ([]*entities.SharingRule, error) {
	query := `
		SELECT id, tenant_id, name, object_type, predicate, access_level, is_active, created_at, updated_at
		FROM sharing_rules
		WHERE tenant_id = $1 AND object_type = $2 AND is_active = TRUE
	`
	return r.queryRules(ctx, query, tenantID, string(objectType))
}

// List retrieves all rules for an object type, inactive ones included
func (r *PostgresRuleRepository) List(ctx context.Context, tenantID string, objectType entities.ObjectType) ([]*entities.SharingRule, error) {
	query := `
		SELECT id, tenant_id, name, object_type, predicate, access_level, is_active, created_at, updated_at
		FROM sharing_rules
		WHERE tenant_id = $1 AND object_type = $2
	`
	return r.queryRules(ctx, query, tenantID, string(objectType))
}

func (r *PostgresRuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]*entities.SharingRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sharing rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*entities.SharingRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sharing rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sharing rules: %w", err)
	}
	return rules, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*entities.SharingRule, error) {
	var rule entities.SharingRule
	var objectType, accessLevel, predicateJSON string
	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &objectType,
		&predicateJSON, &accessLevel, &rule.IsActive,
		&rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rule.ObjectType = entities.ObjectType(objectType)
	rule.AccessLevel = entities.AccessLevel(accessLevel)
	var predicate entities.Predicate
	if err := json.Unmarshal([]byte(predicateJSON), &predicate); err != nil {
		return nil, fmt.Errorf("failed to unmarshal predicate: %w", err)
	}
	rule.Predicate = &predicate
	return &rule, nil
}
