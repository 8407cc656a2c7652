package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/repositories"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

// PostgresShareRepository implements ShareRepository using PostgreSQL
type PostgresShareRepository struct {
	db *sql.DB
}

// NewPostgresShareRepository creates a new PostgreSQL share repository
func NewPostgresShareRepository(db *sql.DB) repositories.ShareRepository {
	return &PostgresShareRepository{db: db}
}

// Create persists a share, upserting on the uniqueness key so at most one
// share row exists per (tenant, object type, object, grantee)
func (r *PostgresShareRepository) Create(ctx context.Context, share *entities.RecordShare) error {
	if err := share.Validate(); err != nil {
		return fmt.Errorf("invalid record share: %w", err)
	}

	query := `
		INSERT INTO record_shares (id, tenant_id, object_type, object_id, grantee_user_id, access_level, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, object_type, object_id, grantee_user_id)
		DO UPDATE SET access_level = EXCLUDED.access_level, reason = EXCLUDED.reason
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		share.ID, share.TenantID, string(share.ObjectType), share.ObjectID,
		share.GranteeUserID, string(share.AccessLevel),
		sql.NullString{String: share.Reason, Valid: share.Reason != ""}, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create record share: %w", err)
	}

	share.CreatedAt = now
	return nil
}

// Delete removes the share for one grantee on one record
func (r *PostgresShareRepository) Delete(ctx context.Context, tenantID string, objectType entities.ObjectType, objectID, granteeUserID string) error {
	query := `
		DELETE FROM record_shares
		WHERE tenant_id = $1 AND object_type = $2 AND object_id = $3 AND grantee_user_id = $4
	`
	if _, err := r.db.ExecContext(ctx, query, tenantID, string(objectType), objectID, granteeUserID); err != nil {
		return fmt.Errorf("failed to delete record share: %w", err)
	}
	return nil
}

// ListShares retrieves shares matching the filter
func (r *PostgresShareRepository) ListShares(ctx context.Context, tenantID string, filter sharing.ShareFilter) ([]*entities.RecordShare, error) {
	query := `
		SELECT id, tenant_id, object_type, object_id, grantee_user_id, access_level, reason, created_at
		FROM record_shares
		WHERE tenant_id = $1
	`
	args := []interface{}{tenantID}
	argIdx := 2

	// Build dynamic WHERE clause based on filter
	if filter.ObjectType != "" {
		query += fmt.Sprintf(" AND object_type = $%d", argIdx)
		args = append(args, string(filter.ObjectType))
		argIdx++
	}
	if filter.ObjectID != "" {
		query += fmt.Sprintf(" AND object_id = $%d", argIdx)
		args = append(args, filter.ObjectID)
		argIdx++
	}
	if filter.GranteeUserID != "" {
		query += fmt.Sprintf(" AND grantee_user_id = $%d", argIdx)
		args = append(args, filter.GranteeUserID)
		argIdx++
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query record shares: %w", err)
	}
	defer rows.Close()

	shares := make([]*entities.RecordShare, 0)
	for rows.Next() {
		var share entities.RecordShare
		var objectType, accessLevel string
		var reason sql.NullString
		if err := rows.Scan(
			&share.ID, &share.TenantID, &objectType, &share.ObjectID,
			&share.GranteeUserID, &accessLevel, &reason, &share.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record share: %w", err)
		}
		share.ObjectType = entities.ObjectType(objectType)
		share.AccessLevel = entities.AccessLevel(accessLevel)
		share.Reason = reason.String
		shares = append(shares, &share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record shares: %w", err)
	}
	return shares, nil
}
