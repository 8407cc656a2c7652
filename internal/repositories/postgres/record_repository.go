package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/repositories"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

// PostgresRecordRepository implements RecordRepository using PostgreSQL.
// Records live in one tenant-partitioned table with a JSONB attribute bag;
// compiled filter expressions run directly against that column.
type PostgresRecordRepository struct {
	db *sql.DB
}

// NewPostgresRecordRepository creates a new PostgreSQL record repository
func NewPostgresRecordRepository(db *sql.DB) repositories.RecordRepository {
	return &PostgresRecordRepository{db: db}
}

// GetByID retrieves one record; returns (nil, nil) when absent
func (r *PostgresRecordRepository) GetByID(ctx context.Context, tenantID string, objectType entities.ObjectType, id string) (*entities.Record, error) {
	query := `
		SELECT id, attributes
		FROM records
		WHERE tenant_id = $1 AND object_type = $2 AND id = $3
	`
	record, err := scanRecord(r.db.QueryRowContext(ctx, query, tenantID, string(objectType), id), objectType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// Collection returns the queryable record set for one tenant and object type
func (r *PostgresRecordRepository) Collection(tenantID string, objectType entities.ObjectType) sharing.Collection {
	return &recordCollection{db: r.db, tenantID: tenantID, objectType: objectType}
}

type recordCollection struct {
	db         *sql.DB
	tenantID   string
	objectType entities.ObjectType
}

// Select implements sharing.Collection by compiling the filter expression
// into the WHERE clause of a single query
func (c *recordCollection) Select(ctx context.Context, filter sharing.Expr) ([]*entities.Record, error) {
	clause, filterArgs, err := CompileFilter(filter, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to compile access filter: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, attributes
		FROM records
		WHERE tenant_id = $1 AND object_type = $2 AND (%s)
		ORDER BY id
	`, clause)
	args := append([]interface{}{c.tenantID, string(c.objectType)}, filterArgs...)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]*entities.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows, c.objectType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func scanRecord(row rowScanner, objectType entities.ObjectType) (*entities.Record, error) {
	var id, attributesJSON string
	if err := row.Scan(&id, &attributesJSON); err != nil {
		return nil, err
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal([]byte(attributesJSON), &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record attributes: %w", err)
	}
	return &entities.Record{ID: id, ObjectType: objectType, Fields: fields}, nil
}
