package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/hrygo/intentd/store"
)

// CreateIntentCategory creates a new intent category.
func (d *DB) CreateIntentCategory(ctx context.Context, create *store.IntentCategory) (*store.IntentCategory, error) {
	now := time.Now().UTC()
	stmt := `INSERT INTO intent_category (application_id, code, name, description, priority, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := d.db.ExecContext(ctx, stmt,
		create.ApplicationID, create.Code, create.Name, create.Description,
		create.Priority, create.IsActive, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	create.ID = int32(id)
	create.CreatedAt = now
	create.UpdatedAt = now

	return create, nil
}

// ListIntentCategories retrieves categories matching the filter, highest
// priority first.
func (d *DB) ListIntentCategories(ctx context.Context, find *store.FindIntentCategory) ([]*store.IntentCategory, error) {
	query := `SELECT id, application_id, code, name, description, priority, is_active, created_at, updated_at
		FROM intent_category WHERE 1=1`
	args := []any{}

	if find.ID != nil {
		query += " AND id = ?"
		args = append(args, *find.ID)
	}
	if find.ApplicationID != nil {
		query += " AND application_id = ?"
		args = append(args, *find.ApplicationID)
	}
	if find.IsActive != nil {
		query += " AND is_active = ?"
		args = append(args, *find.IsActive)
	}

	query += " ORDER BY priority DESC, id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list intent categories: %w", err)
	}
	defer rows.Close()

	var categories []*store.IntentCategory
	for rows.Next() {
		var c store.IntentCategory
		err := rows.Scan(&c.ID, &c.ApplicationID, &c.Code, &c.Name, &c.Description,
			&c.Priority, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent category: %w", err)
		}
		categories = append(categories, &c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intent category rows: %w", err)
	}

	return categories, nil
}
