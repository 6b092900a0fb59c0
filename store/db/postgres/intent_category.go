package postgres

import (
	"context"
	"fmt"

	"github.com/hrygo/intentd/store"
)

// CreateIntentCategory creates a new intent category.
func (d *DB) CreateIntentCategory(ctx context.Context, create *store.IntentCategory) (*store.IntentCategory, error) {
	stmt := `INSERT INTO intent_category (application_id, code, name, description, priority, is_active)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` +
		placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `)
		RETURNING id, created_at, updated_at`

	err := d.db.QueryRowContext(ctx, stmt,
		create.ApplicationID, create.Code, create.Name, create.Description,
		create.Priority, create.IsActive,
	).Scan(&create.ID, &create.CreatedAt, &create.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent category: %w", err)
	}

	return create, nil
}

// ListIntentCategories retrieves categories matching the filter, highest
// priority first.
func (d *DB) ListIntentCategories(ctx context.Context, find *store.FindIntentCategory) ([]*store.IntentCategory, error) {
	query := `SELECT id, application_id, code, name, description, priority, is_active, created_at, updated_at
		FROM intent_category WHERE 1=1`
	args := []any{}
	argIdx := 1

	if find.ID != nil {
		query += fmt.Sprintf(" AND id = %s", placeholder(argIdx))
		args = append(args, *find.ID)
		argIdx++
	}
	if find.ApplicationID != nil {
		query += fmt.Sprintf(" AND application_id = %s", placeholder(argIdx))
		args = append(args, *find.ApplicationID)
		argIdx++
	}
	if find.IsActive != nil {
		query += fmt.Sprintf(" AND is_active = %s", placeholder(argIdx))
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
