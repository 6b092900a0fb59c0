package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/intentd/store"
)

// CreateIntentRule creates a new intent rule.
func (d *DB) CreateIntentRule(ctx context.Context, create *store.IntentRule) (*store.IntentRule, error) {
	now := time.Now().UTC()
	stmt := `INSERT INTO intent_rule (category_id, rule_type, content, weight, metadata, is_active, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := d.db.ExecContext(ctx, stmt,
		create.CategoryID, create.RuleType, create.Content, create.Weight,
		create.Metadata, create.IsActive, create.Enabled, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent rule: %w", err)
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

// ListIntentRules retrieves rules matching the filter.
func (d *DB) ListIntentRules(ctx context.Context, find *store.FindIntentRule) ([]*store.IntentRule, error) {
	query := `SELECT id, category_id, rule_type, content, weight, metadata, is_active, enabled, created_at, updated_at
		FROM intent_rule WHERE 1=1`
	args := []any{}

	if find.ID != nil {
		query += " AND id = ?"
		args = append(args, *find.ID)
	}
	if len(find.CategoryIDs) > 0 {
		marks := make([]string, len(find.CategoryIDs))
		for i, id := range find.CategoryIDs {
			marks[i] = "?"
			args = append(args, id)
		}
		query += " AND category_id IN (" + strings.Join(marks, ", ") + ")"
	}
	if find.RuleType != nil {
		query += " AND rule_type = ?"
		args = append(args, *find.RuleType)
	}
	if find.IsActive != nil {
		query += " AND is_active = ?"
		args = append(args, *find.IsActive)
	}
	if find.Enabled != nil {
		query += " AND enabled = ?"
		args = append(args, *find.Enabled)
	}

	query += " ORDER BY category_id, id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list intent rules: %w", err)
	}
	defer rows.Close()

	var rules []*store.IntentRule
	for rows.Next() {
		var r store.IntentRule
		err := rows.Scan(&r.ID, &r.CategoryID, &r.RuleType, &r.Content, &r.Weight,
			&r.Metadata, &r.IsActive, &r.Enabled, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent rule: %w", err)
		}
		r.RuleType = strings.TrimSpace(r.RuleType)
		rules = append(rules, &r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intent rule rows: %w", err)
	}

	return rules, nil
}
