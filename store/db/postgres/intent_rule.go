package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hrygo/intentd/store"
)

// CreateIntentRule creates a new intent rule.
func (d *DB) CreateIntentRule(ctx context.Context, create *store.IntentRule) (*store.IntentRule, error) {
	stmt := `INSERT INTO intent_rule (category_id, rule_type, content, weight, metadata, is_active, enabled)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` +
		placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `)
		RETURNING id, created_at, updated_at`

	err := d.db.QueryRowContext(ctx, stmt,
		create.CategoryID, create.RuleType, create.Content, create.Weight,
		create.Metadata, create.IsActive, create.Enabled,
	).Scan(&create.ID, &create.CreatedAt, &create.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent rule: %w", err)
	}

	return create, nil
}

// ListIntentRules retrieves rules matching the filter.
func (d *DB) ListIntentRules(ctx context.Context, find *store.FindIntentRule) ([]*store.IntentRule, error) {
	query := `SELECT id, category_id, rule_type, content, weight, metadata, is_active, enabled, created_at, updated_at
		FROM intent_rule WHERE 1=1`
	args := []any{}
	argIdx := 1

	if find.ID != nil {
		query += fmt.Sprintf(" AND id = %s", placeholder(argIdx))
		args = append(args, *find.ID)
		argIdx++
	}
	if len(find.CategoryIDs) > 0 {
		query += fmt.Sprintf(" AND category_id = ANY(%s)", placeholder(argIdx))
		args = append(args, pq.Array(find.CategoryIDs))
		argIdx++
	}
	if find.RuleType != nil {
		query += fmt.Sprintf(" AND rule_type = %s", placeholder(argIdx))
		args = append(args, *find.RuleType)
		argIdx++
	}
	if find.IsActive != nil {
		query += fmt.Sprintf(" AND is_active = %s", placeholder(argIdx))
		args = append(args, *find.IsActive)
		argIdx++
	}
	if find.Enabled != nil {
		query += fmt.Sprintf(" AND enabled = %s", placeholder(argIdx))
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
		// Normalize stored rule type; older rows may carry stray whitespace.
		r.RuleType = strings.TrimSpace(r.RuleType)
		rules = append(rules, &r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intent rule rows: %w", err)
	}

	return rules, nil
}
