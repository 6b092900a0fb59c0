package postgres

import (
	"context"
	"fmt"

	"github.com/hrygo/intentd/store"
)

// CreateApplication creates a new application.
func (d *DB) CreateApplication(ctx context.Context, create *store.Application) (*store.Application, error) {
	stmt := `INSERT INTO application (
			app_key, name, description, is_active,
			enable_keyword, enable_regex, enable_semantic, enable_llm_fallback,
			enable_cache, fallback_intent_code, confidence_threshold)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `, ` + placeholder(8) + `, ` +
		placeholder(9) + `, ` + placeholder(10) + `, ` + placeholder(11) + `)
		RETURNING id, created_at, updated_at`

	err := d.db.QueryRowContext(ctx, stmt,
		create.AppKey, create.Name, create.Description, create.IsActive,
		create.EnableKeyword, create.EnableRegex, create.EnableSemantic, create.EnableLLMFallback,
		create.EnableCache, create.FallbackIntentCode, create.ConfidenceThreshold,
	).Scan(&create.ID, &create.CreatedAt, &create.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return create, nil
}

// ListApplications retrieves applications matching the filter.
func (d *DB) ListApplications(ctx context.Context, find *store.FindApplication) ([]*store.Application, error) {
	query := `SELECT id, app_key, name, description, is_active,
			enable_keyword, enable_regex, enable_semantic, enable_llm_fallback,
			enable_cache, fallback_intent_code, confidence_threshold,
			created_at, updated_at
		FROM application WHERE 1=1`
	args := []any{}
	argIdx := 1

	if find.ID != nil {
		query += fmt.Sprintf(" AND id = %s", placeholder(argIdx))
		args = append(args, *find.ID)
		argIdx++
	}
	if find.AppKey != nil {
		query += fmt.Sprintf(" AND app_key = %s", placeholder(argIdx))
		args = append(args, *find.AppKey)
		argIdx++
	}
	if find.IsActive != nil {
		query += fmt.Sprintf(" AND is_active = %s", placeholder(argIdx))
		args = append(args, *find.IsActive)
	}

	query += " ORDER BY id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var applications []*store.Application
	for rows.Next() {
		var a store.Application
		err := rows.Scan(&a.ID, &a.AppKey, &a.Name, &a.Description, &a.IsActive,
			&a.EnableKeyword, &a.EnableRegex, &a.EnableSemantic, &a.EnableLLMFallback,
			&a.EnableCache, &a.FallbackIntentCode, &a.ConfidenceThreshold,
			&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		applications = append(applications, &a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating application rows: %w", err)
	}

	return applications, nil
}

// UpdateApplication applies a partial update and returns the updated row.
func (d *DB) UpdateApplication(ctx context.Context, update *store.UpdateApplication) (*store.Application, error) {
	set := []string{"updated_at = NOW()"}
	args := []any{}
	argIdx := 1

	if update.Name != nil {
		set = append(set, fmt.Sprintf("name = %s", placeholder(argIdx)))
		args = append(args, *update.Name)
		argIdx++
	}
	if update.Description != nil {
		set = append(set, fmt.Sprintf("description = %s", placeholder(argIdx)))
		args = append(args, *update.Description)
		argIdx++
	}
	if update.IsActive != nil {
		set = append(set, fmt.Sprintf("is_active = %s", placeholder(argIdx)))
		args = append(args, *update.IsActive)
		argIdx++
	}
	if update.EnableKeyword != nil {
		set = append(set, fmt.Sprintf("enable_keyword = %s", placeholder(argIdx)))
		args = append(args, *update.EnableKeyword)
		argIdx++
	}
	if update.EnableRegex != nil {
		set = append(set, fmt.Sprintf("enable_regex = %s", placeholder(argIdx)))
		args = append(args, *update.EnableRegex)
		argIdx++
	}
	if update.EnableSemantic != nil {
		set = append(set, fmt.Sprintf("enable_semantic = %s", placeholder(argIdx)))
		args = append(args, *update.EnableSemantic)
		argIdx++
	}
	if update.EnableLLMFallback != nil {
		set = append(set, fmt.Sprintf("enable_llm_fallback = %s", placeholder(argIdx)))
		args = append(args, *update.EnableLLMFallback)
		argIdx++
	}
	if update.EnableCache != nil {
		set = append(set, fmt.Sprintf("enable_cache = %s", placeholder(argIdx)))
		args = append(args, *update.EnableCache)
		argIdx++
	}
	if update.FallbackIntentCode != nil {
		set = append(set, fmt.Sprintf("fallback_intent_code = %s", placeholder(argIdx)))
		args = append(args, *update.FallbackIntentCode)
		argIdx++
	}
	if update.ConfidenceThreshold != nil {
		set = append(set, fmt.Sprintf("confidence_threshold = %s", placeholder(argIdx)))
		args = append(args, *update.ConfidenceThreshold)
		argIdx++
	}

	stmt := "UPDATE application SET "
	for i, s := range set {
		if i > 0 {
			stmt += ", "
		}
		stmt += s
	}
	stmt += fmt.Sprintf(" WHERE id = %s", placeholder(argIdx))
	args = append(args, update.ID)
	stmt += ` RETURNING id, app_key, name, description, is_active,
			enable_keyword, enable_regex, enable_semantic, enable_llm_fallback,
			enable_cache, fallback_intent_code, confidence_threshold,
			created_at, updated_at`

	var a store.Application
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&a.ID, &a.AppKey, &a.Name, &a.Description, &a.IsActive,
		&a.EnableKeyword, &a.EnableRegex, &a.EnableSemantic, &a.EnableLLMFallback,
		&a.EnableCache, &a.FallbackIntentCode, &a.ConfidenceThreshold,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	return &a, nil
}

// DeleteApplication removes an application; categories and rules cascade.
func (d *DB) DeleteApplication(ctx context.Context, delete *store.DeleteApplication) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM application WHERE id = "+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	return nil
}
