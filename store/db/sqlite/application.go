package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/hrygo/intentd/store"
)

// CreateApplication creates a new application.
func (d *DB) CreateApplication(ctx context.Context, create *store.Application) (*store.Application, error) {
	now := time.Now().UTC()
	stmt := `INSERT INTO application (
			app_key, name, description, is_active,
			enable_keyword, enable_regex, enable_semantic, enable_llm_fallback,
			enable_cache, fallback_intent_code, confidence_threshold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := d.db.ExecContext(ctx, stmt,
		create.AppKey, create.Name, create.Description, create.IsActive,
		create.EnableKeyword, create.EnableRegex, create.EnableSemantic, create.EnableLLMFallback,
		create.EnableCache, create.FallbackIntentCode, create.ConfidenceThreshold, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
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

// ListApplications retrieves applications matching the filter.
func (d *DB) ListApplications(ctx context.Context, find *store.FindApplication) ([]*store.Application, error) {
	query := `SELECT id, app_key, name, description, is_active,
			enable_keyword, enable_regex, enable_semantic, enable_llm_fallback,
			enable_cache, fallback_intent_code, confidence_threshold,
			created_at, updated_at
		FROM application WHERE 1=1`
	args := []any{}

	if find.ID != nil {
		query += " AND id = ?"
		args = append(args, *find.ID)
	}
	if find.AppKey != nil {
		query += " AND app_key = ?"
		args = append(args, *find.AppKey)
	}
	if find.IsActive != nil {
		query += " AND is_active = ?"
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
	set := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if update.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *update.Description)
	}
	if update.IsActive != nil {
		set = append(set, "is_active = ?")
		args = append(args, *update.IsActive)
	}
	if update.EnableKeyword != nil {
		set = append(set, "enable_keyword = ?")
		args = append(args, *update.EnableKeyword)
	}
	if update.EnableRegex != nil {
		set = append(set, "enable_regex = ?")
		args = append(args, *update.EnableRegex)
	}
	if update.EnableSemantic != nil {
		set = append(set, "enable_semantic = ?")
		args = append(args, *update.EnableSemantic)
	}
	if update.EnableLLMFallback != nil {
		set = append(set, "enable_llm_fallback = ?")
		args = append(args, *update.EnableLLMFallback)
	}
	if update.EnableCache != nil {
		set = append(set, "enable_cache = ?")
		args = append(args, *update.EnableCache)
	}
	if update.FallbackIntentCode != nil {
		set = append(set, "fallback_intent_code = ?")
		args = append(args, *update.FallbackIntentCode)
	}
	if update.ConfidenceThreshold != nil {
		set = append(set, "confidence_threshold = ?")
		args = append(args, *update.ConfidenceThreshold)
	}

	stmt := "UPDATE application SET "
	for i, s := range set {
		if i > 0 {
			stmt += ", "
		}
		stmt += s
	}
	stmt += " WHERE id = ?"
	args = append(args, update.ID)

	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	id := update.ID
	list, err := d.ListApplications(ctx, &store.FindApplication{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("application %d not found after update", update.ID)
	}
	return list[0], nil
}

// DeleteApplication removes an application; categories and rules cascade.
func (d *DB) DeleteApplication(ctx context.Context, delete *store.DeleteApplication) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM application WHERE id = ?", delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	return nil
}
