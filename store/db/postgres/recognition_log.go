package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hrygo/intentd/store"
)

// CreateRecognitionLog persists one recognition attempt.
func (d *DB) CreateRecognitionLog(ctx context.Context, create *store.RecognitionLog) (*store.RecognitionLog, error) {
	stmt := `INSERT INTO recognition_log (
			request_id, app_key, input_text, recognized_intent, confidence,
			processing_time_ms, is_success, error_message, recognition_chain, matched_rules)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` +
		placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `, ` + placeholder(8) + `, ` +
		placeholder(9) + `, ` + placeholder(10) + `)
		RETURNING id, created_at`

	err := d.db.QueryRowContext(ctx, stmt,
		create.RequestID, create.AppKey, create.InputText, create.RecognizedIntent,
		create.Confidence, create.ProcessingTimeMs, create.IsSuccess, create.ErrorMessage,
		create.RecognitionChain, create.MatchedRules,
	).Scan(&create.ID, &create.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognition log: %w", err)
	}

	return create, nil
}

// ListRecognitionLogs retrieves recognition logs, newest first.
func (d *DB) ListRecognitionLogs(ctx context.Context, find *store.FindRecognitionLog) ([]*store.RecognitionLog, error) {
	query := `SELECT id, request_id, app_key, input_text, recognized_intent, confidence,
			processing_time_ms, is_success, error_message, recognition_chain, matched_rules, created_at
		FROM recognition_log WHERE 1=1`
	args := []any{}
	argIdx := 1

	if find.AppKey != nil {
		query += fmt.Sprintf(" AND app_key = %s", placeholder(argIdx))
		args = append(args, *find.AppKey)
		argIdx++
	}
	if find.Since != nil {
		query += fmt.Sprintf(" AND created_at >= %s", placeholder(argIdx))
		args = append(args, *find.Since)
	}

	query += " ORDER BY created_at DESC"
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}
	if find.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", find.Offset)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recognition logs: %w", err)
	}
	defer rows.Close()

	var logs []*store.RecognitionLog
	for rows.Next() {
		var l store.RecognitionLog
		err := rows.Scan(&l.ID, &l.RequestID, &l.AppKey, &l.InputText, &l.RecognizedIntent,
			&l.Confidence, &l.ProcessingTimeMs, &l.IsSuccess, &l.ErrorMessage,
			&l.RecognitionChain, &l.MatchedRules, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recognition log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recognition log rows: %w", err)
	}

	return logs, nil
}

// GetRecognitionStats aggregates recognition outcomes for dashboards.
func (d *DB) GetRecognitionStats(ctx context.Context, find *store.FindRecognitionLog) (*store.RecognitionStats, error) {
	query := `SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE is_success) as success,
			COUNT(*) FILTER (WHERE NOT is_success) as failure,
			COALESCE(AVG(processing_time_ms), 0) as avg_ms
		FROM recognition_log WHERE 1=1`
	args := []any{}
	argIdx := 1

	if find.AppKey != nil {
		query += fmt.Sprintf(" AND app_key = %s", placeholder(argIdx))
		args = append(args, *find.AppKey)
		argIdx++
	}
	if find.Since != nil {
		query += fmt.Sprintf(" AND created_at >= %s", placeholder(argIdx))
		args = append(args, *find.Since)
	}

	var stats store.RecognitionStats
	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalCount, &stats.SuccessCount, &stats.FailureCount, &stats.AvgProcessingTimeMs)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get recognition stats: %w", err)
	}

	return &stats, nil
}
