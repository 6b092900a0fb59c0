package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hrygo/intentd/store"
)

// CreateRecognitionLog persists one recognition attempt.
func (d *DB) CreateRecognitionLog(ctx context.Context, create *store.RecognitionLog) (*store.RecognitionLog, error) {
	now := time.Now().UTC()
	stmt := `INSERT INTO recognition_log (
			request_id, app_key, input_text, recognized_intent, confidence,
			processing_time_ms, is_success, error_message, recognition_chain, matched_rules, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := d.db.ExecContext(ctx, stmt,
		create.RequestID, create.AppKey, create.InputText, create.RecognizedIntent,
		create.Confidence, create.ProcessingTimeMs, create.IsSuccess, create.ErrorMessage,
		create.RecognitionChain, create.MatchedRules, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognition log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	create.ID = id
	create.CreatedAt = now

	return create, nil
}

// ListRecognitionLogs retrieves recognition logs, newest first.
func (d *DB) ListRecognitionLogs(ctx context.Context, find *store.FindRecognitionLog) ([]*store.RecognitionLog, error) {
	query := `SELECT id, request_id, app_key, input_text, recognized_intent, confidence,
			processing_time_ms, is_success, error_message, recognition_chain, matched_rules, created_at
		FROM recognition_log WHERE 1=1`
	args := []any{}

	if find.AppKey != nil {
		query += " AND app_key = ?"
		args = append(args, *find.AppKey)
	}
	if find.Since != nil {
		query += " AND created_at >= ?"
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

// GetRecognitionStats aggregates recognition outcomes.
func (d *DB) GetRecognitionStats(ctx context.Context, find *store.FindRecognitionLog) (*store.RecognitionStats, error) {
	query := `SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN is_success THEN 1 ELSE 0 END), 0) as success,
			COALESCE(SUM(CASE WHEN is_success THEN 0 ELSE 1 END), 0) as failure,
			COALESCE(AVG(processing_time_ms), 0) as avg_ms
		FROM recognition_log WHERE 1=1`
	args := []any{}

	if find.AppKey != nil {
		query += " AND app_key = ?"
		args = append(args, *find.AppKey)
	}
	if find.Since != nil {
		query += " AND created_at >= ?"
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
