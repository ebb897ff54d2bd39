package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"

	"github.com/google/uuid"
)

// PostgresActivitiesRepository 活动日志Repository实现（append-only）
type PostgresActivitiesRepository struct {
	db DBTX
}

// NewPostgresActivitiesRepository 创建活动日志Repository
func NewPostgresActivitiesRepository(db DBTX) *PostgresActivitiesRepository {
	return &PostgresActivitiesRepository{db: db}
}

var _ ActivitiesRepository = (*PostgresActivitiesRepository)(nil)

// AppendActivity 追加活动日志（插入后不可变，无 UPDATE/DELETE 路径）
func (r *PostgresActivitiesRepository) AppendActivity(ctx context.Context, a *domain.Activity) (string, error) {
	if a == nil {
		return "", fmt.Errorf("activity is required")
	}
	if a.ActivityType == "" {
		return "", fmt.Errorf("activity_type is required")
	}
	if a.Description == "" {
		return "", fmt.Errorf("description is required")
	}

	if a.ActivityID == "" {
		a.ActivityID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var agentIDArg any = nil
	if a.AgentID != "" {
		agentIDArg = a.AgentID
	}
	var metadataArg any = nil
	if len(a.Metadata) > 0 {
		metadataArg = string(a.Metadata)
	}

	query := `
		INSERT INTO activities (activity_id, activity_type, agent_id, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ActivityID, a.ActivityType, agentIDArg, a.Description, metadataArg, a.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to append activity: %w", err)
	}
	return a.ActivityID, nil
}

// ListRecentActivities 获取最近的活动日志（观察端摘要用）
func (r *PostgresActivitiesRepository) ListRecentActivities(ctx context.Context, limit int) ([]*domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT activity_id::text, activity_type, agent_id::text,
		       description, COALESCE(metadata, '{}'::jsonb)::text, created_at
		FROM activities
		ORDER BY created_at DESC, activity_id
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent activities: %w", err)
	}
	defer rows.Close()

	var activities []*domain.Activity
	for rows.Next() {
		var a domain.Activity
		var agentID sql.NullString
		var metadataRaw string
		if err := rows.Scan(&a.ActivityID, &a.ActivityType, &agentID, &a.Description, &metadataRaw, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if agentID.Valid {
			a.AgentID = agentID.String
		}
		if metadataRaw != "" {
			a.Metadata = json.RawMessage(metadataRaw)
		}
		activities = append(activities, &a)
	}
	return activities, rows.Err()
}
