package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresSessionsRepository 限时会话Repository实现（会议/培训/打卡）
type PostgresSessionsRepository struct {
	db DBTX
}

// NewPostgresSessionsRepository 创建会话Repository
func NewPostgresSessionsRepository(db DBTX) *PostgresSessionsRepository {
	return &PostgresSessionsRepository{db: db}
}

var _ SessionsRepository = (*PostgresSessionsRepository)(nil)

// ============================================
// Meetings 表操作
// ============================================

// CreateMeeting 创建会议
func (r *PostgresSessionsRepository) CreateMeeting(ctx context.Context, m *domain.Meeting) (string, error) {
	if m == nil {
		return "", fmt.Errorf("meeting is required")
	}
	if len(m.ParticipantIDs) == 0 {
		return "", fmt.Errorf("participant_ids are required")
	}
	if m.Room == "" {
		return "", fmt.Errorf("room is required")
	}

	if m.MeetingID == "" {
		m.MeetingID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = domain.SessionScheduled
	}
	now := time.Now().UTC()
	if m.StartTime.IsZero() {
		m.StartTime = now
	}
	m.CreatedAt = now

	query := `
		INSERT INTO meetings (
			meeting_id, topic, room, floor, status, participant_ids,
			start_time, end_time, duration_minutes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.MeetingID, m.Topic, m.Room, m.Floor, m.Status,
		pq.Array(m.ParticipantIDs), m.StartTime.UTC(), m.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create meeting: %w", err)
	}
	return m.MeetingID, nil
}

// ListMeetingsByStatus 按状态获取会议
func (r *PostgresSessionsRepository) ListMeetingsByStatus(ctx context.Context, status domain.SessionStatus) ([]*domain.Meeting, error) {
	query := `
		SELECT meeting_id::text, topic, room, floor, status, participant_ids,
		       start_time, end_time, duration_minutes, created_at
		FROM meetings
		WHERE status = $1
		ORDER BY start_time, meeting_id
	`
	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*domain.Meeting
	for rows.Next() {
		var m domain.Meeting
		var endTime sql.NullTime
		var durationMins sql.NullInt64
		err := rows.Scan(
			&m.MeetingID, &m.Topic, &m.Room, &m.Floor, &m.Status,
			pq.Array(&m.ParticipantIDs), &m.StartTime, &endTime, &durationMins, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		if endTime.Valid {
			m.EndTime = &endTime.Time
		}
		if durationMins.Valid {
			v := int(durationMins.Int64)
			m.DurationMins = &v
		}
		meetings = append(meetings, &m)
	}
	return meetings, rows.Err()
}

// HasActiveMeeting 参与者是否已有未结束的会议（scheduled 或 in_progress）
func (r *PostgresSessionsRepository) HasActiveMeeting(ctx context.Context, agentID string) (bool, error) {
	if agentID == "" {
		return false, fmt.Errorf("agent_id is required")
	}

	query := `
		SELECT COUNT(*) FROM meetings
		WHERE status IN ('scheduled', 'in_progress') AND $1 = ANY(participant_ids)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, agentID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check active meeting: %w", err)
	}
	return count > 0, nil
}

// UpdateMeeting 更新会议状态/结束时间
func (r *PostgresSessionsRepository) UpdateMeeting(ctx context.Context, m *domain.Meeting) error {
	if m == nil || m.MeetingID == "" {
		return fmt.Errorf("meeting with meeting_id is required")
	}

	var endTimeArg any = nil
	if m.EndTime != nil {
		endTimeArg = m.EndTime.UTC()
	}
	var durationArg any = nil
	if m.DurationMins != nil {
		durationArg = *m.DurationMins
	}

	query := `
		UPDATE meetings SET status = $2, end_time = $3, duration_minutes = $4
		WHERE meeting_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, m.MeetingID, m.Status, endTimeArg, durationArg)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("meeting not found: %s", m.MeetingID)
	}
	return nil
}

// ============================================
// Training Sessions 表操作
// ============================================

// CreateTraining 创建培训
func (r *PostgresSessionsRepository) CreateTraining(ctx context.Context, t *domain.TrainingSession) (string, error) {
	if t == nil {
		return "", fmt.Errorf("training session is required")
	}
	if t.AgentID == "" {
		return "", fmt.Errorf("agent_id is required")
	}
	if t.Room == "" {
		return "", fmt.Errorf("room is required")
	}

	if t.SessionID == "" {
		t.SessionID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.SessionScheduled
	}
	now := time.Now().UTC()
	if t.StartTime.IsZero() {
		t.StartTime = now
	}
	t.CreatedAt = now

	query := `
		INSERT INTO training_sessions (
			session_id, agent_id, topic, room, floor, status,
			start_time, end_time, duration_minutes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.SessionID, t.AgentID, t.Topic, t.Room, t.Floor, t.Status,
		t.StartTime.UTC(), t.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create training session: %w", err)
	}
	return t.SessionID, nil
}

// ListTrainingsByStatus 按状态获取培训
func (r *PostgresSessionsRepository) ListTrainingsByStatus(ctx context.Context, status domain.SessionStatus) ([]*domain.TrainingSession, error) {
	query := `
		SELECT session_id::text, agent_id::text, topic, room, floor, status,
		       start_time, end_time, duration_minutes, created_at
		FROM training_sessions
		WHERE status = $1
		ORDER BY start_time, session_id
	`
	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list training sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.TrainingSession
	for rows.Next() {
		var t domain.TrainingSession
		var endTime sql.NullTime
		var durationMins sql.NullInt64
		err := rows.Scan(
			&t.SessionID, &t.AgentID, &t.Topic, &t.Room, &t.Floor, &t.Status,
			&t.StartTime, &endTime, &durationMins, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan training session: %w", err)
		}
		if endTime.Valid {
			t.EndTime = &endTime.Time
		}
		if durationMins.Valid {
			v := int(durationMins.Int64)
			t.DurationMins = &v
		}
		sessions = append(sessions, &t)
	}
	return sessions, rows.Err()
}

// HasActiveTraining 员工是否已有未结束的培训
func (r *PostgresSessionsRepository) HasActiveTraining(ctx context.Context, agentID string) (bool, error) {
	if agentID == "" {
		return false, fmt.Errorf("agent_id is required")
	}

	query := `
		SELECT COUNT(*) FROM training_sessions
		WHERE status IN ('scheduled', 'in_progress') AND agent_id = $1
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, agentID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check active training: %w", err)
	}
	return count > 0, nil
}

// UpdateTraining 更新培训状态/结束时间
func (r *PostgresSessionsRepository) UpdateTraining(ctx context.Context, t *domain.TrainingSession) error {
	if t == nil || t.SessionID == "" {
		return fmt.Errorf("training session with session_id is required")
	}

	var endTimeArg any = nil
	if t.EndTime != nil {
		endTimeArg = t.EndTime.UTC()
	}
	var durationArg any = nil
	if t.DurationMins != nil {
		durationArg = *t.DurationMins
	}

	query := `
		UPDATE training_sessions SET status = $2, end_time = $3, duration_minutes = $4
		WHERE session_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, t.SessionID, t.Status, endTimeArg, durationArg)
	if err != nil {
		return fmt.Errorf("failed to update training session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("training session not found: %s", t.SessionID)
	}
	return nil
}

// ============================================
// Clock Events 表操作
// ============================================

// CreateClockEvent 创建打卡记录（上班）
func (r *PostgresSessionsRepository) CreateClockEvent(ctx context.Context, e *domain.ClockEvent) (string, error) {
	if e == nil {
		return "", fmt.Errorf("clock event is required")
	}
	if e.AgentID == "" {
		return "", fmt.Errorf("agent_id is required")
	}

	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = domain.SessionInProgress
	}
	if e.StartTime.IsZero() {
		e.StartTime = time.Now().UTC()
	}

	query := `
		INSERT INTO clock_events (event_id, agent_id, status, start_time, end_time, duration_minutes)
		VALUES ($1, $2, $3, $4, NULL, NULL)
	`
	_, err := r.db.ExecContext(ctx, query, e.EventID, e.AgentID, e.Status, e.StartTime.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create clock event: %w", err)
	}
	return e.EventID, nil
}

// ListOpenClockEvents 获取所有未关闭的打卡记录
func (r *PostgresSessionsRepository) ListOpenClockEvents(ctx context.Context) ([]*domain.ClockEvent, error) {
	query := `
		SELECT event_id::text, agent_id::text, status, start_time, end_time, duration_minutes
		FROM clock_events
		WHERE status = 'in_progress'
		ORDER BY start_time, event_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open clock events: %w", err)
	}
	defer rows.Close()

	var events []*domain.ClockEvent
	for rows.Next() {
		var e domain.ClockEvent
		var endTime sql.NullTime
		var durationMins sql.NullInt64
		if err := rows.Scan(&e.EventID, &e.AgentID, &e.Status, &e.StartTime, &endTime, &durationMins); err != nil {
			return nil, fmt.Errorf("failed to scan clock event: %w", err)
		}
		if endTime.Valid {
			e.EndTime = &endTime.Time
		}
		if durationMins.Valid {
			v := int(durationMins.Int64)
			e.DurationMins = &v
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// HasOpenClockEvent 员工是否已有未关闭的打卡记录
func (r *PostgresSessionsRepository) HasOpenClockEvent(ctx context.Context, agentID string) (bool, error) {
	if agentID == "" {
		return false, fmt.Errorf("agent_id is required")
	}

	var count int
	query := `SELECT COUNT(*) FROM clock_events WHERE status = 'in_progress' AND agent_id = $1`
	if err := r.db.QueryRowContext(ctx, query, agentID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check open clock event: %w", err)
	}
	return count > 0, nil
}

// CountOpenClockEvents 统计在岗人数（最低在岗人数判断用）
func (r *PostgresSessionsRepository) CountOpenClockEvents(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM clock_events WHERE status = 'in_progress'`
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open clock events: %w", err)
	}
	return count, nil
}

// UpdateClockEvent 关闭打卡记录（下班）
func (r *PostgresSessionsRepository) UpdateClockEvent(ctx context.Context, e *domain.ClockEvent) error {
	if e == nil || e.EventID == "" {
		return fmt.Errorf("clock event with event_id is required")
	}

	var endTimeArg any = nil
	if e.EndTime != nil {
		endTimeArg = e.EndTime.UTC()
	}
	var durationArg any = nil
	if e.DurationMins != nil {
		durationArg = *e.DurationMins
	}

	query := `
		UPDATE clock_events SET status = $2, end_time = $3, duration_minutes = $4
		WHERE event_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, e.EventID, e.Status, endTimeArg, durationArg)
	if err != nil {
		return fmt.Errorf("failed to update clock event: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("clock event not found: %s", e.EventID)
	}
	return nil
}
