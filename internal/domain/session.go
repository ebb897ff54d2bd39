package domain

import "time"

// SessionStatus 限时活动状态
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

// Meeting 会议领域模型（对应 meetings 表）
// 所有时间均以 UTC 存储
type Meeting struct {
	MeetingID      string        `db:"meeting_id"`      // UUID, PRIMARY KEY
	Topic          string        `db:"topic"`           // TEXT, NOT NULL
	Room           string        `db:"room"`            // VARCHAR(100), NOT NULL
	Floor          int           `db:"floor"`           // INTEGER, NOT NULL
	Status         SessionStatus `db:"status"`          // VARCHAR(20), NOT NULL
	ParticipantIDs []string      `db:"participant_ids"` // TEXT[], NOT NULL
	StartTime      time.Time     `db:"start_time"`      // TIMESTAMPTZ, NOT NULL
	EndTime        *time.Time    `db:"end_time"`        // TIMESTAMPTZ, nullable（关闭时写入）
	DurationMins   *int          `db:"duration_minutes"` // INTEGER, nullable
	CreatedAt      time.Time     `db:"created_at"`      // TIMESTAMPTZ, NOT NULL
}

// TrainingSession 培训领域模型（对应 training_sessions 表）
type TrainingSession struct {
	SessionID    string        `db:"session_id"` // UUID, PRIMARY KEY
	AgentID      string        `db:"agent_id"`   // UUID, NOT NULL
	Topic        string        `db:"topic"`      // TEXT, NOT NULL
	Room         string        `db:"room"`       // VARCHAR(100), NOT NULL
	Floor        int           `db:"floor"`      // INTEGER, NOT NULL
	Status       SessionStatus `db:"status"`     // VARCHAR(20), NOT NULL
	StartTime    time.Time     `db:"start_time"` // TIMESTAMPTZ, NOT NULL
	EndTime      *time.Time    `db:"end_time"`   // TIMESTAMPTZ, nullable
	DurationMins *int          `db:"duration_minutes"` // INTEGER, nullable
	CreatedAt    time.Time     `db:"created_at"` // TIMESTAMPTZ, NOT NULL
}

// ClockEvent 上下班打卡事件（对应 clock_events 表）
// 一条记录覆盖一次在岗时段：clock-in 创建，clock-out 关闭
type ClockEvent struct {
	EventID      string        `db:"event_id"`   // UUID, PRIMARY KEY
	AgentID      string        `db:"agent_id"`   // UUID, NOT NULL
	Status       SessionStatus `db:"status"`     // VARCHAR(20), NOT NULL
	StartTime    time.Time     `db:"start_time"` // TIMESTAMPTZ, NOT NULL
	EndTime      *time.Time    `db:"end_time"`   // TIMESTAMPTZ, nullable
	DurationMins *int          `db:"duration_minutes"` // INTEGER, nullable
}

// Elapsed 计算会话已运行时长（统一用 UTC，避免混用带区/不带区时间）
func Elapsed(now time.Time, start time.Time) time.Duration {
	return now.UTC().Sub(start.UTC())
}
