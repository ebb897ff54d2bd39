package domain

import (
	"encoding/json"
	"time"
)

// ActivityType 活动日志类型
type ActivityType string

const (
	ActivityTypeStateChange   ActivityType = "state_change"
	ActivityTypeMovement      ActivityType = "movement"
	ActivityTypeSleep         ActivityType = "sleep"
	ActivityTypeWake          ActivityType = "wake"
	ActivityTypeMeetingStart  ActivityType = "meeting_start"
	ActivityTypeMeetingEnd    ActivityType = "meeting_end"
	ActivityTypeTrainingStart ActivityType = "training_start"
	ActivityTypeTrainingEnd   ActivityType = "training_end"
	ActivityTypeClockIn       ActivityType = "clock_in"
	ActivityTypeClockOut      ActivityType = "clock_out"
	ActivityTypeHired         ActivityType = "hired"
	ActivityTypeRepair        ActivityType = "repair"
)

// Activity 活动日志（对应 activities 表，append-only，插入后不可变）
// 既是审计记录，也是推送给观察端的事件载荷
type Activity struct {
	// 主键
	ActivityID string `db:"activity_id"` // UUID, PRIMARY KEY

	// 类型与关联
	ActivityType ActivityType `db:"activity_type"` // VARCHAR(50), NOT NULL
	AgentID      string       `db:"agent_id"`      // UUID, nullable（系统级事件为空）

	// 内容
	Description string          `db:"description"` // TEXT, NOT NULL
	Metadata    json.RawMessage `db:"metadata"`    // JSONB, nullable

	// 时间
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, NOT NULL
}
