package domain

import (
	"fmt"
	"time"
)

// ActivityState 员工活动状态
type ActivityState string

const (
	ActivityIdle       ActivityState = "idle"
	ActivityWorking    ActivityState = "working"
	ActivityWalking    ActivityState = "walking"
	ActivityInMeeting  ActivityState = "in_meeting"
	ActivityInTraining ActivityState = "in_training"
	ActivityAtHome     ActivityState = "at_home"
	ActivitySleeping   ActivityState = "sleeping"
)

// Valid 检查活动状态是否合法
func (s ActivityState) Valid() bool {
	switch s {
	case ActivityIdle, ActivityWorking, ActivityWalking, ActivityInMeeting,
		ActivityInTraining, ActivityAtHome, ActivitySleeping:
		return true
	}
	return false
}

// SleepState 睡眠状态
type SleepState string

const (
	SleepAwake    SleepState = "awake"
	SleepSleeping SleepState = "sleeping"
)

// Valid 检查睡眠状态是否合法
func (s SleepState) Valid() bool {
	return s == SleepAwake || s == SleepSleeping
}

// AgentStatus 员工雇佣状态
const (
	AgentStatusActive   = "active"
	AgentStatusInactive = "inactive"
)

// Agent 员工领域模型（对应 agents 表）
type Agent struct {
	// 主键
	AgentID string `db:"agent_id"` // UUID, PRIMARY KEY

	// 基本信息
	Name       string `db:"name"`       // VARCHAR(100), NOT NULL
	Department string `db:"department"` // VARCHAR(100), NOT NULL
	Title      string `db:"title"`      // VARCHAR(100), NOT NULL
	Role       string `db:"role"`       // VARCHAR(50), NOT NULL, DEFAULT 'Employee'

	// 状态机
	ActivityState ActivityState `db:"activity_state"` // VARCHAR(20), NOT NULL
	SleepState    SleepState    `db:"sleep_state"`    // VARCHAR(20), NOT NULL

	// 位置
	CurrentRoom string `db:"current_room"` // VARCHAR(100), NOT NULL
	HomeRoom    string `db:"home_room"`    // VARCHAR(100), NOT NULL
	TargetRoom  string `db:"target_room"`  // VARCHAR(100), nullable（仅 walking 时有值）
	Floor       int    `db:"floor"`        // INTEGER, NOT NULL, DEFAULT 1

	// 雇佣状态（软删除，历史记录仍引用 agent_id）
	Status string `db:"status"` // VARCHAR(20), NOT NULL, DEFAULT 'active'

	// 时间
	HiredAt   time.Time `db:"hired_at"`   // TIMESTAMPTZ, NOT NULL
	UpdatedAt time.Time `db:"updated_at"` // TIMESTAMPTZ, NOT NULL
}

// Active 是否在职
func (a *Agent) Active() bool {
	return a.Status == AgentStatusActive
}

// Walking 是否在移动中
func (a *Agent) Walking() bool {
	return a.ActivityState == ActivityWalking
}

// BeginWalk 进入 walking 状态（必须带合法目标房间）
func (a *Agent) BeginWalk(target string) error {
	if target == "" {
		return fmt.Errorf("walk target is required")
	}
	if target == a.CurrentRoom {
		return fmt.Errorf("walk target equals current room: %s", target)
	}
	a.ActivityState = ActivityWalking
	a.TargetRoom = target
	return nil
}

// ArriveAt 完成移动：离开 walking 状态时清空目标并落位
func (a *Agent) ArriveAt(state ActivityState) {
	if a.TargetRoom != "" {
		a.CurrentRoom = a.TargetRoom
	}
	a.TargetRoom = ""
	a.ActivityState = state
}

// Sleep 进入睡眠（sleep_state=sleeping 时 activity_state 只能是 sleeping/at_home）
func (a *Agent) Sleep() {
	a.SleepState = SleepSleeping
	a.TargetRoom = ""
	a.ActivityState = ActivitySleeping
}

// Wake 唤醒。工作日回到 idle，周末留在家
func (a *Agent) Wake(workday bool) {
	a.SleepState = SleepAwake
	if workday {
		a.ActivityState = ActivityIdle
	} else {
		a.ActivityState = ActivityAtHome
	}
}

// EnterMeeting 进入会议（员工已在会议房间内）
func (a *Agent) EnterMeeting() {
	a.TargetRoom = ""
	a.ActivityState = ActivityInMeeting
}

// EnterTraining 进入培训（员工已在培训房间内）
func (a *Agent) EnterTraining() {
	a.TargetRoom = ""
	a.ActivityState = ActivityInTraining
}

// ClockIn 上班打卡
func (a *Agent) ClockIn() {
	if a.ActivityState == ActivityAtHome || a.ActivityState == ActivityIdle {
		a.ActivityState = ActivityWorking
	}
}

// ClockOut 下班打卡：离开办公室回家
func (a *Agent) ClockOut() {
	a.TargetRoom = ""
	a.ActivityState = ActivityAtHome
}

// Deactivate 离职：退出状态机，位置字段冻结
func (a *Agent) Deactivate() {
	a.Status = AgentStatusInactive
	a.TargetRoom = ""
}

// CheckInvariants 校验状态机不变式，返回首个违反项
func (a *Agent) CheckInvariants() error {
	if !a.ActivityState.Valid() {
		return fmt.Errorf("invalid activity_state: %s", a.ActivityState)
	}
	if !a.SleepState.Valid() {
		return fmt.Errorf("invalid sleep_state: %s", a.SleepState)
	}
	if a.ActivityState == ActivityWalking {
		if a.TargetRoom == "" {
			return fmt.Errorf("walking agent has empty target_room")
		}
		if a.TargetRoom == a.CurrentRoom {
			return fmt.Errorf("walking agent target equals current room: %s", a.TargetRoom)
		}
	}
	if a.SleepState == SleepSleeping {
		if a.ActivityState != ActivitySleeping && a.ActivityState != ActivityAtHome {
			return fmt.Errorf("sleeping agent has activity_state %s", a.ActivityState)
		}
	}
	return nil
}
