package repository

import (
	"context"
	"database/sql"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
)

// DBTX 数据库执行器抽象（*sql.DB 与 *sql.Tx 均满足）
// tick 事务内的仓库绑定到 *sql.Tx，事务外绑定到 *sql.DB
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AgentsRepository 员工仓库
type AgentsRepository interface {
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
	ListActiveAgents(ctx context.Context) ([]*domain.Agent, error)
	ListAgentNames(ctx context.Context) ([]string, error)
	CreateAgent(ctx context.Context, agent *domain.Agent) (string, error)
	UpdateAgentState(ctx context.Context, agent *domain.Agent) error
	DeactivateAgent(ctx context.Context, agentID string) error
	// CountInRoom 实时统计房间占用（含家属不计，家属无房间概念）
	// excludingAgentID 非空时排除该员工自身
	CountInRoom(ctx context.Context, room string, excludingAgentID string) (int, error)
	CountSleeping(ctx context.Context) (int, error)
}

// DependentsRepository 家属仓库
type DependentsRepository interface {
	ListByAgent(ctx context.Context, agentID string) ([]*domain.Dependent, error)
	ListAll(ctx context.Context) ([]*domain.Dependent, error)
	CreateDependent(ctx context.Context, dep *domain.Dependent) (string, error)
	UpdateDependentState(ctx context.Context, dep *domain.Dependent) error
	CountSleeping(ctx context.Context) (int, error)
}

// SessionsRepository 限时会话仓库（会议/培训/打卡）
type SessionsRepository interface {
	// 会议
	CreateMeeting(ctx context.Context, m *domain.Meeting) (string, error)
	ListMeetingsByStatus(ctx context.Context, status domain.SessionStatus) ([]*domain.Meeting, error)
	// HasActiveMeeting 参与者是否已有 scheduled/in_progress 的会议
	HasActiveMeeting(ctx context.Context, agentID string) (bool, error)
	UpdateMeeting(ctx context.Context, m *domain.Meeting) error

	// 培训
	CreateTraining(ctx context.Context, t *domain.TrainingSession) (string, error)
	ListTrainingsByStatus(ctx context.Context, status domain.SessionStatus) ([]*domain.TrainingSession, error)
	HasActiveTraining(ctx context.Context, agentID string) (bool, error)
	UpdateTraining(ctx context.Context, t *domain.TrainingSession) error

	// 打卡
	CreateClockEvent(ctx context.Context, e *domain.ClockEvent) (string, error)
	ListOpenClockEvents(ctx context.Context) ([]*domain.ClockEvent, error)
	HasOpenClockEvent(ctx context.Context, agentID string) (bool, error)
	CountOpenClockEvents(ctx context.Context) (int, error)
	UpdateClockEvent(ctx context.Context, e *domain.ClockEvent) error
}

// ActivitiesRepository 活动日志仓库（append-only）
type ActivitiesRepository interface {
	AppendActivity(ctx context.Context, a *domain.Activity) (string, error)
	ListRecentActivities(ctx context.Context, limit int) ([]*domain.Activity, error)
}

// Repos 一次 tick 事务内可用的仓库集合
type Repos struct {
	Agents     AgentsRepository
	Dependents DependentsRepository
	Sessions   SessionsRepository
	Activities ActivitiesRepository
}

// Store 模拟状态存储
// RunTick 在单个事务内执行 fn：fn 返回错误则整个 tick 回滚，绝不落半截状态
type Store interface {
	// Repos 事务外访问（tick 之外的查询会与调度器竞争，使用方须在行动前重校验）
	Repos() *Repos
	RunTick(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error
	Close() error
}
