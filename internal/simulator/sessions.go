package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"

	"go.uber.org/zap"
)

// 会议/培训房间的基础名称
const (
	MeetingRoomBaseName  = "Meeting Room"
	TrainingRoomBaseName = "Training Room"
)

// SweepResult 一次会话扫描的结果
type SweepResult struct {
	Started   int `json:"started"`
	Completed int `json:"completed"`
}

// durationMinutes 按 UTC 统一计算会话时长（分钟，四舍五入）
func durationMinutes(start, end time.Time) int {
	return int(domain.Elapsed(end, start).Round(time.Minute) / time.Minute)
}

// relocateOutOf 会话关闭后仍滞留在会话房间的参与者被移出：
// 回工位有空位走工位，否则走本层溢出房间
// 参与者记录缺失只告警跳过，不中断扫描
func relocateOutOf(ctx context.Context, r *repository.Repos, movement *Movement, agentID, sessionRoom string, logger *zap.Logger) {
	agent, err := r.Agents.GetAgent(ctx, agentID)
	if err != nil {
		logger.Warn("Participant missing at session close, skipping",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
		return
	}
	if !agent.Active() || agent.CurrentRoom != sessionRoom {
		return
	}

	// 会话中被强制入睡的参与者原地保持睡眠，等唤醒窗口再移动
	if agent.SleepState == domain.SleepSleeping {
		agent.Sleep()
		if err := r.Agents.UpdateAgentState(ctx, agent); err != nil {
			logger.Error("Failed to persist relocation",
				zap.String("agent_id", agentID),
				zap.Error(err),
			)
		}
		return
	}

	dest, err := movement.AssignDestination(ctx, r, agent)
	if err != nil {
		logger.Warn("Failed to pick relocation destination",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
		return
	}
	if dest == "" {
		agent.ArriveAt(domain.ActivityIdle)
	} else if err := agent.BeginWalk(dest); err != nil {
		agent.ArriveAt(domain.ActivityIdle)
	}
	if err := r.Agents.UpdateAgentState(ctx, agent); err != nil {
		logger.Error("Failed to persist relocation",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
	}
}

// logSessionActivity 会话生命周期事件入活动日志
func logSessionActivity(ctx context.Context, r *repository.Repos, activityType domain.ActivityType, agentID, description string, metadata []byte, logger *zap.Logger) {
	a := &domain.Activity{
		ActivityType: activityType,
		AgentID:      agentID,
		Description:  description,
	}
	if len(metadata) > 0 {
		a.Metadata = metadata
	}
	if _, err := r.Activities.AppendActivity(ctx, a); err != nil {
		logger.Error("Failed to append session activity", zap.Error(err))
	}
}

// canJoinSession 员工当前是否可以被拉入新会话
func canJoinSession(agent *domain.Agent) bool {
	if !agent.Active() || agent.SleepState == domain.SleepSleeping {
		return false
	}
	switch agent.ActivityState {
	case domain.ActivityIdle, domain.ActivityWorking:
		return true
	}
	return false
}

// sendToSessionRoom 把参与者带进会话房间：已在房间直接落座，否则开始走过去
func sendToSessionRoom(ctx context.Context, r *repository.Repos, agent *domain.Agent, room string, enter func(*domain.Agent)) error {
	if agent.CurrentRoom == room {
		enter(agent)
	} else if err := agent.BeginWalk(room); err != nil {
		return fmt.Errorf("failed to start walk to session room: %w", err)
	}
	return r.Agents.UpdateAgentState(ctx, agent)
}
