package simulator

import (
	"context"
	"fmt"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"

	"go.uber.org/zap"
)

// Movement 移动子系统
// 房间变更是逻辑落位，不做空间寻路；walkTicks 控制一次移动占用的 tick 数
type Movement struct {
	registry  *rooms.Registry
	walkTicks int
	logger    *zap.Logger

	// 每个移动中员工已累计的 tick 数（调度器单线程访问）
	progress map[string]int
}

// NewMovement 创建移动子系统
func NewMovement(registry *rooms.Registry, walkTicks int, logger *zap.Logger) *Movement {
	if walkTicks <= 0 {
		walkTicks = 1
	}
	return &Movement{
		registry:  registry,
		walkTicks: walkTicks,
		logger:    logger,
		progress:  map[string]int{},
	}
}

// AssignDestination 为缺少合法目标的员工选目的地：
// home_room 有空位则回工位，否则本层溢出房间
func (m *Movement) AssignDestination(ctx context.Context, r *repository.Repos, agent *domain.Agent) (string, error) {
	if agent.HomeRoom != "" && agent.HomeRoom != agent.CurrentRoom {
		hasSpace, err := m.registry.HasSpace(ctx, r.Agents, agent.HomeRoom, agent.AgentID)
		if err == nil && hasSpace {
			return agent.HomeRoom, nil
		}
		if err != nil {
			m.logger.Warn("Failed to check home room capacity",
				zap.String("agent_id", agent.AgentID),
				zap.String("room", agent.HomeRoom),
				zap.Error(err),
			)
		}
	}

	overflow := m.registry.DefaultOverflow(agent.Floor)
	if overflow == agent.CurrentRoom {
		return "", nil
	}
	return overflow, nil
}

// Repair 自愈：walking 但目标为空/非法/等于当前房间的员工，当个 tick 修正目标
// 状态合法时是幂等空操作。单次确定性修正，不做重试循环
func (m *Movement) Repair(ctx context.Context, r *repository.Repos, agent *domain.Agent) (bool, error) {
	if !agent.Walking() {
		return false, nil
	}

	valid := agent.TargetRoom != "" && agent.TargetRoom != agent.CurrentRoom
	if valid {
		if _, known := m.registry.Lookup(agent.TargetRoom); !known {
			valid = false
		}
	}
	if valid {
		return false, nil
	}

	dest, err := m.AssignDestination(ctx, r, agent)
	if err != nil {
		return false, fmt.Errorf("failed to assign destination: %w", err)
	}
	if dest == "" {
		// 无处可去：原地结束移动
		agent.ArriveAt(domain.ActivityIdle)
		delete(m.progress, agent.AgentID)
		return true, nil
	}

	agent.TargetRoom = dest
	m.progress[agent.AgentID] = 0
	m.logger.Debug("Repaired walking agent",
		zap.String("agent_id", agent.AgentID),
		zap.String("target_room", dest),
	)
	return true, nil
}

// Advance 推进一个移动中的员工，完成时落位并返回 true
// 落位前重新校验目的地容量：没位置就改派目的地，绝不超员
func (m *Movement) Advance(ctx context.Context, r *repository.Repos, agent *domain.Agent) (bool, error) {
	if !agent.Walking() {
		delete(m.progress, agent.AgentID)
		return false, nil
	}

	m.progress[agent.AgentID]++
	if m.progress[agent.AgentID] < m.walkTicks {
		return false, nil
	}

	hasSpace, err := m.registry.HasSpace(ctx, r.Agents, agent.TargetRoom, agent.AgentID)
	if err != nil {
		return false, fmt.Errorf("failed to check destination capacity: %w", err)
	}
	if !hasSpace {
		dest, err := m.AssignDestination(ctx, r, agent)
		if err != nil {
			return false, fmt.Errorf("failed to reassign destination: %w", err)
		}
		if dest == "" || dest == agent.TargetRoom {
			// 目的地仍然满员，下个 tick 再试
			m.progress[agent.AgentID] = m.walkTicks
			return false, nil
		}
		agent.TargetRoom = dest
		m.progress[agent.AgentID] = 0
		return false, nil
	}

	arrival := domain.ActivityIdle
	if agent.TargetRoom == agent.HomeRoom {
		arrival = domain.ActivityWorking
	}
	agent.ArriveAt(arrival)
	delete(m.progress, agent.AgentID)
	return true, nil
}

// Forget 清除某员工的移动进度（离职/睡眠打断移动时调用）
func (m *Movement) Forget(agentID string) {
	delete(m.progress, agentID)
}

// SnapshotProgress 复制当前移动进度，tick 回滚时配合 RestoreProgress 恢复
func (m *Movement) SnapshotProgress() map[string]int {
	snap := make(map[string]int, len(m.progress))
	for id, n := range m.progress {
		snap[id] = n
	}
	return snap
}

// RestoreProgress 把移动进度恢复到快照时刻
func (m *Movement) RestoreProgress(snap map[string]int) {
	m.progress = snap
}
