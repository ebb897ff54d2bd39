package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/clock"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"

	"go.uber.org/zap"
)

// ClockEvents 上下班打卡生命周期管理器
type ClockEvents struct {
	clk         *clock.Clock
	sleep       *SleepEnforcer
	maxMinutes  int // 单次在岗时长封顶
	minStaffing int // 工作时段在岗人数下限
	logger      *zap.Logger
}

// NewClockEvents 创建打卡管理器
func NewClockEvents(clk *clock.Clock, sleep *SleepEnforcer, maxMinutes, minStaffing int, logger *zap.Logger) *ClockEvents {
	return &ClockEvents{
		clk:         clk,
		sleep:       sleep,
		maxMinutes:  maxMinutes,
		minStaffing: minStaffing,
		logger:      logger,
	}
}

// workHours 当前是否处于工作时段（工作日且不在夜间/晨间窗口）
func (c *ClockEvents) workHours() bool {
	return c.clk.IsWorkday() && !c.sleep.IsSleepPeriod() && !c.sleep.IsWakePeriod()
}

// Generate 工作时段为到岗且未打卡的员工创建打卡记录
// 不变式：一个员工同一时间至多一条未关闭打卡记录
func (c *ClockEvents) Generate(ctx context.Context, r *repository.Repos) (int, error) {
	if !c.workHours() {
		return 0, nil
	}

	agents, err := r.Agents.ListActiveAgents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load agents for clock-in: %w", err)
	}

	clockedIn := 0
	for _, agent := range agents {
		if agent.SleepState == domain.SleepSleeping {
			continue
		}
		switch agent.ActivityState {
		case domain.ActivityIdle, domain.ActivityWorking, domain.ActivityAtHome:
		default:
			continue
		}
		open, err := r.Sessions.HasOpenClockEvent(ctx, agent.AgentID)
		if err != nil {
			c.logger.Warn("Failed to check open clock event",
				zap.String("agent_id", agent.AgentID),
				zap.Error(err),
			)
			continue
		}
		if open {
			continue
		}

		event := &domain.ClockEvent{
			AgentID:   agent.AgentID,
			Status:    domain.SessionInProgress,
			StartTime: c.clk.NowUTC(),
		}
		if _, err := r.Sessions.CreateClockEvent(ctx, event); err != nil {
			c.logger.Error("Failed to create clock event",
				zap.String("agent_id", agent.AgentID),
				zap.Error(err),
			)
			continue
		}
		agent.ClockIn()
		if err := r.Agents.UpdateAgentState(ctx, agent); err != nil {
			c.logger.Error("Failed to persist clock-in state",
				zap.String("agent_id", agent.AgentID),
				zap.Error(err),
			)
			continue
		}
		logSessionActivity(ctx, r, domain.ActivityTypeClockIn, agent.AgentID,
			fmt.Sprintf("%s clocked in", agent.Name), nil, c.logger)
		clockedIn++
	}
	return clockedIn, nil
}

// Sweep 关闭超时在岗记录（下班）
// 工作时段内尊重在岗人数下限：低于下限不再安排下班；夜间窗口无条件清场
func (c *ClockEvents) Sweep(ctx context.Context, r *repository.Repos) (SweepResult, error) {
	var result SweepResult
	now := c.clk.NowUTC()

	events, err := r.Sessions.ListOpenClockEvents(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list open clock events: %w", err)
	}
	if len(events) == 0 {
		return result, nil
	}

	onDuty := len(events)
	forceAll := c.sleep.IsSleepPeriod() || !c.clk.IsWorkday()

	for _, event := range events {
		expired := domain.Elapsed(now, event.StartTime) >= time.Duration(c.maxMinutes)*time.Minute
		if !expired && !forceAll {
			continue
		}
		if !forceAll && onDuty <= c.minStaffing {
			// 在岗人数到底线了，剩下的人先顶着
			break
		}

		endTime := now
		duration := durationMinutes(event.StartTime, endTime)
		event.Status = domain.SessionCompleted
		event.EndTime = &endTime
		event.DurationMins = &duration
		if err := r.Sessions.UpdateClockEvent(ctx, event); err != nil {
			c.logger.Error("Failed to close clock event",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			continue
		}
		onDuty--
		result.Completed++

		agent, err := r.Agents.GetAgent(ctx, event.AgentID)
		if err != nil {
			c.logger.Warn("Agent missing at clock-out, skipping",
				zap.String("agent_id", event.AgentID),
				zap.Error(err),
			)
			continue
		}
		if agent.Active() && agent.SleepState == domain.SleepAwake {
			agent.ClockOut()
			if err := r.Agents.UpdateAgentState(ctx, agent); err != nil {
				c.logger.Error("Failed to persist clock-out state",
					zap.String("agent_id", agent.AgentID),
					zap.Error(err),
				)
				continue
			}
		}
		logSessionActivity(ctx, r, domain.ActivityTypeClockOut, event.AgentID,
			fmt.Sprintf("%s clocked out after %d minutes", agent.Name, duration), nil, c.logger)
	}
	return result, nil
}
