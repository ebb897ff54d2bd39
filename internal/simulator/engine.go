package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/broadcast"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/clock"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/config"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/narrative"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"
)

const publishTimeout = 5 * time.Second

// TickSummary 单个 tick 的汇总，提交后广播给观察端
type TickSummary struct {
	Tick          int64       `json:"tick"`
	Agents        int         `json:"agents"`
	Updated       int         `json:"updated"`
	AgentErrors   int         `json:"agent_errors"`
	IsSleepPeriod bool        `json:"is_sleep_period"`
	SleepEnforced int         `json:"sleep_enforced"`
	WakeEnforced  int         `json:"wake_enforced"`
	Meetings      SweepResult `json:"meetings"`
	Trainings     SweepResult `json:"trainings"`
	ClockIns      int         `json:"clock_ins"`
	ClockOuts     int         `json:"clock_outs"`
	Activities    []string    `json:"activities,omitempty"`
}

// Engine 仿真引擎：按固定节奏驱动所有子系统，每 tick 一个事务
type Engine struct {
	cfg         *config.Config
	store       repository.Store
	registry    *rooms.Registry
	clk         *clock.Clock
	movement    *Movement
	sleep       *SleepEnforcer
	meetings    *Meetings
	trainings   *Trainings
	clockEvents *ClockEvents
	sink        broadcast.Sink
	rng         *rand.Rand
	logger      *zap.Logger

	tickCount int64
	stopCh    chan struct{}
}

// NewEngine 组装引擎及其全部子系统
func NewEngine(
	cfg *config.Config,
	store repository.Store,
	registry *rooms.Registry,
	clk *clock.Clock,
	generator narrative.Generator,
	sink broadcast.Sink,
	rng *rand.Rand,
	logger *zap.Logger,
) (*Engine, error) {
	movement := NewMovement(registry, cfg.Simulator.WalkTicks, logger)
	sleep, err := NewSleepEnforcer(
		clk,
		cfg.Simulator.SleepStart,
		cfg.Simulator.SleepEnd,
		cfg.Simulator.WakeEnd,
		cfg.Simulator.RoamChance,
		rng,
		movement,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build sleep enforcer: %w", err)
	}

	return &Engine{
		cfg:         cfg,
		store:       store,
		registry:    registry,
		clk:         clk,
		movement:    movement,
		sleep:       sleep,
		meetings:    NewMeetings(registry, movement, clk, generator, cfg.Simulator.MeetingMaxMinutes, rng, logger),
		trainings:   NewTrainings(registry, movement, clk, generator, cfg.Simulator.TrainingMaxMinutes, rng, logger),
		clockEvents: NewClockEvents(clk, sleep, cfg.Simulator.ShiftMaxMinutes, cfg.Simulator.MinStaffing, logger),
		sink:        sink,
		rng:         rng,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}, nil
}

// SleepEnforcer 暴露睡眠子系统（供缓存注入）
func (e *Engine) SleepEnforcer() *SleepEnforcer {
	return e.sleep
}

// Run 启动 tick 循环，直到 ctx 取消或 Stop 被调用
// tick 串行执行，绝不重叠；单 tick 失败记日志后等下个周期
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.TickDuration()
	e.logger.Info("Simulation engine started",
		zap.Duration("tick_interval", interval),
		zap.String("timezone", e.clk.Location().String()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Simulation engine stopped", zap.Int64("ticks", e.tickCount))
			return ctx.Err()
		case <-e.stopCh:
			e.logger.Info("Simulation engine stopped", zap.Int64("ticks", e.tickCount))
			return nil
		case <-ticker.C:
			e.runTick(ctx)
		}
	}
}

// Stop 请求停止 tick 循环
func (e *Engine) Stop() {
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
}

func (e *Engine) runTick(ctx context.Context) {
	e.tickCount++
	started := time.Now()
	summary := TickSummary{Tick: e.tickCount, IsSleepPeriod: e.sleep.IsSleepPeriod()}

	// 事务回滚时移动进度一并回退，保持与持久化状态一致
	walkProgress := e.movement.SnapshotProgress()
	err := e.store.RunTick(ctx, func(ctx context.Context, r *repository.Repos) error {
		return e.tick(ctx, r, &summary)
	})
	if err != nil {
		e.movement.RestoreProgress(walkProgress)
		e.logger.Error("Tick failed, changes rolled back",
			zap.Int64("tick", e.tickCount),
			zap.Error(err),
		)
		return
	}

	e.logger.Info("Tick completed",
		zap.Int64("tick", e.tickCount),
		zap.Int("agents", summary.Agents),
		zap.Int("updated", summary.Updated),
		zap.Int("agent_errors", summary.AgentErrors),
		zap.Duration("elapsed", time.Since(started)),
	)

	e.publish(ctx, summary)
}

// tick 在单个事务内执行一轮仿真
func (e *Engine) tick(ctx context.Context, r *repository.Repos, summary *TickSummary) error {
	agents, err := r.Agents.ListActiveAgents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active agents: %w", err)
	}
	summary.Agents = len(agents)
	if len(agents) == 0 {
		e.logger.Info("No active agents, idle tick", zap.Int64("tick", e.tickCount))
	}

	for _, agent := range agents {
		changed, sleepAction, err := e.updateAgent(ctx, r, agent)
		if err != nil {
			// 单个员工出错不拖垮整个 tick
			summary.AgentErrors++
			e.logger.Error("Agent update failed",
				zap.String("agent_id", agent.AgentID),
				zap.String("name", agent.Name),
				zap.Error(err),
			)
			continue
		}
		if changed {
			summary.Updated++
		}
		switch sleepAction {
		case "sleep":
			summary.SleepEnforced++
		case "wake":
			summary.WakeEnforced++
		}
	}

	slept, woke, err := e.sleep.EnforceDependents(ctx, r)
	if err != nil {
		e.logger.Error("Dependent sleep enforcement failed", zap.Error(err))
	}
	summary.SleepEnforced += slept
	summary.WakeEnforced += woke

	if e.rng.Float64() < e.cfg.Simulator.SessionChance {
		if _, err := e.meetings.Generate(ctx, r); err != nil {
			e.logger.Error("Meeting generation failed", zap.Error(err))
		}
	}
	if e.rng.Float64() < e.cfg.Simulator.SessionChance {
		if _, err := e.trainings.Generate(ctx, r); err != nil {
			e.logger.Error("Training generation failed", zap.Error(err))
		}
	}

	if summary.Meetings, err = e.meetings.Sweep(ctx, r); err != nil {
		e.logger.Error("Meeting sweep failed", zap.Error(err))
	}
	if summary.Trainings, err = e.trainings.Sweep(ctx, r); err != nil {
		e.logger.Error("Training sweep failed", zap.Error(err))
	}

	if summary.ClockIns, err = e.clockEvents.Generate(ctx, r); err != nil {
		e.logger.Error("Clock-in generation failed", zap.Error(err))
	}
	closed, err := e.clockEvents.Sweep(ctx, r)
	if err != nil {
		e.logger.Error("Clock event sweep failed", zap.Error(err))
	}
	summary.ClockOuts = closed.Completed

	e.sleep.CacheStats(ctx, r)

	recent, err := r.Activities.ListRecentActivities(ctx, 20)
	if err != nil {
		e.logger.Warn("Failed to load recent activities", zap.Error(err))
		return nil
	}
	for _, act := range recent {
		summary.Activities = append(summary.Activities, act.Description)
	}
	return nil
}

// updateAgent 对单个员工执行一轮：睡眠策略、移动自愈、移动推进、随机起身
// 返回本轮是否落库以及睡眠策略动作（"sleep"/"wake"/""，并入 tick 摘要）
func (e *Engine) updateAgent(ctx context.Context, r *repository.Repos, agent *domain.Agent) (changed bool, sleepAction string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("agent update panicked: %v", rec)
		}
	}()

	before := *agent

	sleepAction = e.sleep.EnforceAgent(agent)
	if sleepAction != "" {
		e.sleep.RecordTransition(ctx, r, agent.AgentID, agent.Name, sleepAction)
	}

	if _, err := e.movement.Repair(ctx, r, agent); err != nil {
		return false, sleepAction, err
	}

	arrived, err := e.movement.Advance(ctx, r, agent)
	if err != nil {
		return false, sleepAction, err
	}
	if arrived {
		logSessionActivity(ctx, r, domain.ActivityTypeMovement, agent.AgentID,
			fmt.Sprintf("%s arrived at %s", agent.Name, agent.CurrentRoom), nil, e.logger)
	}

	if err := e.maybeRoam(ctx, r, agent); err != nil {
		return false, sleepAction, err
	}

	if err := agent.CheckInvariants(); err != nil {
		// 不变量破损说明上游有缺陷，记录后仍然落库，下个 tick 自愈
		e.logger.Error("Agent invariant violated",
			zap.String("agent_id", agent.AgentID),
			zap.Error(err),
		)
	}

	if *agent == before {
		return false, sleepAction, nil
	}
	if err := r.Agents.UpdateAgentState(ctx, agent); err != nil {
		return false, sleepAction, fmt.Errorf("failed to persist agent state: %w", err)
	}
	return true, sleepAction, nil
}

// maybeRoam 闲置员工按概率起身，去本层一个有空位的随机房间
func (e *Engine) maybeRoam(ctx context.Context, r *repository.Repos, agent *domain.Agent) error {
	if agent.ActivityState != domain.ActivityIdle || agent.SleepState != domain.SleepAwake {
		return nil
	}
	if e.rng.Float64() >= e.cfg.Simulator.RoamChance {
		return nil
	}

	var candidates []string
	for _, room := range e.registry.Rooms() {
		if room.Floor != agent.Floor {
			continue
		}
		key := domain.RoomKey(room.BaseName, room.Floor)
		if key == agent.CurrentRoom {
			continue
		}
		hasSpace, err := e.registry.HasSpace(ctx, r.Agents, key, agent.AgentID)
		if err != nil {
			return fmt.Errorf("failed to check room capacity: %w", err)
		}
		if hasSpace {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	target := candidates[e.rng.Intn(len(candidates))]
	if err := agent.BeginWalk(target); err != nil {
		return nil
	}
	e.movement.Forget(agent.AgentID)
	e.logger.Debug("Agent roaming",
		zap.String("agent_id", agent.AgentID),
		zap.String("target_room", target),
	)
	return nil
}

// publish 提交后把汇总推给广播端，限时且吞掉失败
func (e *Engine) publish(ctx context.Context, summary TickSummary) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("Broadcast publish panicked", zap.Any("panic", rec))
		}
	}()

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	event := broadcast.Event{
		Type:      "tick_summary",
		ID:        fmt.Sprintf("tick-%d", summary.Tick),
		Payload:   summary,
		Timestamp: e.clk.NowUTC(),
	}
	if err := e.sink.Publish(pubCtx, event); err != nil {
		e.logger.Warn("Broadcast publish failed", zap.Error(err))
	}
}
