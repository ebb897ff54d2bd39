package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/clock"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"

	"go.uber.org/zap"
)

// SleepReport 一次睡眠策略执行的结果
type SleepReport struct {
	EnforcedSleep int  `json:"enforced_sleep"`
	EnforcedWake  int  `json:"enforced_wake"`
	IsSleepPeriod bool `json:"is_sleep_period"`
}

// SleepingStats 睡眠统计（只读，按员工/家属分组）
type SleepingStats struct {
	AgentsSleeping     int `json:"agents_sleeping"`
	DependentsSleeping int `json:"dependents_sleeping"`
}

// StatsCache 统计缓存（Redis 实现，单元测试用内存假实现）
type StatsCache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// SleepingStatsKey 睡眠统计的缓存键
const SleepingStatsKey = "office:stats:sleeping"

// SleepEnforcer 睡眠策略执行器
// 夜间窗口强制入睡，工作日晨间窗口强制起床；判定用本地民用日历
type SleepEnforcer struct {
	clk        *clock.Clock
	sleepStart int // 距午夜分钟数
	sleepEnd   int
	wakeEnd    int
	roamChance float64
	rng        *rand.Rand
	movement   *Movement
	statsCache StatsCache // 可为 nil
	logger     *zap.Logger
}

// NewSleepEnforcer 创建睡眠策略执行器
// sleepStart/sleepEnd/wakeEnd 为 "HH:MM"；roamChance 是家属每 tick 的游走概率
func NewSleepEnforcer(clk *clock.Clock, sleepStart, sleepEnd, wakeEnd string, roamChance float64, rng *rand.Rand, movement *Movement, logger *zap.Logger) (*SleepEnforcer, error) {
	start, err := clock.ParseClockTime(sleepStart)
	if err != nil {
		return nil, fmt.Errorf("invalid sleep start: %w", err)
	}
	end, err := clock.ParseClockTime(sleepEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid sleep end: %w", err)
	}
	wake, err := clock.ParseClockTime(wakeEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid wake end: %w", err)
	}
	return &SleepEnforcer{
		clk:        clk,
		sleepStart: start,
		sleepEnd:   end,
		wakeEnd:    wake,
		roamChance: roamChance,
		rng:        rng,
		movement:   movement,
		logger:     logger,
	}, nil
}

// SetStatsCache 注入统计缓存（尽力写入，失败只记日志）
func (s *SleepEnforcer) SetStatsCache(cache StatsCache) {
	s.statsCache = cache
}

// IsSleepPeriod 当前是否处于夜间强制睡眠窗口
func (s *SleepEnforcer) IsSleepPeriod() bool {
	return clock.InWindow(s.clk.MinuteOfDay(), s.sleepStart, s.sleepEnd)
}

// IsWakePeriod 当前是否处于工作日晨间强制起床窗口
func (s *SleepEnforcer) IsWakePeriod() bool {
	return s.clk.IsWorkday() && clock.InWindow(s.clk.MinuteOfDay(), s.sleepEnd, s.wakeEnd)
}

// EnforceAgent 对单个员工应用睡眠策略，返回 "sleep"/"wake"/""
// 稳定时段内重复执行是零变更（幂等）
func (s *SleepEnforcer) EnforceAgent(agent *domain.Agent) string {
	if s.IsSleepPeriod() {
		if agent.SleepState == domain.SleepAwake {
			s.movement.Forget(agent.AgentID)
			agent.Sleep()
			return "sleep"
		}
		return ""
	}
	if s.IsWakePeriod() && agent.SleepState == domain.SleepSleeping {
		agent.Wake(s.clk.IsWorkday())
		return "wake"
	}
	return ""
}

// EnforceDependent 对单个家属应用睡眠策略
func (s *SleepEnforcer) EnforceDependent(dep *domain.Dependent) string {
	if s.IsSleepPeriod() {
		if dep.SleepState == domain.SleepAwake {
			dep.SleepState = domain.SleepSleeping
			dep.CurrentLocation = domain.LocationInside
			return "sleep"
		}
		return ""
	}
	if s.IsWakePeriod() && dep.SleepState == domain.SleepSleeping {
		dep.SleepState = domain.SleepAwake
		return "wake"
	}
	return ""
}

// RoamDependent 清醒家属按注入概率在室内/室外之间游走
func (s *SleepEnforcer) RoamDependent(dep *domain.Dependent) bool {
	if dep.SleepState != domain.SleepAwake {
		return false
	}
	if s.rng.Float64() >= s.roamChance {
		return false
	}
	if dep.CurrentLocation == domain.LocationInside {
		dep.CurrentLocation = domain.LocationOutside
	} else {
		dep.CurrentLocation = domain.LocationInside
	}
	return true
}

// Enforce 对全体员工与家属执行一轮睡眠策略并持久化变更
func (s *SleepEnforcer) Enforce(ctx context.Context, r *repository.Repos) (SleepReport, error) {
	report := SleepReport{IsSleepPeriod: s.IsSleepPeriod()}

	agents, err := r.Agents.ListActiveAgents(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load agents for sleep enforcement: %w", err)
	}
	for _, agent := range agents {
		action := s.EnforceAgent(agent)
		if action == "" {
			continue
		}
		if err := r.Agents.UpdateAgentState(ctx, agent); err != nil {
			s.logger.Error("Failed to persist sleep transition",
				zap.String("agent_id", agent.AgentID),
				zap.Error(err),
			)
			continue
		}
		s.RecordTransition(ctx, r, agent.AgentID, agent.Name, action)
		if action == "sleep" {
			report.EnforcedSleep++
		} else {
			report.EnforcedWake++
		}
	}

	slept, woke, err := s.EnforceDependents(ctx, r)
	if err != nil {
		return report, err
	}
	report.EnforcedSleep += slept
	report.EnforcedWake += woke

	s.CacheStats(ctx, r)
	return report, nil
}

// EnforceDependents 对全体家属执行睡眠策略与游走，返回入睡/唤醒数
func (s *SleepEnforcer) EnforceDependents(ctx context.Context, r *repository.Repos) (int, int, error) {
	deps, err := r.Dependents.ListAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load dependents for sleep enforcement: %w", err)
	}

	slept, woke := 0, 0
	for _, dep := range deps {
		action := s.EnforceDependent(dep)
		roamed := false
		if action == "" {
			roamed = s.RoamDependent(dep)
		}
		if action == "" && !roamed {
			continue
		}
		if err := r.Dependents.UpdateDependentState(ctx, dep); err != nil {
			s.logger.Error("Failed to persist dependent transition",
				zap.String("dependent_id", dep.DependentID),
				zap.Error(err),
			)
			continue
		}
		if action == "sleep" {
			slept++
		} else if action == "wake" {
			woke++
		}
	}
	return slept, woke, nil
}

// SleepingStats 当前睡眠人数统计（只读，不产生任何状态变更）
func (s *SleepEnforcer) SleepingStats(ctx context.Context, r *repository.Repos) (SleepingStats, error) {
	var stats SleepingStats
	var err error

	stats.AgentsSleeping, err = r.Agents.CountSleeping(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count sleeping agents: %w", err)
	}
	stats.DependentsSleeping, err = r.Dependents.CountSleeping(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count sleeping dependents: %w", err)
	}
	return stats, nil
}

// RecordTransition 记录一次睡眠/唤醒活动
func (s *SleepEnforcer) RecordTransition(ctx context.Context, r *repository.Repos, agentID, name, action string) {
	activityType := domain.ActivityTypeSleep
	description := fmt.Sprintf("%s went to sleep", name)
	if action == "wake" {
		activityType = domain.ActivityTypeWake
		description = fmt.Sprintf("%s woke up", name)
	}
	if _, err := r.Activities.AppendActivity(ctx, &domain.Activity{
		ActivityType: activityType,
		AgentID:      agentID,
		Description:  description,
	}); err != nil {
		s.logger.Error("Failed to append sleep activity", zap.Error(err))
	}
}

// CacheStats 把睡眠统计写入缓存供观察端读取（尽力而为）
func (s *SleepEnforcer) CacheStats(ctx context.Context, r *repository.Repos) {
	if s.statsCache == nil {
		return
	}
	stats, err := s.SleepingStats(ctx, r)
	if err != nil {
		s.logger.Warn("Failed to compute sleeping stats for cache", zap.Error(err))
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.statsCache.Set(ctx, SleepingStatsKey, string(data), 5*time.Minute); err != nil {
		s.logger.Warn("Failed to cache sleeping stats", zap.Error(err))
	}
}
