package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"
)

type fakeStatsCache struct {
	keys   []string
	values []string
}

func (f *fakeStatsCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return nil
}

func TestSleepPeriodWeekdayNight(t *testing.T) {
	registry := rooms.NewRegistry(1)
	enforcer := testEnforcer(t, mondayAt(23, 0), 0, testMovement(registry))

	assert.True(t, enforcer.IsSleepPeriod())
	assert.False(t, enforcer.IsWakePeriod())

	agent := &domain.Agent{
		AgentID:       "a-1",
		Name:          "Nia Iverson",
		ActivityState: domain.ActivityWorking,
		SleepState:    domain.SleepAwake,
		CurrentRoom:   "Office 1F",
		HomeRoom:      "Office 1F",
		Status:        domain.AgentStatusActive,
	}
	assert.Equal(t, "sleep", enforcer.EnforceAgent(agent))
	assert.Equal(t, domain.SleepSleeping, agent.SleepState)
	assert.Equal(t, domain.ActivitySleeping, agent.ActivityState)
	require.NoError(t, agent.CheckInvariants())

	// 稳定时段内重复执行零变更
	assert.Empty(t, enforcer.EnforceAgent(agent))
}

func TestSleepInterruptsWalk(t *testing.T) {
	registry := rooms.NewRegistry(1)
	enforcer := testEnforcer(t, mondayAt(22, 30), 0, testMovement(registry))

	agent := &domain.Agent{
		AgentID:       "a-2",
		Name:          "Omar Kensington",
		ActivityState: domain.ActivityWalking,
		SleepState:    domain.SleepAwake,
		CurrentRoom:   "Kitchen 1F",
		TargetRoom:    "Office 1F",
		HomeRoom:      "Office 1F",
		Status:        domain.AgentStatusActive,
	}
	assert.Equal(t, "sleep", enforcer.EnforceAgent(agent))
	assert.Empty(t, agent.TargetRoom)
	require.NoError(t, agent.CheckInvariants())
}

func TestWakeWindowWorkdayOnly(t *testing.T) {
	registry := rooms.NewRegistry(1)

	weekday := testEnforcer(t, mondayAt(6, 0), 0, testMovement(registry))
	assert.True(t, weekday.IsWakePeriod())

	agent := &domain.Agent{
		AgentID:       "a-3",
		Name:          "Pia Langley",
		ActivityState: domain.ActivitySleeping,
		SleepState:    domain.SleepSleeping,
		CurrentRoom:   "Office 1F",
		HomeRoom:      "Office 1F",
		Status:        domain.AgentStatusActive,
	}
	assert.Equal(t, "wake", weekday.EnforceAgent(agent))
	assert.Equal(t, domain.ActivityIdle, agent.ActivityState)

	// 周六同一时刻不强制起床
	weekend := testEnforcer(t, saturdayAt(6, 0), 0, testMovement(registry))
	assert.False(t, weekend.IsWakePeriod())
	sleeping := &domain.Agent{
		AgentID:       "a-4",
		Name:          "Quinn Merritt",
		ActivityState: domain.ActivitySleeping,
		SleepState:    domain.SleepSleeping,
		CurrentRoom:   "Office 1F",
		HomeRoom:      "Office 1F",
		Status:        domain.AgentStatusActive,
	}
	assert.Empty(t, weekend.EnforceAgent(sleeping))
	assert.Equal(t, domain.SleepSleeping, sleeping.SleepState)
}

func TestRoamDependentFlipsLocation(t *testing.T) {
	registry := rooms.NewRegistry(1)

	always := testEnforcer(t, mondayAt(14, 0), 1.0, testMovement(registry))
	dep := &domain.Dependent{
		DependentID:     "d-1",
		Name:            "Biscuit",
		Kind:            domain.DependentPet,
		SleepState:      domain.SleepAwake,
		CurrentLocation: domain.LocationInside,
	}
	assert.True(t, always.RoamDependent(dep))
	assert.Equal(t, domain.LocationOutside, dep.CurrentLocation)

	never := testEnforcer(t, mondayAt(14, 0), 0, testMovement(registry))
	assert.False(t, never.RoamDependent(dep))
	assert.Equal(t, domain.LocationOutside, dep.CurrentLocation)

	// 睡眠中的家属不游走
	dep.SleepState = domain.SleepSleeping
	assert.False(t, always.RoamDependent(dep))
}

func TestEnforcePersistsAndCachesStats(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	enforcer := testEnforcer(t, mondayAt(23, 0), 0, testMovement(registry))

	cache := &fakeStatsCache{}
	enforcer.SetStatsCache(cache)

	agent := seedAgent(t, r, "Rae Norwood", 1)
	_, err := r.Dependents.CreateDependent(context.Background(), &domain.Dependent{
		AgentID:    agent.AgentID,
		Name:       "Milo",
		Kind:       domain.DependentPet,
		SleepState: domain.SleepAwake,
	})
	require.NoError(t, err)

	report, err := enforcer.Enforce(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, report.IsSleepPeriod)
	assert.Equal(t, 2, report.EnforcedSleep)
	assert.Zero(t, report.EnforcedWake)

	stored, err := r.Agents.GetAgent(context.Background(), agent.AgentID)
	require.NoError(t, err)
	assert.Equal(t, domain.SleepSleeping, stored.SleepState)

	require.Len(t, cache.keys, 1)
	assert.Equal(t, SleepingStatsKey, cache.keys[0])
	assert.Contains(t, cache.values[0], `"agents_sleeping":1`)

	// 第二轮幂等：无新增变更
	report, err = enforcer.Enforce(context.Background(), r)
	require.NoError(t, err)
	assert.Zero(t, report.EnforcedSleep)
	assert.Zero(t, report.EnforcedWake)
}
