package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/broadcast"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/config"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/narrative"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"
)

type fakeSink struct {
	events []broadcast.Event
}

func (f *fakeSink) Publish(_ context.Context, event broadcast.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSink) Close() error { return nil }

// rollbackStore 执行 tick 后强制回滚，模拟提交失败
type rollbackStore struct {
	repository.Store
}

var errForcedRollback = errors.New("forced rollback")

func (s rollbackStore) RunTick(ctx context.Context, fn func(context.Context, *repository.Repos) error) error {
	return s.Store.RunTick(ctx, func(ctx context.Context, r *repository.Repos) error {
		if err := fn(ctx, r); err != nil {
			return err
		}
		return errForcedRollback
	})
}

func testEngineConfig(sessionChance float64) *config.Config {
	cfg := &config.Config{}
	cfg.Simulator.TickInterval = 1
	cfg.Simulator.Floors = 1
	cfg.Simulator.SleepStart = "22:00"
	cfg.Simulator.SleepEnd = "05:30"
	cfg.Simulator.WakeEnd = "09:00"
	cfg.Simulator.MeetingMaxMinutes = 30
	cfg.Simulator.TrainingMaxMinutes = 30
	cfg.Simulator.ShiftMaxMinutes = 600
	cfg.Simulator.MinStaffing = 2
	cfg.Simulator.WalkTicks = 1
	cfg.Simulator.RoamChance = 0
	cfg.Simulator.SessionChance = sessionChance
	return cfg
}

func testEngine(t *testing.T, store repository.Store, at time.Time, sessionChance float64) (*Engine, *fakeSink) {
	t.Helper()

	sink := &fakeSink{}
	registry := rooms.NewRegistry(1)
	generator := narrative.NewClient("", "", time.Second, zap.NewNop())
	engine, err := NewEngine(
		testEngineConfig(sessionChance),
		store,
		registry,
		fixedClock(at),
		generator,
		sink,
		testRng(),
		zap.NewNop(),
	)
	require.NoError(t, err)
	return engine, sink
}

func TestTickWithNoAgents(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, sink := testEngine(t, store, mondayAt(10, 0), 0)

	engine.runTick(context.Background())

	require.Len(t, sink.events, 1)
	assert.Equal(t, "tick_summary", sink.events[0].Type)

	summary, ok := sink.events[0].Payload.(TickSummary)
	require.True(t, ok)
	assert.Zero(t, summary.Agents)
	assert.Equal(t, int64(1), summary.Tick)
}

func TestTickRepairsBrokenWalkingAgent(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	engine, _ := testEngine(t, store, mondayAt(10, 0), 0)

	agent := seedAgent(t, r, "Ada Brook", 1)
	agent.ActivityState = domain.ActivityWalking
	agent.TargetRoom = ""
	require.NoError(t, r.Agents.UpdateAgentState(context.Background(), agent))

	engine.runTick(context.Background())

	got, err := r.Agents.GetAgent(context.Background(), agent.AgentID)
	require.NoError(t, err)
	require.NoError(t, got.CheckInvariants())
}

func TestTickEnforcesSleepAtNight(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	engine, sink := testEngine(t, store, mondayAt(23, 0), 0)

	agent := seedAgent(t, r, "Bea Cross", 1)
	_, err := r.Dependents.CreateDependent(context.Background(), &domain.Dependent{
		AgentID:    agent.AgentID,
		Name:       "Pepper",
		Kind:       domain.DependentPet,
		SleepState: domain.SleepAwake,
	})
	require.NoError(t, err)

	engine.runTick(context.Background())

	got, err := r.Agents.GetAgent(context.Background(), agent.AgentID)
	require.NoError(t, err)
	assert.Equal(t, domain.SleepSleeping, got.SleepState)

	deps, err := r.Dependents.ListByAgent(context.Background(), agent.AgentID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, domain.SleepSleeping, deps[0].SleepState)

	summary := sink.events[0].Payload.(TickSummary)
	assert.True(t, summary.IsSleepPeriod)
	// 员工与家属的入睡各计一次
	assert.Equal(t, 2, summary.SleepEnforced)
	assert.Equal(t, 0, summary.WakeEnforced)
	assert.NotEmpty(t, summary.Activities)
}

func TestTickRollbackRestoresWalkProgress(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()

	agent := seedAgent(t, r, "Gus Hale", 1)
	require.NoError(t, agent.BeginWalk(domain.RoomKey("Kitchen", 1)))
	require.NoError(t, r.Agents.UpdateAgentState(context.Background(), agent))

	cfg := testEngineConfig(0)
	cfg.Simulator.WalkTicks = 2
	sink := &fakeSink{}
	generator := narrative.NewClient("", "", time.Second, zap.NewNop())
	engine, err := NewEngine(cfg, rollbackStore{store}, rooms.NewRegistry(1),
		fixedClock(mondayAt(10, 0)), generator, sink, testRng(), zap.NewNop())
	require.NoError(t, err)

	// 提交失败的 tick 不消耗移动倒计时
	engine.runTick(context.Background())
	assert.Empty(t, sink.events)

	engine.store = store
	engine.runTick(context.Background())

	got, err := r.Agents.GetAgent(context.Background(), agent.AgentID)
	require.NoError(t, err)
	assert.True(t, got.Walking(), "walk should still need a full countdown after rollback")

	engine.runTick(context.Background())
	got, err = r.Agents.GetAgent(context.Background(), agent.AgentID)
	require.NoError(t, err)
	assert.False(t, got.Walking())
	assert.Equal(t, domain.RoomKey("Kitchen", 1), got.CurrentRoom)
}

func TestTickGeneratesAndStartsSessions(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	engine, _ := testEngine(t, store, mondayAt(10, 0), 1.0)

	for _, name := range []string{"Cal Dean", "Dot Ames", "Eva Ford", "Fox Gray"} {
		seedAgent(t, r, name, 1)
	}

	engine.runTick(context.Background())

	inProgress, err := r.Sessions.ListMeetingsByStatus(context.Background(), domain.SessionInProgress)
	require.NoError(t, err)
	assert.Len(t, inProgress, 1)

	// 所有员工在 tick 之后状态合法
	agents, err := r.Agents.ListActiveAgents(context.Background())
	require.NoError(t, err)
	for _, agent := range agents {
		require.NoError(t, agent.CheckInvariants())
	}
}

func TestRunStopsOnStop(t *testing.T) {
	store := repository.NewMemoryStore()
	engine, _ := testEngine(t, store, mondayAt(10, 0), 0)

	engine.Stop()

	done := make(chan error, 1)
	go func() { done <- engine.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}
}
