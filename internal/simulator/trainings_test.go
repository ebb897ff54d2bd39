package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/narrative"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"
)

func testTrainings(t *testing.T, registry *rooms.Registry, at time.Time) *Trainings {
	t.Helper()

	generator := narrative.NewClient("", "", time.Second, zap.NewNop())
	return NewTrainings(registry, testMovement(registry), fixedClock(at), generator, 30, testRng(), zap.NewNop())
}

func TestGenerateTraining(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	trainings := testTrainings(t, registry, mondayAt(10, 0))

	agent := seedAgent(t, r, "Nora Olsen", 1)

	session, err := trainings.Generate(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, agent.AgentID, session.AgentID)
	assert.Equal(t, domain.RoomKey(TrainingRoomBaseName, 1), session.Room)
	assert.Equal(t, domain.SessionScheduled, session.Status)
	assert.NotEmpty(t, session.Topic)

	// 同一员工不会叠加第二场未结束培训
	second, err := trainings.Generate(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestGenerateTrainingSkipsFullRoom(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	trainings := testTrainings(t, registry, mondayAt(10, 0))

	room := domain.RoomKey(TrainingRoomBaseName, 1)
	fillRoom(t, r, room, 1, registry.Capacity(room))

	// fillRoom 的占位员工也可被选中，但教室没空位，谁都安排不进去
	seedAgent(t, r, "Otis Pratt", 1)

	session, err := trainings.Generate(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSweepCompletesOverdueTraining(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	now := mondayAt(10, 31)
	trainings := testTrainings(t, registry, now)

	room := domain.RoomKey(TrainingRoomBaseName, 1)
	agent := seedAgent(t, r, "Pam Quigley", 1)
	agent.CurrentRoom = room
	agent.EnterTraining()
	require.NoError(t, r.Agents.UpdateAgentState(context.Background(), agent))

	session := &domain.TrainingSession{
		AgentID:   agent.AgentID,
		Topic:     "Process retrospective",
		Room:      room,
		Floor:     1,
		Status:    domain.SessionInProgress,
		StartTime: mondayAt(10, 0),
	}
	_, err := r.Sessions.CreateTraining(context.Background(), session)
	require.NoError(t, err)

	result, err := trainings.Sweep(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)

	completed, err := r.Sessions.ListTrainingsByStatus(context.Background(), domain.SessionCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.NotNil(t, completed[0].DurationMins)
	assert.Equal(t, 31, *completed[0].DurationMins)
	require.NotNil(t, completed[0].EndTime)
	assert.Equal(t, now, completed[0].EndTime.UTC())

	got, err := r.Agents.GetAgent(context.Background(), agent.AgentID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.ActivityInTraining, got.ActivityState)
	require.NoError(t, got.CheckInvariants())
}

func TestSweepStartsScheduledTraining(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	trainings := testTrainings(t, registry, mondayAt(10, 0))

	agent := seedAgent(t, r, "Ros Stern", 1)
	session := &domain.TrainingSession{
		AgentID:   agent.AgentID,
		Topic:     "Onboarding checklist review",
		Room:      domain.RoomKey(TrainingRoomBaseName, 1),
		Floor:     1,
		Status:    domain.SessionScheduled,
		StartTime: mondayAt(9, 59),
	}
	_, err := r.Sessions.CreateTraining(context.Background(), session)
	require.NoError(t, err)

	result, err := trainings.Sweep(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Started)

	got, err := r.Agents.GetAgent(context.Background(), agent.AgentID)
	require.NoError(t, err)
	assert.True(t, got.Walking())
	assert.Equal(t, session.Room, got.TargetRoom)
}
