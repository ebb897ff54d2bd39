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

func testMeetings(t *testing.T, registry *rooms.Registry, at time.Time) *Meetings {
	t.Helper()

	generator := narrative.NewClient("", "", time.Second, zap.NewNop())
	return NewMeetings(registry, testMovement(registry), fixedClock(at), generator, 30, testRng(), zap.NewNop())
}

func TestGenerateMeeting(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	meetings := testMeetings(t, registry, mondayAt(10, 0))

	for _, name := range []string{"Ana Bell", "Ben Cole", "Cam Drew", "Dee Esposito-Frank", "Ed Frost"} {
		seedAgent(t, r, name, 1)
	}

	meeting, err := meetings.Generate(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, meeting)

	assert.Equal(t, domain.SessionScheduled, meeting.Status)
	assert.Equal(t, domain.RoomKey(MeetingRoomBaseName, 1), meeting.Room)
	assert.NotEmpty(t, meeting.Topic)
	assert.GreaterOrEqual(t, len(meeting.ParticipantIDs), meetingMinParticipants)
	assert.LessOrEqual(t, len(meeting.ParticipantIDs), meetingMaxParticipants)
}

func TestGenerateMeetingOnePerParticipant(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	meetings := testMeetings(t, registry, mondayAt(10, 0))

	seedAgent(t, r, "Fay Gates", 1)
	seedAgent(t, r, "Gil Hart", 1)

	first, err := meetings.Generate(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, first)

	// 两人都已有未结束会议，第二次生成应空手而归
	second, err := meetings.Generate(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestGenerateMeetingSkipsSleepingAgents(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	meetings := testMeetings(t, registry, mondayAt(10, 0))

	awake := seedAgent(t, r, "Hal Irwin", 1)
	asleep := seedAgent(t, r, "Ivy Jones", 1)
	asleep.Sleep()
	require.NoError(t, r.Agents.UpdateAgentState(context.Background(), asleep))
	_ = awake

	meeting, err := meetings.Generate(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, meeting)
}

func TestSweepStartsScheduledMeeting(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	meetings := testMeetings(t, registry, mondayAt(10, 0))

	a := seedAgent(t, r, "Jon Kemp", 1)
	b := seedAgent(t, r, "Kim Lowe", 1)
	meeting := &domain.Meeting{
		Topic:          "Roadmap discussion",
		Room:           domain.RoomKey(MeetingRoomBaseName, 1),
		Floor:          1,
		Status:         domain.SessionScheduled,
		ParticipantIDs: []string{a.AgentID, b.AgentID},
		StartTime:      mondayAt(9, 59),
	}
	_, err := r.Sessions.CreateMeeting(context.Background(), meeting)
	require.NoError(t, err)

	result, err := meetings.Sweep(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Started)
	assert.Zero(t, result.Completed)

	inProgress, err := r.Sessions.ListMeetingsByStatus(context.Background(), domain.SessionInProgress)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)

	// 参与者不在会议室，应在赶来的路上
	got, err := r.Agents.GetAgent(context.Background(), a.AgentID)
	require.NoError(t, err)
	assert.True(t, got.Walking())
	assert.Equal(t, meeting.Room, got.TargetRoom)
}

func TestSweepCompletesOverdueMeeting(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	now := mondayAt(10, 31)
	meetings := testMeetings(t, registry, now)

	room := domain.RoomKey(MeetingRoomBaseName, 1)
	a := seedAgent(t, r, "Lex Moore", 1)
	b := seedAgent(t, r, "Mia Nash", 1)
	for _, agent := range []*domain.Agent{a, b} {
		agent.CurrentRoom = room
		agent.EnterMeeting()
		require.NoError(t, r.Agents.UpdateAgentState(context.Background(), agent))
	}

	meeting := &domain.Meeting{
		Topic:          "Budget walkthrough",
		Room:           room,
		Floor:          1,
		Status:         domain.SessionInProgress,
		ParticipantIDs: []string{a.AgentID, b.AgentID},
		StartTime:      mondayAt(10, 0),
	}
	_, err := r.Sessions.CreateMeeting(context.Background(), meeting)
	require.NoError(t, err)

	result, err := meetings.Sweep(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)

	completed, err := r.Sessions.ListMeetingsByStatus(context.Background(), domain.SessionCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.NotNil(t, completed[0].EndTime)
	require.NotNil(t, completed[0].DurationMins)
	assert.Equal(t, 31, *completed[0].DurationMins)

	// 滞留参与者被移出会议室
	for _, id := range []string{a.AgentID, b.AgentID} {
		got, err := r.Agents.GetAgent(context.Background(), id)
		require.NoError(t, err)
		assert.NotEqual(t, domain.ActivityInMeeting, got.ActivityState)
		assert.True(t, got.Walking() || got.CurrentRoom != room)
		require.NoError(t, got.CheckInvariants())
	}
}

func TestSweepKeepsSleepingParticipantAsleep(t *testing.T) {
	store := repository.NewMemoryStore()
	r := store.Repos()
	registry := rooms.NewRegistry(1)
	now := mondayAt(23, 0)
	meetings := testMeetings(t, registry, now)

	room := domain.RoomKey(MeetingRoomBaseName, 1)
	a := seedAgent(t, r, "Noa Ortiz", 1)
	b := seedAgent(t, r, "Pat Quinn", 1)
	for _, agent := range []*domain.Agent{a, b} {
		agent.CurrentRoom = room
		agent.EnterMeeting()
		require.NoError(t, r.Agents.UpdateAgentState(context.Background(), agent))
	}

	// 夜间策略把会议中的员工原地置为睡眠
	a.Sleep()
	a.CurrentRoom = room
	require.NoError(t, r.Agents.UpdateAgentState(context.Background(), a))

	meeting := &domain.Meeting{
		Topic:          "Release retro",
		Room:           room,
		Floor:          1,
		Status:         domain.SessionInProgress,
		ParticipantIDs: []string{a.AgentID, b.AgentID},
		StartTime:      mondayAt(22, 25),
	}
	_, err := r.Sessions.CreateMeeting(context.Background(), meeting)
	require.NoError(t, err)

	result, err := meetings.Sweep(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)

	// 睡着的参与者不移动，原地保持睡眠
	slept, err := r.Agents.GetAgent(context.Background(), a.AgentID)
	require.NoError(t, err)
	assert.Equal(t, domain.SleepSleeping, slept.SleepState)
	assert.Equal(t, domain.ActivitySleeping, slept.ActivityState)
	assert.Equal(t, room, slept.CurrentRoom)
	assert.Empty(t, slept.TargetRoom)
	require.NoError(t, slept.CheckInvariants())

	// 醒着的参与者照常被移出
	awake, err := r.Agents.GetAgent(context.Background(), b.AgentID)
	require.NoError(t, err)
	assert.True(t, awake.Walking() || awake.CurrentRoom != room)
	require.NoError(t, awake.CheckInvariants())
}
