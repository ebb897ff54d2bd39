package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/clock"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"
)

// 2025-03-03 is a Monday, 2025-03-08 is a Saturday.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2025, 3, 3, hour, minute, 0, 0, time.UTC)
}

func saturdayAt(hour, minute int) time.Time {
	return time.Date(2025, 3, 8, hour, minute, 0, 0, time.UTC)
}

func fixedClock(at time.Time) *clock.Clock {
	return clock.NewFixed(at, time.UTC)
}

func testRng() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

// seedAgent creates an idle awake agent with an office desk on the given floor.
func seedAgent(t *testing.T, r *repository.Repos, name string, floor int) *domain.Agent {
	t.Helper()

	office := domain.RoomKey("Office", floor)
	agent := &domain.Agent{
		Name:          name,
		Department:    "Engineering",
		Title:         "Engineer",
		Role:          "Employee",
		ActivityState: domain.ActivityIdle,
		SleepState:    domain.SleepAwake,
		CurrentRoom:   office,
		HomeRoom:      office,
		Floor:         floor,
		Status:        domain.AgentStatusActive,
	}
	_, err := r.Agents.CreateAgent(context.Background(), agent)
	require.NoError(t, err)
	return agent
}

// fillRoom parks enough filler agents in a room to reach its capacity.
func fillRoom(t *testing.T, r *repository.Repos, room string, floor, count int) {
	t.Helper()

	for i := 0; i < count; i++ {
		agent := &domain.Agent{
			Name:          fmt.Sprintf("Filler %s %d", room, i),
			Department:    "Operations",
			Title:         "Clerk",
			Role:          "Employee",
			ActivityState: domain.ActivityIdle,
			SleepState:    domain.SleepAwake,
			CurrentRoom:   room,
			HomeRoom:      room,
			Floor:         floor,
			Status:        domain.AgentStatusActive,
		}
		_, err := r.Agents.CreateAgent(context.Background(), agent)
		require.NoError(t, err)
	}
}

func testEnforcer(t *testing.T, at time.Time, roamChance float64, movement *Movement) *SleepEnforcer {
	t.Helper()

	enforcer, err := NewSleepEnforcer(
		fixedClock(at), "22:00", "05:30", "09:00",
		roamChance, testRng(), movement, zap.NewNop(),
	)
	require.NoError(t, err)
	return enforcer
}

func testMovement(registry *rooms.Registry) *Movement {
	return NewMovement(registry, 1, zap.NewNop())
}
