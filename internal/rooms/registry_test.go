package rooms

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
)

func TestNewRegistryLaysOutFloors(t *testing.T) {
	registry := NewRegistry(3)

	assert.Equal(t, 3, registry.Floors())
	assert.Len(t, registry.Rooms(), 3*len(defaultRooms))

	for floor := 1; floor <= 3; floor++ {
		room, ok := registry.Lookup(domain.RoomKey("Meeting Room", floor))
		require.True(t, ok)
		assert.Equal(t, 8, room.Capacity)
	}
	assert.Equal(t, 12, registry.Capacity("Office 2F"))
	assert.Zero(t, registry.Capacity("Rooftop 1F"))
}

func TestDefaultOverflow(t *testing.T) {
	registry := NewRegistry(2)

	assert.Equal(t, "Break Room 2F", registry.DefaultOverflow(2))
	// 越界楼层回落到一层
	assert.Equal(t, "Break Room 1F", registry.DefaultOverflow(0))
	assert.Equal(t, "Break Room 1F", registry.DefaultOverflow(9))
}

func TestHasSpace(t *testing.T) {
	registry := NewRegistry(1)
	store := repository.NewMemoryStore()
	r := store.Repos()
	ctx := context.Background()

	kitchen := "Kitchen 1F"
	capacity := registry.Capacity(kitchen)
	require.Equal(t, 4, capacity)

	for i := 0; i < capacity-1; i++ {
		_, err := r.Agents.CreateAgent(ctx, &domain.Agent{
			Name:        fmt.Sprintf("Cook %d", i),
			CurrentRoom: kitchen,
			HomeRoom:    kitchen,
			Floor:       1,
		})
		require.NoError(t, err)
	}

	hasSpace, err := registry.HasSpace(ctx, r.Agents, kitchen, "")
	require.NoError(t, err)
	assert.True(t, hasSpace)

	last := &domain.Agent{Name: "Cook Last", CurrentRoom: kitchen, HomeRoom: kitchen, Floor: 1}
	_, err = r.Agents.CreateAgent(ctx, last)
	require.NoError(t, err)

	hasSpace, err = registry.HasSpace(ctx, r.Agents, kitchen, "")
	require.NoError(t, err)
	assert.False(t, hasSpace)

	// 排除已在房间里的员工本人时仍有位置
	hasSpace, err = registry.HasSpace(ctx, r.Agents, kitchen, last.AgentID)
	require.NoError(t, err)
	assert.True(t, hasSpace)

	_, err = registry.HasSpace(ctx, r.Agents, "Rooftop 1F", "")
	assert.Error(t, err)
}
