package rooms

import (
	"context"
	"fmt"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
)

// 每层的默认房间容量表
var defaultRooms = []struct {
	baseName string
	capacity int
}{
	{"Office", 12},
	{"Meeting Room", 8},
	{"Training Room", 6},
	{"Break Room", 20},
	{"Kitchen", 4},
}

// OverflowBaseName 溢出房间：home_room 满员时的兜底去处
const OverflowBaseName = "Break Room"

// Registry 房间容量注册表
// 静态表，按 (base_name, floor) 索引；占用数每次实时计算，绝不缓存
type Registry struct {
	rooms  map[string]domain.Room
	floors int
}

// NewRegistry 创建注册表并铺设每层的默认房间
func NewRegistry(floors int) *Registry {
	if floors <= 0 {
		floors = 1
	}
	r := &Registry{
		rooms:  map[string]domain.Room{},
		floors: floors,
	}
	for floor := 1; floor <= floors; floor++ {
		for _, d := range defaultRooms {
			r.Add(domain.Room{BaseName: d.baseName, Floor: floor, Capacity: d.capacity})
		}
	}
	return r
}

// Add 注册或覆盖一个房间
func (r *Registry) Add(room domain.Room) {
	r.rooms[room.Key()] = room
}

// Floors 楼层数
func (r *Registry) Floors() int {
	return r.floors
}

// Rooms 全部已注册房间
func (r *Registry) Rooms() []domain.Room {
	out := make([]domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// Lookup 按完整名称查找房间
func (r *Registry) Lookup(key string) (domain.Room, bool) {
	room, ok := r.rooms[key]
	return room, ok
}

// Capacity 房间容量；未注册的房间返回 0
func (r *Registry) Capacity(key string) int {
	if room, ok := r.rooms[key]; ok {
		return room.Capacity
	}
	return 0
}

// DefaultOverflow 某楼层的溢出房间名称
func (r *Registry) DefaultOverflow(floor int) string {
	if floor < 1 || floor > r.floors {
		floor = 1
	}
	return domain.RoomKey(OverflowBaseName, floor)
}

// Occupancy 实时统计房间占用
func (r *Registry) Occupancy(ctx context.Context, agents repository.AgentsRepository, key string) (int, error) {
	return agents.CountInRoom(ctx, key, "")
}

// HasSpace 占用数是否严格小于容量
// 占用每次重新计算（缓存会造成过期读，可能放进超员的人）
// excludingAgentID 非空时不把该员工计入占用（员工换房检查用）
func (r *Registry) HasSpace(ctx context.Context, agents repository.AgentsRepository, key string, excludingAgentID string) (bool, error) {
	room, ok := r.rooms[key]
	if !ok {
		return false, fmt.Errorf("unknown room: %s", key)
	}
	count, err := agents.CountInRoom(ctx, key, excludingAgentID)
	if err != nil {
		return false, err
	}
	return count < room.Capacity, nil
}
