package domain

import "fmt"

// Room 房间（非持久化实体，来自容量注册表）
// 以 (base_name, floor) 唯一标识；占用数由 current_room 匹配实时计算
type Room struct {
	BaseName string
	Floor    int
	Capacity int
}

// Key 房间的完整名称，如 "Office 2F"
func (r Room) Key() string {
	return RoomKey(r.BaseName, r.Floor)
}

// RoomKey 构建房间完整名称
func RoomKey(baseName string, floor int) string {
	return fmt.Sprintf("%s %dF", baseName, floor)
}
