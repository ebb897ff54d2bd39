package domain

import "time"

// DependentKind 家属类型
type DependentKind string

const (
	DependentFamily DependentKind = "family"
	DependentPet    DependentKind = "pet"
)

// DependentLocation 家属位置（室内/室外）
type DependentLocation string

const (
	LocationInside  DependentLocation = "inside"
	LocationOutside DependentLocation = "outside"
)

// Dependent 家属/宠物领域模型（对应 dependents 表）
// 归属于唯一的 Agent，生命周期跟随其家庭
type Dependent struct {
	// 主键
	DependentID string `db:"dependent_id"` // UUID, PRIMARY KEY

	// 归属
	AgentID string `db:"agent_id"` // UUID, NOT NULL, REFERENCES agents(agent_id)

	// 基本信息
	Name string        `db:"name"` // VARCHAR(100), NOT NULL
	Kind DependentKind `db:"kind"` // VARCHAR(20), NOT NULL (family/pet)

	// 状态
	SleepState      SleepState        `db:"sleep_state"`      // VARCHAR(20), NOT NULL
	CurrentLocation DependentLocation `db:"current_location"` // VARCHAR(20), NOT NULL

	// 时间
	UpdatedAt time.Time `db:"updated_at"` // TIMESTAMPTZ, NOT NULL
}
