package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"

	"github.com/google/uuid"
)

// PostgresAgentsRepository 员工Repository实现
type PostgresAgentsRepository struct {
	db DBTX
}

// NewPostgresAgentsRepository 创建员工Repository
func NewPostgresAgentsRepository(db DBTX) *PostgresAgentsRepository {
	return &PostgresAgentsRepository{db: db}
}

// 确保实现了接口
var _ AgentsRepository = (*PostgresAgentsRepository)(nil)

const agentColumns = `
	agent_id::text,
	name,
	department,
	title,
	role,
	activity_state,
	sleep_state,
	current_room,
	home_room,
	target_room,
	floor,
	status,
	hired_at,
	updated_at
`

func scanAgent(row interface{ Scan(dest ...any) error }) (*domain.Agent, error) {
	var agent domain.Agent
	var targetRoom sql.NullString

	err := row.Scan(
		&agent.AgentID,
		&agent.Name,
		&agent.Department,
		&agent.Title,
		&agent.Role,
		&agent.ActivityState,
		&agent.SleepState,
		&agent.CurrentRoom,
		&agent.HomeRoom,
		&targetRoom,
		&agent.Floor,
		&agent.Status,
		&agent.HiredAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if targetRoom.Valid {
		agent.TargetRoom = targetRoom.String
	}
	return &agent, nil
}

// GetAgent 根据agent_id获取员工
func (r *PostgresAgentsRepository) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}

	query := `SELECT ` + agentColumns + ` FROM agents WHERE agent_id = $1`

	agent, err := scanAgent(r.db.QueryRowContext(ctx, query, agentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("agent not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

// ListActiveAgents 获取全部在职员工（调度器每 tick 的工作集）
func (r *PostgresAgentsRepository) ListActiveAgents(ctx context.Context) ([]*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE status = 'active' ORDER BY hired_at, agent_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active agents: %w", err)
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agents: %w", err)
	}
	return agents, nil
}

// ListAgentNames 获取所有员工姓名（含离职，用于姓名唯一性检查）
func (r *PostgresAgentsRepository) ListAgentNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM agents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan agent name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CreateAgent 创建员工（入职）
func (r *PostgresAgentsRepository) CreateAgent(ctx context.Context, agent *domain.Agent) (string, error) {
	if agent == nil {
		return "", fmt.Errorf("agent is required")
	}
	if agent.Name == "" {
		return "", fmt.Errorf("name is required")
	}
	if agent.HomeRoom == "" {
		return "", fmt.Errorf("home_room is required")
	}

	if agent.AgentID == "" {
		agent.AgentID = uuid.NewString()
	}
	if agent.Status == "" {
		agent.Status = domain.AgentStatusActive
	}
	if agent.ActivityState == "" {
		agent.ActivityState = domain.ActivityIdle
	}
	if agent.SleepState == "" {
		agent.SleepState = domain.SleepAwake
	}
	if agent.CurrentRoom == "" {
		agent.CurrentRoom = agent.HomeRoom
	}
	now := time.Now().UTC()
	if agent.HiredAt.IsZero() {
		agent.HiredAt = now
	}
	agent.UpdatedAt = now

	var targetRoomArg any = nil
	if agent.TargetRoom != "" {
		targetRoomArg = agent.TargetRoom
	}

	query := `
		INSERT INTO agents (
			agent_id, name, department, title, role,
			activity_state, sleep_state,
			current_room, home_room, target_room, floor,
			status, hired_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		agent.AgentID, agent.Name, agent.Department, agent.Title, agent.Role,
		agent.ActivityState, agent.SleepState,
		agent.CurrentRoom, agent.HomeRoom, targetRoomArg, agent.Floor,
		agent.Status, agent.HiredAt, agent.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}
	return agent.AgentID, nil
}

// UpdateAgentState 持久化员工状态机字段
func (r *PostgresAgentsRepository) UpdateAgentState(ctx context.Context, agent *domain.Agent) error {
	if agent == nil || agent.AgentID == "" {
		return fmt.Errorf("agent with agent_id is required")
	}

	var targetRoomArg any = nil
	if agent.TargetRoom != "" {
		targetRoomArg = agent.TargetRoom
	}
	agent.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE agents SET
			activity_state = $2,
			sleep_state = $3,
			current_room = $4,
			target_room = $5,
			floor = $6,
			status = $7,
			updated_at = $8
		WHERE agent_id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		agent.AgentID,
		agent.ActivityState,
		agent.SleepState,
		agent.CurrentRoom,
		targetRoomArg,
		agent.Floor,
		agent.Status,
		agent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent state: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("agent not found: %s", agent.AgentID)
	}
	return nil
}

// DeactivateAgent 离职（软删除：状态置 inactive，位置字段冻结）
func (r *PostgresAgentsRepository) DeactivateAgent(ctx context.Context, agentID string) error {
	if agentID == "" {
		return fmt.Errorf("agent_id is required")
	}

	query := `
		UPDATE agents SET
			status = 'inactive',
			target_room = NULL,
			updated_at = $2
		WHERE agent_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, agentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate agent: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("agent not found: %s", agentID)
	}
	return nil
}

// CountInRoom 实时统计某房间的在职员工数（容量检查用，不做任何缓存）
func (r *PostgresAgentsRepository) CountInRoom(ctx context.Context, room string, excludingAgentID string) (int, error) {
	if room == "" {
		return 0, fmt.Errorf("room is required")
	}

	query := `
		SELECT COUNT(*) FROM agents
		WHERE status = 'active' AND current_room = $1 AND ($2 = '' OR agent_id::text <> $2)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, room, excludingAgentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count room occupancy: %w", err)
	}
	return count, nil
}

// CountSleeping 统计睡眠中的在职员工数
func (r *PostgresAgentsRepository) CountSleeping(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM agents WHERE status = 'active' AND sleep_state = 'sleeping'`
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sleeping agents: %w", err)
	}
	return count, nil
}
