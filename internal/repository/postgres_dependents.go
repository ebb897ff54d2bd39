package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"

	"github.com/google/uuid"
)

// PostgresDependentsRepository 家属Repository实现
type PostgresDependentsRepository struct {
	db DBTX
}

// NewPostgresDependentsRepository 创建家属Repository
func NewPostgresDependentsRepository(db DBTX) *PostgresDependentsRepository {
	return &PostgresDependentsRepository{db: db}
}

var _ DependentsRepository = (*PostgresDependentsRepository)(nil)

const dependentColumns = `
	dependent_id::text,
	agent_id::text,
	name,
	kind,
	sleep_state,
	current_location,
	updated_at
`

func scanDependent(row interface{ Scan(dest ...any) error }) (*domain.Dependent, error) {
	var dep domain.Dependent
	err := row.Scan(
		&dep.DependentID,
		&dep.AgentID,
		&dep.Name,
		&dep.Kind,
		&dep.SleepState,
		&dep.CurrentLocation,
		&dep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

// ListByAgent 获取某员工的全部家属
func (r *PostgresDependentsRepository) ListByAgent(ctx context.Context, agentID string) ([]*domain.Dependent, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}

	query := `SELECT ` + dependentColumns + ` FROM dependents WHERE agent_id = $1 ORDER BY dependent_id`
	rows, err := r.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependents: %w", err)
	}
	defer rows.Close()

	var deps []*domain.Dependent
	for rows.Next() {
		dep, err := scanDependent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dependent: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// ListAll 获取全部家属（睡眠策略每 tick 的工作集）
func (r *PostgresDependentsRepository) ListAll(ctx context.Context) ([]*domain.Dependent, error) {
	// 仅包含在职员工的家属
	query := `
		SELECT ` + dependentColumns + `
		FROM dependents d
		WHERE EXISTS (SELECT 1 FROM agents a WHERE a.agent_id = d.agent_id AND a.status = 'active')
		ORDER BY d.dependent_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list all dependents: %w", err)
	}
	defer rows.Close()

	var deps []*domain.Dependent
	for rows.Next() {
		dep, err := scanDependent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dependent: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// CreateDependent 创建家属
func (r *PostgresDependentsRepository) CreateDependent(ctx context.Context, dep *domain.Dependent) (string, error) {
	if dep == nil {
		return "", fmt.Errorf("dependent is required")
	}
	if dep.AgentID == "" {
		return "", fmt.Errorf("agent_id is required")
	}
	if dep.Name == "" {
		return "", fmt.Errorf("name is required")
	}

	if dep.DependentID == "" {
		dep.DependentID = uuid.NewString()
	}
	if dep.Kind == "" {
		dep.Kind = domain.DependentFamily
	}
	if dep.SleepState == "" {
		dep.SleepState = domain.SleepAwake
	}
	if dep.CurrentLocation == "" {
		dep.CurrentLocation = domain.LocationInside
	}
	dep.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO dependents (
			dependent_id, agent_id, name, kind, sleep_state, current_location, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		dep.DependentID, dep.AgentID, dep.Name, dep.Kind,
		dep.SleepState, dep.CurrentLocation, dep.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create dependent: %w", err)
	}
	return dep.DependentID, nil
}

// UpdateDependentState 持久化家属状态
func (r *PostgresDependentsRepository) UpdateDependentState(ctx context.Context, dep *domain.Dependent) error {
	if dep == nil || dep.DependentID == "" {
		return fmt.Errorf("dependent with dependent_id is required")
	}

	dep.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE dependents SET
			sleep_state = $2,
			current_location = $3,
			updated_at = $4
		WHERE dependent_id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		dep.DependentID, dep.SleepState, dep.CurrentLocation, dep.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update dependent state: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("dependent not found: %s", dep.DependentID)
	}
	return nil
}

// CountSleeping 统计睡眠中的家属数
func (r *PostgresDependentsRepository) CountSleeping(ctx context.Context) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM dependents d
		WHERE d.sleep_state = 'sleeping'
		  AND EXISTS (SELECT 1 FROM agents a WHERE a.agent_id = d.agent_id AND a.status = 'active')
	`
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sleeping dependents: %w", err)
	}
	return count, nil
}
