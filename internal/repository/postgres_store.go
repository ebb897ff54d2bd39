package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore 基于 PostgreSQL 的模拟状态存储
// 每个 tick 打开一个事务，事务内的仓库全部绑定到同一个 *sql.Tx
type PostgresStore struct {
	db    *sql.DB
	repos *Repos
}

// NewPostgresStore 创建PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		repos: newRepos(db),
	}
}

var _ Store = (*PostgresStore)(nil)

func newRepos(db DBTX) *Repos {
	return &Repos{
		Agents:     NewPostgresAgentsRepository(db),
		Dependents: NewPostgresDependentsRepository(db),
		Sessions:   NewPostgresSessionsRepository(db),
		Activities: NewPostgresActivitiesRepository(db),
	}
}

// Repos 事务外的仓库（与调度器并发的查询须在行动前重校验）
func (s *PostgresStore) Repos() *Repos {
	return s.repos
}

// RunTick 在单个事务内执行 fn
// fn 返回错误或提交失败时整体回滚，下一个周期重试，绝不留下半截状态
func (s *PostgresStore) RunTick(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tick transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tick transaction: %w", err)
	}
	return nil
}

// Close 关闭底层连接
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
