package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/config"

	_ "github.com/lib/pq"
)

// 启动时的连接探活超时
const pingTimeout = 5 * time.Second

// NewPostgresDB 创建PostgreSQL连接池并探活
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 连接池参数
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.ConnLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnLifetime) * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close 关闭数据库连接
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
