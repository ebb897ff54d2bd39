package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/broadcast"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/clock"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/config"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/database"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/logger"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/narrative"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/simulator"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "office-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting office-simulator service")

	// 存储：数据库不可用时降级为内存存储继续运行
	store := buildStore(cfg, log)
	defer store.Close()

	// 广播端：不可用时降级为空实现继续运行
	sink, statsCache := buildSink(cfg, log)
	defer sink.Close()

	clk := clock.New(cfg.Simulator.Timezone, log)
	registry := rooms.NewRegistry(cfg.Simulator.Floors)
	generator := narrative.NewClient(
		cfg.Narrative.BaseURL,
		cfg.Narrative.APIKey,
		time.Duration(cfg.Narrative.Timeout)*time.Second,
		log,
	)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	engine, err := simulator.NewEngine(cfg, store, registry, clk, generator, sink, rng, log)
	if err != nil {
		log.Fatal("Failed to create simulation engine", zap.Error(err))
	}
	if statsCache != nil {
		engine.SleepEnforcer().SetStatsCache(statsCache)
	}

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 启动引擎（在 goroutine 中）
	errChan := make(chan error, 1)
	go func() {
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			errChan <- err
		}
	}()

	// 等待信号或错误
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("Engine error", zap.Error(err))
	}

	engine.Stop()
	cancel()

	log.Info("Service stopped")
}

// buildStore 连接 Postgres，失败时降级为内存存储（进程不退出）
func buildStore(cfg *config.Config, log *zap.Logger) repository.Store {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Warn("Database unavailable, running with in-memory store",
			zap.String("host", cfg.Database.Host),
			zap.Error(err),
		)
		return repository.NewMemoryStore()
	}
	log.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)
	return repository.NewPostgresStore(db)
}

// buildSink 按配置创建广播端；redis 模式下统计缓存复用同一个连接
func buildSink(cfg *config.Config, log *zap.Logger) (broadcast.Sink, simulator.StatsCache) {
	switch cfg.Broadcast.Mode {
	case "mqtt":
		sink, err := broadcast.NewMQTTSink(&cfg.MQTT, cfg.Broadcast.Topic)
		if err != nil {
			log.Warn("MQTT broker unavailable, broadcast disabled", zap.Error(err))
			return broadcast.NopSink{}, nil
		}
		log.Info("Broadcasting over MQTT", zap.String("topic", cfg.Broadcast.Topic))
		return sink, nil
	default:
		sink, err := broadcast.NewRedisStreamSink(&cfg.Redis, cfg.Broadcast.Stream)
		if err != nil {
			log.Warn("Redis unavailable, broadcast disabled", zap.Error(err))
			return broadcast.NopSink{}, nil
		}
		log.Info("Broadcasting over Redis Streams", zap.String("stream", cfg.Broadcast.Stream))
		return sink, broadcast.NewRedisKV(sink.Client())
	}
}
