package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/config"

	"github.com/go-redis/redis/v8"
)

// RedisStreamSink 基于 Redis Streams 的广播实现
// 事件以 XADD 追加到单个流，观察端按消费者组各自读取
type RedisStreamSink struct {
	client *redis.Client
	stream string
}

// NewRedisStreamSink 创建 Redis Streams 广播端
func NewRedisStreamSink(cfg *config.RedisConfig, stream string) (*RedisStreamSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStreamSink{client: client, stream: stream}, nil
}

var _ Sink = (*RedisStreamSink)(nil)

// Publish 发布事件到流
func (s *RedisStreamSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"type":      event.Type,
			"id":        event.ID,
			"payload":   string(payload),
			"timestamp": event.Timestamp.Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}
	return nil
}

// Client 暴露底层客户端（睡眠统计缓存复用同一个连接）
func (s *RedisStreamSink) Client() *redis.Client {
	return s.client
}

// Close 关闭连接
func (s *RedisStreamSink) Close() error {
	return s.client.Close()
}

// RedisKV 复用 sink 连接写带 TTL 的键值（统计缓存用）
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV 创建 KV 写入器
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Set 写入键值并设置过期时间
func (k *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return k.client.Set(ctx, key, value, ttl).Err()
}
