package broadcast

import (
	"context"
	"time"
)

// Event 推送给观察端的事件
type Event struct {
	Type      string      `json:"type"`
	ID        string      `json:"id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Sink 广播接收端（尽力送达，不要求确认）
// 发布失败由调用方记录并吞掉，绝不阻塞或拖垮 tick
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopSink 丢弃所有事件（广播端不可用时的降级实现）
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) Publish(_ context.Context, _ Event) error { return nil }
func (NopSink) Close() error                             { return nil }
