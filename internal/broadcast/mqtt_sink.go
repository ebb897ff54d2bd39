package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSink 基于 MQTT 的广播实现（与 Redis Streams 二选一，配置决定）
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTSink 创建MQTT广播端
func NewMQTTSink(cfg *config.MQTTConfig, topic string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTSink{client: client, topic: topic, qos: cfg.QoS}, nil
}

var _ Sink = (*MQTTSink)(nil)

// Publish 发布事件（QoS 按配置，默认 0：尽力送达）
func (s *MQTTSink) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := s.client.Publish(s.topic, s.qos, false, data)
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to publish to MQTT: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 断开连接（等待 250ms 飞行中消息）
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
