package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
	// 连接最长存活时间（分钟），0 表示不限制
	ConnLifetime int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 办公室模拟服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 模拟引擎配置
	Simulator struct {
		// 模拟时区（IANA 名称，解析失败时降级为默认时区）
		Timezone string

		// tick 间隔（秒），默认 30 秒
		TickInterval int

		// 办公楼层数
		Floors int

		// 夜间强制睡眠窗口（本地时间 "HH:MM"）
		SleepStart string // 默认 "22:00"
		SleepEnd   string // 默认 "05:30"
		// 工作日晨间强制起床窗口结束时间
		WakeEnd string // 默认 "09:00"

		// 会话时长上限（分钟）
		MeetingMaxMinutes  int // 默认 30
		TrainingMaxMinutes int // 默认 30
		ShiftMaxMinutes    int // 默认 600（10 小时封顶）

		// 在岗人数下限：工作时段内低于该值不再安排下班
		MinStaffing int

		// 移动完成所需 tick 数（1 = 当 tick 直接落位）
		WalkTicks int

		// 家属室内/室外游走概率（0~1，注入式，便于测试用固定种子）
		RoamChance float64

		// 每 tick 生成新会议/培训的概率（0~1）
		SessionChance float64
	}

	// 叙事生成服务配置（外部 HTTP 服务，失败时用模板兜底）
	Narrative struct {
		BaseURL string
		APIKey  string
		Timeout int // 秒
	}

	// 广播配置
	Broadcast struct {
		// 广播模式：redis（Redis Streams）或 mqtt
		Mode   string
		Stream string // Redis Streams 流名称，如 "office:events"
		Topic  string // MQTT 主题，如 "office/events"
	}

	Log struct {
		Level  string
		Format string
	}
}

// TickDuration tick 间隔
func (c *Config) TickDuration() time.Duration {
	return time.Duration(c.Simulator.TickInterval) * time.Second
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "office_sim")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)
	cfg.Database.ConnLifetime = getEnvInt("DB_CONN_LIFETIME", 30)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "office-simulator")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 0))

	cfg.Simulator.Timezone = getEnv("SIM_TIMEZONE", "America/New_York")
	cfg.Simulator.TickInterval = getEnvInt("SIM_TICK_INTERVAL", 30)
	cfg.Simulator.Floors = getEnvInt("SIM_FLOORS", 3)
	cfg.Simulator.SleepStart = getEnv("SIM_SLEEP_START", "22:00")
	cfg.Simulator.SleepEnd = getEnv("SIM_SLEEP_END", "05:30")
	cfg.Simulator.WakeEnd = getEnv("SIM_WAKE_END", "09:00")
	cfg.Simulator.MeetingMaxMinutes = getEnvInt("SIM_MEETING_MAX_MINUTES", 30)
	cfg.Simulator.TrainingMaxMinutes = getEnvInt("SIM_TRAINING_MAX_MINUTES", 30)
	cfg.Simulator.ShiftMaxMinutes = getEnvInt("SIM_SHIFT_MAX_MINUTES", 600)
	cfg.Simulator.MinStaffing = getEnvInt("SIM_MIN_STAFFING", 2)
	cfg.Simulator.WalkTicks = getEnvInt("SIM_WALK_TICKS", 1)
	cfg.Simulator.RoamChance = getEnvFloat("SIM_ROAM_CHANCE", 0.1)
	cfg.Simulator.SessionChance = getEnvFloat("SIM_SESSION_CHANCE", 0.1)

	cfg.Narrative.BaseURL = getEnv("NARRATIVE_BASE_URL", "")
	cfg.Narrative.APIKey = getEnv("NARRATIVE_API_KEY", "")
	cfg.Narrative.Timeout = getEnvInt("NARRATIVE_TIMEOUT", 10)

	cfg.Broadcast.Mode = getEnv("BROADCAST_MODE", "redis")
	cfg.Broadcast.Stream = getEnv("BROADCAST_STREAM", "office:events")
	cfg.Broadcast.Topic = getEnv("BROADCAST_TOPIC", "office/events")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Broadcast.Mode != "redis" && cfg.Broadcast.Mode != "mqtt" {
		return nil, fmt.Errorf("unsupported broadcast mode: %s", cfg.Broadcast.Mode)
	}
	if cfg.Simulator.TickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %d", cfg.Simulator.TickInterval)
	}
	if cfg.Simulator.WalkTicks <= 0 {
		cfg.Simulator.WalkTicks = 1
	}
	if cfg.Simulator.Floors <= 0 {
		return nil, fmt.Errorf("floors must be positive, got %d", cfg.Simulator.Floors)
	}
	if cfg.Simulator.RoamChance < 0 || cfg.Simulator.RoamChance > 1 {
		return nil, fmt.Errorf("roam chance must be in [0,1], got %f", cfg.Simulator.RoamChance)
	}
	if cfg.Simulator.SessionChance < 0 || cfg.Simulator.SessionChance > 1 {
		return nil, fmt.Errorf("session chance must be in [0,1], got %f", cfg.Simulator.SessionChance)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}
