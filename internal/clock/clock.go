package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimezone 时区解析失败时的兜底时区
const DefaultTimezone = "America/New_York"

// Clock 模拟时钟：在配置的民用时区内解析"现在"
// 存储一律使用 UTC，本地时间仅用于睡眠/作息等策略判断
type Clock struct {
	location *time.Location
	// now 可注入，测试时替换为固定时间
	now func() time.Time
}

// New 创建时钟。时区名解析失败时告警并降级为默认时区，绝不阻止启动
func New(timezoneName string, logger *zap.Logger) *Clock {
	loc, err := time.LoadLocation(timezoneName)
	if err != nil {
		logger.Warn("Failed to load timezone, falling back to default",
			zap.String("timezone", timezoneName),
			zap.String("default", DefaultTimezone),
			zap.Error(err),
		)
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			// 连默认时区都不可用（tzdata 缺失），退化为 UTC
			logger.Warn("Default timezone unavailable, using UTC", zap.Error(err))
			loc = time.UTC
		}
	}
	return &Clock{location: loc, now: time.Now}
}

// NewFixed 创建固定时间的时钟（测试用）
func NewFixed(t time.Time, loc *time.Location) *Clock {
	return &Clock{location: loc, now: func() time.Time { return t }}
}

// Now 当前本地（民用时区）时间
func (c *Clock) Now() time.Time {
	return c.now().In(c.location)
}

// NowUTC 当前 UTC 时间（持久化用）
func (c *Clock) NowUTC() time.Time {
	return c.now().UTC()
}

// Location 配置的民用时区
func (c *Clock) Location() *time.Location {
	return c.location
}

// ToLocal 将任意时间转换到民用时区（仅用于展示和策略判断）
func (c *Clock) ToLocal(t time.Time) time.Time {
	return t.In(c.location)
}

// IsWorkday 本地日历下今天是否工作日（周一~周五）
func (c *Clock) IsWorkday() bool {
	wd := c.Now().Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// MinuteOfDay 当前本地时间距午夜的分钟数
func (c *Clock) MinuteOfDay() int {
	now := c.Now()
	return now.Hour()*60 + now.Minute()
}

// ParseClockTime 解析 "HH:MM" 为距午夜的分钟数
func ParseClockTime(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock time %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock time %q", s)
	}
	return hour*60 + minute, nil
}

// InWindow 判断分钟数是否落在 [start, end) 窗口内，支持跨午夜窗口（如 22:00~05:30）
func InWindow(minute, start, end int) bool {
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}
