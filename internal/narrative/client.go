package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Generator 叙事生成能力（外部服务，失败时调用方拿到兜底模板文本）
type Generator interface {
	GenerateText(ctx context.Context, promptContext string) string
	ValidateName(ctx context.Context, name string) bool
	GenerateUniqueName(ctx context.Context, existing []string) string
}

// generateRequest 生成接口请求体
type generateRequest struct {
	Context string `json:"context"`
}

// generateResponse 生成接口响应体
type generateResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// Client 叙事生成服务 HTTP 客户端
// BaseURL 为空时处于离线模式，所有调用直接走兜底模板
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
	offline    bool
}

var _ Generator = (*Client)(nil)

// NewClient 创建叙事生成客户端
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		logger.Info("Narrative generator not configured, using templated fallbacks")
		return &Client{logger: logger, offline: true}
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return &Client{httpClient: client, logger: logger}
}

// GenerateText 生成一段叙事文本；任何失败都降级为模板文本，绝不向上抛错
func (c *Client) GenerateText(ctx context.Context, promptContext string) string {
	if c.offline {
		return fallbackText(promptContext)
	}

	request := generateRequest{Context: promptContext}
	var response generateResponse
	_, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/narrative/generate")
	if err != nil {
		c.logger.Warn("Narrative generator call failed, using fallback",
			zap.Error(err),
		)
		return fallbackText(promptContext)
	}
	if response.Status != 0 {
		c.logger.Warn("Narrative generator returned error, using fallback",
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg),
		)
		return fallbackText(promptContext)
	}

	var text string
	if err := json.Unmarshal(response.Data, &text); err != nil || strings.TrimSpace(text) == "" {
		return fallbackText(promptContext)
	}
	return strings.TrimSpace(text)
}

// ValidateName 校验姓名是否可用；服务不可达时退化为本地规则
func (c *Client) ValidateName(ctx context.Context, name string) bool {
	if !localNameValid(name) {
		return false
	}
	if c.offline {
		return true
	}

	var response generateResponse
	_, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": name}).
		SetResult(&response).
		Post("/narrative/validate-name")
	if err != nil {
		c.logger.Warn("Name validation call failed, using local rule", zap.Error(err))
		return true
	}
	return response.Status == 0
}

// GenerateUniqueName 生成与现有姓名不冲突的新姓名
func (c *Client) GenerateUniqueName(ctx context.Context, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[strings.ToLower(name)] = true
	}

	if !c.offline {
		var response generateResponse
		_, err := c.httpClient.R().
			SetContext(ctx).
			SetBody(map[string]any{"existing": existing}).
			SetResult(&response).
			Post("/narrative/generate-name")
		if err == nil && response.Status == 0 {
			var name string
			if json.Unmarshal(response.Data, &name) == nil &&
				localNameValid(name) && !taken[strings.ToLower(name)] {
				return strings.TrimSpace(name)
			}
		} else if err != nil {
			c.logger.Warn("Name generation call failed, using fallback", zap.Error(err))
		}
	}

	return fallbackUniqueName(taken, len(existing))
}

// ===== 兜底模板 =====

var fallbackFirstNames = []string{
	"Avery", "Jordan", "Morgan", "Riley", "Casey", "Quinn",
	"Harper", "Rowan", "Emerson", "Sawyer", "Finley", "Parker",
}

var fallbackLastNames = []string{
	"Bennett", "Calloway", "Dalton", "Ellison", "Fairbanks", "Grayson",
	"Holloway", "Iverson", "Kensington", "Langley", "Merritt", "Norwood",
}

var fallbackTopics = []string{
	"Quarterly planning sync",
	"Project status review",
	"Cross-team alignment",
	"Budget walkthrough",
	"Process retrospective",
	"Roadmap discussion",
	"Onboarding checklist review",
	"Customer feedback triage",
}

// fallbackText 根据上下文确定性地选一条模板文本（同样输入给同样输出）
func fallbackText(promptContext string) string {
	h := fnv.New32a()
	h.Write([]byte(promptContext))
	return fallbackTopics[int(h.Sum32())%len(fallbackTopics)]
}

// fallbackUniqueName 从模板姓名池确定性取名，池耗尽后追加序号
func fallbackUniqueName(taken map[string]bool, seed int) string {
	total := len(fallbackFirstNames) * len(fallbackLastNames)
	for i := 0; i < total; i++ {
		idx := (seed + i) % total
		name := fmt.Sprintf("%s %s",
			fallbackFirstNames[idx%len(fallbackFirstNames)],
			fallbackLastNames[idx/len(fallbackFirstNames)],
		)
		if !taken[strings.ToLower(name)] {
			return name
		}
	}
	// 池子整个用光了，挂序号保证唯一
	for i := 2; ; i++ {
		name := fmt.Sprintf("%s %s %d", fallbackFirstNames[0], fallbackLastNames[0], i)
		if !taken[strings.ToLower(name)] {
			return name
		}
	}
}

// localNameValid 本地姓名规则：2~100 字符，至少两个词，仅字母/空格/连字符/撇号
func localNameValid(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 100 {
		return false
	}
	if len(strings.Fields(name)) < 2 {
		return false
	}
	for _, r := range name {
		if !(r == ' ' || r == '-' || r == '\'' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}
