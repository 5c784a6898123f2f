package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Notifier 发送业务通知
type Notifier interface {
	Send(ctx context.Context, card Card) error
}

// WebhookClient 通过 HTTP webhook 投递卡片
type WebhookClient struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookClient url 为空时返回 Nop
func NewWebhookClient(url string, timeout time.Duration, retryCount int, logger *zap.Logger) Notifier {
	if url == "" {
		return Nop{}
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookClient{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

func (c *WebhookClient) Send(ctx context.Context, card Card) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(card).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Debug("Webhook delivered",
		zap.String("event", card.Event),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", resp.Time()))
	return nil
}

// Nop 未配置 webhook 时使用
type Nop struct{}

func (Nop) Send(ctx context.Context, card Card) error { return nil }
