package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/panoptocord/panoptocord/internal/logging"
)

// maxErrorBody 限制 webhook 错误响应在错误信息中的长度。
const maxErrorBody = 512

// Publisher 负责把录像公告与运维告警投递到 Discord webhook。
// 所有请求带 ?wait=true，让 Discord 同步返回投递结果而非 202。
type Publisher struct {
	webhookURL string
	http       *http.Client
	logger     *logrus.Logger
}

// NewPublisher 构建投递器，client 为共享出站 HTTP client。
func NewPublisher(webhookURL string, client *http.Client, logger *logrus.Logger) *Publisher {
	return &Publisher{
		webhookURL: webhookURL,
		http:       client,
		logger:     logger,
	}
}

// Recording 汇总一条录像公告所需的展示信息。
type Recording struct {
	Title        string
	Description  *string
	ViewerURL    string
	ThumbnailURL string
	FolderName   string
	FolderURL    string
	Color        [3]uint32
	StartTime    time.Time
	Duration     time.Duration
	SessionID    string
}

type webhookPayload struct {
	Content *string `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	URL         string       `json:"url"`
	Color       uint32       `json:"color"`
	Timestamp   time.Time    `json:"timestamp"`
	Footer      embedFooter  `json:"footer"`
	Image       embedImage   `json:"image"`
	Author      embedAuthor  `json:"author"`
	Fields      []embedField `json:"fields"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embedAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type embedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PostRecording 以 rich embed 形式公告一条新录像。
func (p *Publisher) PostRecording(ctx context.Context, rec Recording) error {
	deliveryID := uuid.NewString()
	payload := webhookPayload{
		Embeds: []embed{
			{
				Title:       rec.Title,
				Description: rec.Description,
				URL:         rec.ViewerURL,
				Color:       ColorValue(rec.Color),
				Timestamp:   rec.StartTime.UTC(),
				Footer:      embedFooter{Text: "panoptocord"},
				Image:       embedImage{URL: rec.ThumbnailURL},
				Author:      embedAuthor{Name: rec.FolderName, URL: rec.FolderURL},
				Fields: []embedField{
					{Name: "Duration", Value: formatDuration(rec.Duration)},
				},
			},
		},
	}

	if err := p.post(ctx, payload); err != nil {
		return fmt.Errorf("publish recording %s: %w", rec.SessionID, err)
	}
	if p.logger != nil {
		p.logger.WithFields(logging.PublishFields(deliveryID, rec.FolderName, rec.SessionID, rec.Title)).Info("录像公告已投递")
	}
	return nil
}

// PostMessage 投递纯文本消息，用于 token 刷新失败等运维告警。
func (p *Publisher) PostMessage(ctx context.Context, content string) error {
	return p.post(ctx, webhookPayload{Content: &content})
}

func (p *Publisher) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	resp, err := p.doPost(ctx, body)
	if err != nil {
		return err
	}

	// Discord 限流时按 Retry-After 等一次再试；仍失败则交由上层处理
	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp)
		drain(resp)
		if p.logger != nil {
			p.logger.WithFields(logrus.Fields{
				"action":      "webhook_rate_limited",
				"retry_after": wait.String(),
			}).Warn("webhook 被限流")
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		resp, err = p.doPost(ctx, body)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, detail)
	}
	drainBody(resp.Body)
	return nil
}

func (p *Publisher) doPost(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL+"?wait=true", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post webhook: %w", err)
	}
	return resp, nil
}

// retryAfter 解析限流响应的等待时长，缺省 1 秒。
func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return time.Second
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	return time.Second
}

func drain(resp *http.Response) {
	drainBody(resp.Body)
	resp.Body.Close()
}

func drainBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
}

// formatDuration 输出人类可读的时长，例如 "1h 5m 30s"。
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	seconds := (d - minutes*time.Minute) / time.Second

	out := ""
	if hours > 0 {
		out += fmt.Sprintf("%dh ", hours)
	}
	if minutes > 0 {
		out += fmt.Sprintf("%dm ", minutes)
	}
	if seconds > 0 || out == "" {
		out += fmt.Sprintf("%ds ", seconds)
	}
	return out[:len(out)-1]
}
