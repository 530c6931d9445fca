package datapush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"BandAnalyzer/src/config"
	"BandAnalyzer/src/processor"
)

// 常量定义
const (
	RETRY_TIMES    = 3
	RETRY_INTERVAL = 2 * time.Second
	TIMEOUT        = 10 * time.Second
)

// WebhookResponse 接收端的可选应答, errcode 非 0 视为失败
type WebhookResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// TablePayload 一张报告表
type TablePayload struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Payload 推送的报告内容
type Payload struct {
	Title       string         `json:"title"`
	Source      string         `json:"source"`
	GeneratedAt time.Time      `json:"generated_at"`
	Tables      []TablePayload `json:"tables"`
	Diagnostics []string       `json:"diagnostics,omitempty"`
}

// NewPayload 空表(没有列)不推送
func NewPayload(title, source string, tables []processor.Table, diagnostics []string) Payload {
	p := Payload{
		Title:       title,
		Source:      source,
		GeneratedAt: time.Now(),
		Diagnostics: diagnostics,
	}
	for _, t := range tables {
		if t.Empty() {
			continue
		}
		rows := t.Records()
		if rows == nil {
			rows = [][]string{}
		}
		p.Tables = append(p.Tables, TablePayload{Name: t.Name, Columns: t.Columns(), Rows: rows})
	}
	return p
}

// Publisher 把报告以 JSON POST 到 webhook
type Publisher struct {
	URL      string
	Token    string // 非空时作为 Bearer token
	Retries  int
	Interval time.Duration
	Client   *http.Client
}

// NewPublisher 按配置创建, 未配置 URL 时返回 nil
func NewPublisher(cfg *config.Config) *Publisher {
	if cfg.Webhook.URL == "" {
		return nil
	}
	timeout := time.Duration(cfg.Webhook.Timeout)
	if timeout <= 0 {
		timeout = TIMEOUT
	}
	retries := cfg.Webhook.Retries
	if retries <= 0 {
		retries = RETRY_TIMES
	}
	return &Publisher{
		URL:      cfg.Webhook.URL,
		Token:    cfg.Webhook.Token,
		Retries:  retries,
		Interval: RETRY_INTERVAL,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Push 发送报告, 失败按 Retries 重试
func (p *Publisher) Push(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化报告失败: %w", err)
	}
	times := p.Retries
	if times <= 0 {
		times = 1
	}
	return retry(ctx, func() error {
		return p.post(ctx, body)
	}, times, p.Interval)
}

func (p *Publisher) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("推送失败: HTTP %d %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	// 应答不是 JSON 时只看状态码
	var result WebhookResponse
	if err := json.Unmarshal(respBody, &result); err == nil && result.ErrCode != 0 {
		return fmt.Errorf("推送失败: %s", result.ErrMsg)
	}
	return nil
}

// 重试函数
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
