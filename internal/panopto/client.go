package panopto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrUnauthorized 表示访问 token 被 Panopto 拒绝，调用方应触发强制刷新。
var ErrUnauthorized = errors.New("panopto rejected access token")

// maxErrorBody 限制错误响应体在错误信息中的长度，防止日志被 HTML 错误页撑爆。
const maxErrorBody = 512

// Client 是 Panopto REST API 的最小只读客户端，所有请求复用共享 http.Client。
type Client struct {
	base string
	http *http.Client
}

// NewClient 构建客户端；base 需以斜杠结尾（config.Load 已归一化）。
func NewClient(base string, client *http.Client) *Client {
	return &Client{base: base, http: client}
}

// FolderSessions 按创建时间倒序列出目录内的全部会话。
func (c *Client) FolderSessions(ctx context.Context, folderID, accessToken string) (*SessionList, error) {
	endpoint := fmt.Sprintf("%sPanopto/api/v1/folders/%s/sessions?sortField=CreatedDate&sortOrder=Desc",
		c.base, url.PathEscape(folderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build folder sessions request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list folder %s sessions: %w", folderID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("folder %s: %w", folderID, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, newAPIError(folderID, resp)
	}

	var list SessionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode folder %s sessions: %w", folderID, err)
	}
	return &list, nil
}

// APIError 携带非 2xx 响应的状态码与截断后的响应体。
type APIError struct {
	FolderID   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("panopto api error for folder %s: status %d: %s", e.FolderID, e.StatusCode, e.Body)
}

func newAPIError(folderID string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		FolderID:   folderID,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// Transient 判断错误是否值得按退避策略重试：服务端错误与限流算瞬态，
// 鉴权失败与 4xx 不算。
func Transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	// 网络层错误（超时、连接重置）一律按瞬态处理
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
