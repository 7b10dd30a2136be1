package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/panoptocord/panoptocord/internal/config"
	"github.com/panoptocord/panoptocord/internal/logging"
	"github.com/panoptocord/panoptocord/internal/state"
)

// refreshWindow 在真正过期前留出的提前量，避免一次轮询进行到一半时 token 失效。
const refreshWindow = 2 * time.Minute

// maxTokenBody 限制 token 端点响应体的读取长度。
const maxTokenBody = 1 << 20

// ErrNoRefreshToken 表示状态中缺少可用的 refresh token，无法继续刷新。
var ErrNoRefreshToken = errors.New("no refresh token available")

// Manager 负责通过 refresh-token grant 维持 Panopto 访问 token 的有效性。
// 刷新结果直接写回 state，由调用方决定何时落盘。
type Manager struct {
	oauth  *oauth2.Config
	client *http.Client
	logger *logrus.Logger
}

// NewManager 构建 token 管理器。client 为共享出站 HTTP client，
// 凭证按 Panopto 的要求放在请求体而非 Basic Auth 头中。
func NewManager(cfg config.AuthConfig, client *http.Client, logger *logrus.Logger) *Manager {
	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizationURL,
				TokenURL:  cfg.AccessTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"api", "offline_access"},
		},
		client: client,
		logger: logger,
	}
}

// NeedsRefresh 判断访问 token 是否已经过期或将在 refreshWindow 内过期。
func NeedsRefresh(st *state.State, now time.Time) bool {
	return !st.AccessTokenExpires.After(now.Add(refreshWindow))
}

// Refresh 执行一次 refresh-token grant 并把结果写回 st：
// 新访问 token 一定更新；服务器轮换出新 refresh token 时一并替换；
// 响应缺少 expires_in 时保留原过期时间（下个 tick 会再次刷新）。
func (m *Manager) Refresh(ctx context.Context, st *state.State) error {
	if st == nil || st.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	token, err := m.requestToken(ctx, st.RefreshToken)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			reason := retrieveErr.ErrorDescription
			if reason == "" {
				reason = retrieveErr.ErrorCode
			}
			if reason == "" {
				reason = retrieveErr.Response.Status
			}
			return fmt.Errorf("token endpoint rejected refresh: %s", reason)
		}
		return fmt.Errorf("refresh access token: %w", err)
	}

	st.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		st.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		st.AccessTokenExpires = token.Expiry.UTC()
	}

	if m.logger != nil {
		m.logger.WithFields(logging.TokenFields("token_refreshed", st.AccessTokenExpires)).Info("访问 token 已刷新")
	}
	return nil
}

// requestToken 直接提交 refresh 表单。不能走 oauth2.Config.TokenSource：
// 它的刷新请求只带 grant_type 与 refresh_token，而 Panopto 的身份服务
// 要求刷新时重申 scope，缺少 offline_access 就不会轮换 refresh token。
func (m *Manager) requestToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(m.oauth.Scopes, " ")},
		"client_id":     {m.oauth.ClientID},
		"client_secret": {m.oauth.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retrieveErr := &oauth2.RetrieveError{Response: resp, Body: body}
		var detail struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &detail) == nil {
			retrieveErr.ErrorCode = detail.Error
			retrieveErr.ErrorDescription = detail.ErrorDescription
		}
		return nil, retrieveErr
	}

	var payload struct {
		AccessToken  string  `json:"access_token"`
		TokenType    string  `json:"token_type"`
		RefreshToken string  `json:"refresh_token"`
		ExpiresIn    float64 `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access token")
	}

	token := &oauth2.Token{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		RefreshToken: payload.RefreshToken,
	}
	if payload.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn * float64(time.Second)))
	}
	return token, nil
}
