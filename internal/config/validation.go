package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	a := c.Auth
	if err := validateHTTPSURL(a.AuthorizationURL); err != nil {
		return fmt.Errorf("Auth.AuthorizationURL: %w", err)
	}
	if err := validateHTTPSURL(a.AccessTokenURL); err != nil {
		return fmt.Errorf("Auth.AccessTokenURL: %w", err)
	}
	if a.ClientID == "" {
		return newFieldError("Auth.ClientID", "不能为空")
	}
	if a.ClientSecret == "" {
		return newFieldError("Auth.ClientSecret", "不能为空")
	}
	if (a.RefreshToken == "") != (a.AccessToken == "") {
		return newFieldError("Auth.RefreshToken/AccessToken", "必须同时提供或同时留空")
	}
	if a.RefreshToken == "" {
		return newFieldError("Auth.RefreshToken", "不能为空")
	}

	w := c.Watch
	if err := validateHTTPSURL(w.PanoptoBase); err != nil {
		return fmt.Errorf("Watch.PanoptoBase: %w", err)
	}
	if err := validateHTTPSURL(w.WebhookURL); err != nil {
		return fmt.Errorf("Watch.WebhookURL: %w", err)
	}
	if len(w.Folders) == 0 {
		return errors.New("至少需要监听一个 Panopto 目录")
	}
	seen := map[string]struct{}{}
	for i, folder := range w.Folders {
		if folder == "" {
			return newFieldError(folderField(i), "不能为空")
		}
		if strings.ContainsAny(folder, "/? ") {
			return newFieldError(folderField(i), "目录 ID 不允许包含路径或空格")
		}
		if _, exists := seen[folder]; exists {
			return newFieldError(folderField(i), "重复")
		}
		seen[folder] = struct{}{}
	}

	r := c.Runtime
	if r.PollInterval.DurationValue() <= 0 {
		return newFieldError("Runtime.PollInterval", "必须大于 0")
	}
	if r.StatusPort < 0 || r.StatusPort > 65535 {
		return newFieldError("Runtime.StatusPort", "必须在 0-65535")
	}
	if r.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Runtime.UpstreamTimeout", "必须大于 0")
	}
	if r.MaxRetries < 0 {
		return newFieldError("Runtime.MaxRetries", "不能为负数")
	}
	if r.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Runtime.InitialBackoff", "必须大于 0")
	}

	return nil
}

func validateHTTPSURL(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，得到: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("地址缺少 Host: %s", raw)
	}
	return nil
}
