package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"10m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// AuthConfig 描述 OAuth2 客户端凭证与种子 token，字段名与既有部署的
// config.json 保持 camelCase 兼容。
type AuthConfig struct {
	AuthorizationURL string `mapstructure:"authorizationUrl"`
	AccessTokenURL   string `mapstructure:"accessTokenUrl"`
	ClientID         string `mapstructure:"clientId"`
	ClientSecret     string `mapstructure:"clientSecret"`
	RefreshToken     string `mapstructure:"refreshToken"`
	AccessToken      string `mapstructure:"accessToken"`
}

// WatchConfig 决定轮询哪些 Panopto 目录以及结果投递到哪个 webhook。
type WatchConfig struct {
	PanoptoBase string   `mapstructure:"panoptoBase"`
	Folders     []string `mapstructure:"folders"`
	WebhookURL  string   `mapstructure:"webhookUrl"`
}

// RuntimeConfig 描述进程级运行行为：轮询周期、状态文件位置与出站 HTTP 策略。
type RuntimeConfig struct {
	PollInterval     Duration `mapstructure:"pollInterval"`
	AnnounceBackfill bool     `mapstructure:"announceBackfill"`
	StatePath        string   `mapstructure:"statePath"`
	StatusPort       int      `mapstructure:"statusPort"`
	UpstreamTimeout  Duration `mapstructure:"upstreamTimeout"`
	MaxRetries       int      `mapstructure:"maxRetries"`
	InitialBackoff   Duration `mapstructure:"initialBackoff"`
}

// LoggingConfig 与日志初始化约定保持一致，LogFilePath 为空时输出到 stdout。
type LoggingConfig struct {
	LogLevel      string `mapstructure:"logLevel"`
	LogFilePath   string `mapstructure:"logFilePath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`
	LogCompress   bool   `mapstructure:"logCompress"`
}

// Config 是 config.json 映射的整体结构，所有配置块展平在顶层。
type Config struct {
	Auth    AuthConfig    `mapstructure:",squash"`
	Watch   WatchConfig   `mapstructure:",squash"`
	Runtime RuntimeConfig `mapstructure:",squash"`
	Logging LoggingConfig `mapstructure:",squash"`
}

// HasSeedTokens 表示配置中是否带有完整的种子 token 对。
func (a AuthConfig) HasSeedTokens() bool {
	return a.RefreshToken != "" && a.AccessToken != ""
}

// FolderCount 返回被监听目录数量，供启动日志摘要使用。
func (w WatchConfig) FolderCount() int {
	return len(w.Folders)
}
