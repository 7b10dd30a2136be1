package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 JSON 配置文件，同时注入默认值与校验逻辑。
// 路径默认 config.json，与历史部署的启动方式保持一致。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyRuntimeDefaults(&cfg.Runtime)
	normalizeWatch(&cfg.Watch)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absState, err := filepath.Abs(cfg.Runtime.StatePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析状态文件路径: %w", err)
	}
	cfg.Runtime.StatePath = absState

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFilePath", "")
	v.SetDefault("logMaxSize", 100)
	v.SetDefault("logMaxBackups", 10)
	v.SetDefault("logCompress", true)
	v.SetDefault("pollInterval", "10m")
	v.SetDefault("announceBackfill", false)
	v.SetDefault("statePath", "panoptocord-cache.json")
	v.SetDefault("statusPort", 0)
	v.SetDefault("upstreamTimeout", "30s")
	v.SetDefault("maxRetries", 3)
	v.SetDefault("initialBackoff", "1s")
}

func applyRuntimeDefaults(r *RuntimeConfig) {
	if r.PollInterval.DurationValue() == 0 {
		r.PollInterval = Duration(10 * time.Minute)
	}
	if r.StatePath == "" {
		r.StatePath = "panoptocord-cache.json"
	}
	if r.UpstreamTimeout.DurationValue() == 0 {
		r.UpstreamTimeout = Duration(30 * time.Second)
	}
	if r.InitialBackoff.DurationValue() == 0 {
		r.InitialBackoff = Duration(time.Second)
	}
}

// normalizeWatch 统一 Panopto 基础地址的尾部斜杠，并裁剪 folder ID 两端空白。
func normalizeWatch(w *WatchConfig) {
	if base := strings.TrimSpace(w.PanoptoBase); base != "" {
		w.PanoptoBase = strings.TrimRight(base, "/") + "/"
	}
	for i, folder := range w.Folders {
		w.Folders[i] = strings.TrimSpace(folder)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
