package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// SweepFields 提供一次轮询的统计字段，供 watcher 日志复用。
func SweepFields(sweepID string, folders int, seen, announced int, took time.Duration) logrus.Fields {
	return logrus.Fields{
		"action":             "sweep",
		"sweep_id":           sweepID,
		"folders":            folders,
		"sessions_seen":      seen,
		"sessions_announced": announced,
		"took_ms":            took.Milliseconds(),
	}
}

// PublishFields 提供单条投递的定位字段，folder 使用目录名而非 ID 便于排查。
func PublishFields(deliveryID, folder, sessionID, title string) logrus.Fields {
	return logrus.Fields{
		"action":      "publish",
		"delivery_id": deliveryID,
		"folder":      folder,
		"session_id":  sessionID,
		"title":       title,
	}
}

// TokenFields 提供 token 刷新相关字段，绝不携带 token 本体。
func TokenFields(action string, expires time.Time) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"expires_at": expires.UTC().Format(time.RFC3339),
	}
}
