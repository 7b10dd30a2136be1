package watcher

import "time"

// Stats 记录自进程启动以来的轮询计数，仅由 Watcher 内部更新。
type Stats struct {
	SweepsTotal          uint64    `json:"sweeps_total"`
	SweepsFailed         uint64    `json:"sweeps_failed"`
	SessionsSeen         uint64    `json:"sessions_seen"`
	SessionsAnnounced    uint64    `json:"sessions_announced"`
	PublishFailures      uint64    `json:"publish_failures"`
	TokenRefreshFailures uint64    `json:"token_refresh_failures"`
	StateSaveFailures    uint64    `json:"state_save_failures"`
	LastSweepStarted     time.Time `json:"last_sweep_started"`
	LastSuccess          time.Time `json:"last_success"`
	LastError            string    `json:"last_error,omitempty"`
}

// Status 是 ops 端点对外暴露的运行快照，绝不携带 token 本体。
type Status struct {
	Stats        Stats     `json:"stats"`
	Watermark    time.Time `json:"watermark"`
	TokenExpires time.Time `json:"token_expires"`
	Folders      int       `json:"folders"`
}

// Snapshot 返回当前运行状态的一致性副本，可被 ops 端点并发调用。
func (w *Watcher) Snapshot() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		Stats:        w.stats,
		Watermark:    w.st.LastUpdated,
		TokenExpires: w.st.AccessTokenExpires,
		Folders:      w.cfg.Watch.FolderCount(),
	}
}
