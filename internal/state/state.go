package state

import (
	"errors"
	"time"

	"github.com/panoptocord/panoptocord/internal/config"
)

// State 是 panoptocord-cache.json 的内存形态。JSON 字段名固定为历史
// 部署使用的 camelCase 写法，不可随重构改名。
type State struct {
	LastUpdated             time.Time            `json:"lastUpdated"`
	RefreshToken            string               `json:"refreshToken"`
	AccessToken             string               `json:"accessToken"`
	AccessTokenExpires      time.Time            `json:"accessTokenExpires"`
	ColorMap                map[string][3]uint32 `json:"colorMap"`
	LastChangedRefreshToken string               `json:"lastChangedRefreshToken"`
	LastChangedAccessToken  string               `json:"lastChangedAccessToken"`
}

// Store 负责 State 的持久化。实现必须保证 Save 原子生效：
// 任何时刻磁盘上要么是旧版本要么是新版本，不存在半写状态。
type Store interface {
	// Load 读取状态文件。文件不存在时返回 ErrNotFound。
	Load() (*State, error)

	// Save 将状态写入磁盘，通过临时文件 + rename 保证原子性。
	Save(st *State) error
}

// ErrNotFound 表示状态文件尚不存在（首次启动）。
var ErrNotFound = errors.New("state file not found")

// Fresh 基于配置种子 token 构建首次启动的状态。announceBackfill 为 true 时
// 水位线落在 epoch，首轮会把目录内全部历史会话重新公告一遍；默认行为是
// 从当前时间开始，只公告启动后新发布的会话。
func Fresh(auth config.AuthConfig, now time.Time, announceBackfill bool) *State {
	watermark := now.UTC()
	if announceBackfill {
		watermark = time.Unix(0, 0).UTC()
	}
	return &State{
		LastUpdated:             watermark,
		RefreshToken:            auth.RefreshToken,
		AccessToken:             auth.AccessToken,
		AccessTokenExpires:      time.Unix(0, 0).UTC(),
		ColorMap:                map[string][3]uint32{},
		LastChangedRefreshToken: auth.RefreshToken,
		LastChangedAccessToken:  auth.AccessToken,
	}
}

// ReseedIfRotated 检测运维是否在配置中轮换了 token：配置 token 与上次记录
// 不一致时，采纳配置 token 并使访问 token 立即过期以强制刷新。返回是否发生轮换。
func (s *State) ReseedIfRotated(auth config.AuthConfig) bool {
	if s.LastChangedRefreshToken == auth.RefreshToken && s.LastChangedAccessToken == auth.AccessToken {
		return false
	}

	s.LastChangedRefreshToken = auth.RefreshToken
	s.LastChangedAccessToken = auth.AccessToken
	s.RefreshToken = auth.RefreshToken
	s.AccessToken = auth.AccessToken
	s.AccessTokenExpires = time.Unix(0, 0).UTC()
	return true
}

// FolderColor 返回目录对应的 embed 颜色；首次遇到的目录通过 pick 取得新颜色
// 并写入映射，此后保持稳定。返回值第二项表示是否新分配。
func (s *State) FolderColor(folderName string, pick func() [3]uint32) ([3]uint32, bool) {
	if s.ColorMap == nil {
		s.ColorMap = map[string][3]uint32{}
	}
	if color, ok := s.ColorMap[folderName]; ok {
		return color, false
	}
	color := pick()
	s.ColorMap[folderName] = color
	return color, true
}
