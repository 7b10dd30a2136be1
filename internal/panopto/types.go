package panopto

import (
	"fmt"
	"time"
)

// SessionList 对应 folder sessions 接口的响应体。字段名跟随 Panopto REST API
// 的 PascalCase 命名。
type SessionList struct {
	Results []Session `json:"Results"`
}

// Session 描述一条录像会话。Duration 单位为秒。
type Session struct {
	ID                     string        `json:"Id"`
	Name                   string        `json:"Name"`
	Description            *string       `json:"Description"`
	StartTime              *time.Time    `json:"StartTime"`
	Duration               float64       `json:"Duration"`
	MostRecentViewPosition *float64      `json:"MostRecentViewPosition"`
	CreatedBy              CreatedBy     `json:"CreatedBy"`
	Urls                   SessionURLs   `json:"Urls"`
	Folder                 string        `json:"Folder"`
	FolderDetails          FolderDetails `json:"FolderDetails"`
}

// CreatedBy 标识会话的创建者。
type CreatedBy struct {
	ID       string  `json:"Id"`
	Username *string `json:"Username"`
}

// SessionURLs 汇总会话的各类访问地址；仅 ViewerUrl/ThumbnailUrl 保证非空。
type SessionURLs struct {
	ViewerURL          string  `json:"ViewerUrl"`
	EmbedURL           *string `json:"EmbedUrl"`
	ShareSettingsURL   *string `json:"ShareSettingsUrl"`
	DownloadURL        *string `json:"DownloadUrl"`
	CaptionDownloadURL *string `json:"CaptionDownloadUrl"`
	EditorURL          *string `json:"EditorUrl"`
	ThumbnailURL       string  `json:"ThumbnailUrl"`
}

// FolderDetails 提供会话归属目录的 ID 与展示名。
type FolderDetails struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// DurationValue 把接口返回的浮点秒数转成 time.Duration。
func (s Session) DurationValue() time.Duration {
	return time.Duration(s.Duration * float64(time.Second))
}

// StartedAfter 判断会话是否在水位线之后发布；缺少 StartTime 的会话视为旧会话。
func (s Session) StartedAfter(watermark time.Time) bool {
	return s.StartTime != nil && s.StartTime.After(watermark)
}

// FolderListURL 拼接目录在 Panopto 页面中的会话列表地址，供 embed author 链接使用。
func FolderListURL(base, folderID string) string {
	return fmt.Sprintf("%sPanopto/Pages/Sessions/List.aspx#folderID=%%22%s%%22", base, folderID)
}
