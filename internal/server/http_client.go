package server

import (
	"net"
	"net/http"
	"time"

	"github.com/panoptocord/panoptocord/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
// Panopto、token 端点与 Discord webhook 共享同一份出站配置。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewOutboundClient 返回共享 http.Client，用于所有出站请求。
func NewOutboundClient(cfg *config.Config) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil && cfg.Runtime.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.Runtime.UpstreamTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}
