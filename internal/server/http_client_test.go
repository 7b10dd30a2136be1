package server

import (
	"testing"
	"time"

	"github.com/panoptocord/panoptocord/internal/config"
)

func TestNewOutboundClientDefaultTimeout(t *testing.T) {
	client := NewOutboundClient(nil)
	if client.Timeout != 30*time.Second {
		t.Fatalf("默认超时应为 30s，得到 %v", client.Timeout)
	}
}

func TestNewOutboundClientUsesConfiguredTimeout(t *testing.T) {
	cfg := &config.Config{
		Runtime: config.RuntimeConfig{UpstreamTimeout: config.Duration(5 * time.Second)},
	}
	client := NewOutboundClient(cfg)
	if client.Timeout != 5*time.Second {
		t.Fatalf("应使用配置超时，得到 %v", client.Timeout)
	}
}

func TestNewOutboundClientClonesTransport(t *testing.T) {
	a := NewOutboundClient(nil)
	b := NewOutboundClient(nil)
	if a.Transport == b.Transport {
		t.Fatalf("每个 client 应持有独立的 Transport 克隆")
	}
}
