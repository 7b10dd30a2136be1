package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/panoptocord/panoptocord/internal/server"
	"github.com/panoptocord/panoptocord/internal/version"
)

// RegisterStatusRoutes 暴露 /-/healthz 与 /-/status 诊断接口，
// 供容器编排探活与 SRE 查询轮询状态。
func RegisterStatusRoutes(app *fiber.App, provider server.StatusProvider) {
	if app == nil || provider == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		status := provider.Snapshot()
		if status.Stats.LastSweepStarted.IsZero() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "starting",
			})
		}

		payload := fiber.Map{"status": "ok"}
		if !status.Stats.LastSuccess.IsZero() {
			payload["last_success_age"] = time.Since(status.Stats.LastSuccess).Round(time.Second).String()
		}
		return c.JSON(payload)
	})

	app.Get("/-/status", func(c fiber.Ctx) error {
		status := provider.Snapshot()
		return c.JSON(fiber.Map{
			"version":   version.Full(),
			"watermark": status.Watermark,
			"folders":   status.Folders,
			// 只暴露过期时间，绝不暴露 token 本体
			"token_expires": status.TokenExpires,
			"stats":         status.Stats,
		})
	})
}
