package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/panoptocord/panoptocord/internal/watcher"
)

// StatusProvider describes the component exposing the daemon's runtime
// snapshot. It allows injecting fake providers during tests.
type StatusProvider interface {
	Snapshot() watcher.Status
}

// StatusProviderFunc adapts a function to the StatusProvider interface.
type StatusProviderFunc func() watcher.Status

// Snapshot makes StatusProviderFunc satisfy StatusProvider.
func (f StatusProviderFunc) Snapshot() watcher.Status {
	return f()
}

// AppOptions controls how the diagnostics Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Provider   StatusProvider
	ListenPort int
}

const contextKeyRequestID = "_panoptocord_request_id"

// NewApp builds a Fiber application with request-ID middleware and the
// read-only diagnostics routes under /-/.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("status provider is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())
	app.Use(accessLogMiddleware(opts.Logger))

	return app, nil
}

// accessLogMiddleware 以 debug 级别记录诊断请求，带请求 ID 便于关联。
func accessLogMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		err := c.Next()
		logger.WithFields(logrus.Fields{
			"action":     "ops_request",
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"request_id": RequestID(c),
		}).Debug("诊断请求")
		return err
	}
}

// requestIDMiddleware 负责为每个诊断请求生成请求 ID，便于日志关联。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
