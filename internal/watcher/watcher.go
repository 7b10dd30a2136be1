package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/panoptocord/panoptocord/internal/auth"
	"github.com/panoptocord/panoptocord/internal/config"
	"github.com/panoptocord/panoptocord/internal/discord"
	"github.com/panoptocord/panoptocord/internal/panopto"
	"github.com/panoptocord/panoptocord/internal/state"
)

// refreshAlertMessage 与历史版本保持一致，运维侧的告警匹配规则依赖该文案。
const refreshAlertMessage = "Failed to refresh access token!"

// Options 汇总 Watcher 的全部依赖，便于在测试中替换任意一环。
type Options struct {
	Config  *config.Config
	Store   state.Store
	State   *state.State
	Auth    *auth.Manager
	Panopto *panopto.Client
	Discord *discord.Publisher
	Logger  *logrus.Logger
}

// Watcher 驱动“刷新 token → 拉取目录 → 公告新会话 → 推进水位线”的轮询主循环。
// st 只在 sweep 内被修改；mu 保护 st 读取与 stats，供 ops 端点并发查询。
type Watcher struct {
	cfg     *config.Config
	store   state.Store
	auth    *auth.Manager
	panopto *panopto.Client
	discord *discord.Publisher
	logger  *logrus.Logger
	policy  RetryPolicy

	mu    sync.Mutex
	st    *state.State
	stats Stats

	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

// New 校验依赖并构建 Watcher。
func New(opts Options) (*Watcher, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Store == nil {
		return nil, errors.New("state store is required")
	}
	if opts.State == nil {
		return nil, errors.New("state is required")
	}
	if opts.Auth == nil {
		return nil, errors.New("auth manager is required")
	}
	if opts.Panopto == nil {
		return nil, errors.New("panopto client is required")
	}
	if opts.Discord == nil {
		return nil, errors.New("discord publisher is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	return &Watcher{
		cfg:     opts.Config,
		store:   opts.Store,
		auth:    opts.Auth,
		panopto: opts.Panopto,
		discord: opts.Discord,
		logger:  opts.Logger,
		policy: NewRetryPolicy(
			opts.Config.Runtime.InitialBackoff.DurationValue(),
			opts.Config.Runtime.MaxRetries,
		),
		st: opts.State,
	}, nil
}

// Start 启动周期调度：首轮立即执行，此后按 PollInterval 触发；
// singleton 模式保证慢 sweep 不会与下一次 tick 重叠。
func (w *Watcher) Start() error {
	w.ctx, w.cancel = context.WithCancel(context.Background())

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.cfg.Runtime.PollInterval.DurationValue()),
		gocron.NewTask(w.runSweep),
		gocron.WithName("panopto-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule sweep job: %w", err)
	}

	w.sched = sched
	sched.Start()

	w.logger.WithFields(logrus.Fields{
		"action":   "watcher_start",
		"interval": w.cfg.Runtime.PollInterval.DurationValue().String(),
		"folders":  w.cfg.Watch.FolderCount(),
	}).Info("轮询调度已启动")
	return nil
}

// Stop 停止调度（等待进行中的 sweep 结束）并把最终状态落盘。
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}

	var shutdownErr error
	if w.sched != nil {
		shutdownErr = w.sched.Shutdown()
	}

	w.mu.Lock()
	saveErr := w.store.Save(w.st)
	w.mu.Unlock()
	if saveErr != nil {
		w.logger.WithFields(logrus.Fields{
			"action": "state_save",
			"phase":  "shutdown",
		}).Error(saveErr.Error())
	}

	if shutdownErr != nil {
		return fmt.Errorf("shutdown scheduler: %w", shutdownErr)
	}
	return saveErr
}

func (w *Watcher) runSweep() {
	if err := w.Sweep(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.WithFields(logrus.Fields{
			"action": "sweep_failed",
		}).Error(err.Error())
	}
}
