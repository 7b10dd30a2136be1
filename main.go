package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/panoptocord/panoptocord/internal/auth"
	"github.com/panoptocord/panoptocord/internal/config"
	"github.com/panoptocord/panoptocord/internal/discord"
	"github.com/panoptocord/panoptocord/internal/logging"
	"github.com/panoptocord/panoptocord/internal/panopto"
	"github.com/panoptocord/panoptocord/internal/server"
	"github.com/panoptocord/panoptocord/internal/server/routes"
	"github.com/panoptocord/panoptocord/internal/state"
	"github.com/panoptocord/panoptocord/internal/version"
	"github.com/panoptocord/panoptocord/internal/watcher"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["folders"] = cfg.Watch.FolderCount()
		fields["poll_interval"] = cfg.Runtime.PollInterval.DurationValue().String()
		fields["status_port"] = cfg.Runtime.StatusPort
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	st, store, err := loadState(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化状态文件失败: %v\n", err)
		return 1
	}

	// 启动顺序遵循“配置 → 状态 → 出站 client → watcher → 诊断端点”，
	// token 端点、Panopto API 与 Discord webhook 共享同一份出站配置。
	httpClient := server.NewOutboundClient(cfg)
	w, err := watcher.New(watcher.Options{
		Config:  cfg,
		Store:   store,
		State:   st,
		Auth:    auth.NewManager(cfg.Auth, httpClient, logger),
		Panopto: panopto.NewClient(cfg.Watch.PanoptoBase, httpClient),
		Discord: discord.NewPublisher(cfg.Watch.WebhookURL, httpClient, logger),
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "构建 watcher 失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["folders"] = cfg.Watch.FolderCount()
	fields["poll_interval"] = cfg.Runtime.PollInterval.DurationValue().String()
	fields["state_path"] = cfg.Runtime.StatePath
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := w.Start(); err != nil {
		fmt.Fprintf(stdErr, "启动轮询失败: %v\n", err)
		return 1
	}

	app, err := startStatusServer(cfg, w, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "诊断端点启动失败: %v\n", err)
		_ = w.Stop()
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	// 恢复默认信号处理，第二次信号直接终止进程
	stop()

	logger.WithFields(logging.BaseFields("shutdown", opts.configPath)).Info("收到退出信号，开始收尾")

	code := 0
	if err := w.Stop(); err != nil {
		logger.WithFields(logrus.Fields{
			"action": "shutdown",
			"error":  err.Error(),
		}).Error("watcher 收尾失败")
		code = 1
	}
	if app != nil {
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			logger.WithFields(logrus.Fields{
				"action": "shutdown",
				"error":  err.Error(),
			}).Warn("诊断端点关闭超时")
		}
	}
	return code
}

// loadState 打开状态文件；首次启动时按配置播种新状态，
// 配置中的 refreshToken 轮换后会用新种子覆盖持久化副本。
func loadState(cfg *config.Config, logger *logrus.Logger) (*state.State, state.Store, error) {
	store, err := state.NewFileStore(cfg.Runtime.StatePath)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Load()
	switch {
	case errors.Is(err, state.ErrNotFound):
		st = state.Fresh(cfg.Auth, time.Now().UTC(), cfg.Runtime.AnnounceBackfill)
		logger.WithFields(logrus.Fields{
			"action":     "state_seed",
			"state_path": cfg.Runtime.StatePath,
			"backfill":   cfg.Runtime.AnnounceBackfill,
		}).Info("状态文件不存在，使用配置种子初始化")
	case err != nil:
		// 半写坏或被手改坏的状态文件不应阻止启动，重新播种并在下方落盘覆盖
		st = state.Fresh(cfg.Auth, time.Now().UTC(), cfg.Runtime.AnnounceBackfill)
		logger.WithFields(logrus.Fields{
			"action":     "state_seed",
			"state_path": cfg.Runtime.StatePath,
			"error":      err.Error(),
		}).Warn("状态文件无法读取，使用配置种子重建")
	default:
		if st.ReseedIfRotated(cfg.Auth) {
			logger.WithFields(logrus.Fields{
				"action":     "state_reseed",
				"state_path": cfg.Runtime.StatePath,
			}).Info("配置中的 token 已轮换，覆盖持久化凭据")
		}
	}

	if err := store.Save(st); err != nil {
		return nil, nil, err
	}
	return st, store, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量与位置参数计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("panoptocord", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.json，可被 PANOPTOCORD_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	// 历史部署把配置路径作为第一个位置参数传入，继续兼容。
	path := os.Getenv("PANOPTOCORD_CONFIG")
	if arg := fs.Arg(0); arg != "" {
		path = arg
	}
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.json"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// startStatusServer 在配置了 statusPort 时启动只读诊断端点，返回 nil 表示未启用。
func startStatusServer(cfg *config.Config, w *watcher.Watcher, logger *logrus.Logger) (*fiber.App, error) {
	if cfg.Runtime.StatusPort <= 0 {
		return nil, nil
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Provider:   w,
		ListenPort: cfg.Runtime.StatusPort,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterStatusRoutes(app, w)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   cfg.Runtime.StatusPort,
	}).Info("诊断端点启动")

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Runtime.StatusPort)); err != nil {
			logger.WithFields(logrus.Fields{
				"action": "listen",
				"error":  err.Error(),
			}).Error("诊断端点退出")
		}
	}()

	return app, nil
}
