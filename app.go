// app.go - Wails 应用核心结构
// 封装所有业务组件，提供生命周期管理

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"github.com/milhy545/page-assist/config"
	"github.com/milhy545/page-assist/internal/control"
	"github.com/milhy545/page-assist/internal/logging"
	"github.com/milhy545/page-assist/internal/service"
	"github.com/milhy545/page-assist/internal/store"
	"github.com/milhy545/page-assist/internal/tray"
	"github.com/milhy545/page-assist/internal/utils"
	"github.com/milhy545/page-assist/internal/window"
)

// App 是 Wails 应用的核心结构
// 它封装了所有业务组件，并暴露方法给前端调用
type App struct {
	// Wails 应用句柄（服务注册时由宿主注入）
	app *application.App

	// 核心组件
	config        *config.Config
	configWatcher *config.ConfigWatcher
	logger        *slog.Logger
	storeDB       *sql.DB

	// 系统设置存储 (SQLite)
	settingsStore   store.SettingsStore
	settingsService *service.SettingsService

	// 窗口状态存储 (SQLite)
	windowStateStore store.WindowStateStore
	windowStates     *service.WindowStateService

	// 窗口与托盘
	windowManager *window.Manager
	trayCtl       *tray.Controller

	// 控制接口 (本机 HTTP)
	controlServer *control.Server

	// 应用状态
	startTime  time.Time
	configPath string

	// 并发控制
	mu         sync.RWMutex
	isRunning  bool
	quitting   int32
	bridgeStop chan struct{}

	// 日志处理器（用于查询和广播）
	logHandler *logging.BroadcastHandler
	logEmitter *logging.EventEmitter
}

// NewApp 创建新的应用实例
func NewApp() *App {
	return &App{
		startTime: time.Now(),
	}
}

// bootstrap 初始化不依赖宿主的组件
// 必须在创建 Wails 应用之前调用；configPath 为空时使用用户目录下的默认配置
func (a *App) bootstrap(configPath string) {
	// 1. 加载配置
	a.loadConfig(configPath)

	// 2. 初始化日志
	a.setupLogger()

	// 3. 初始化应用数据库
	a.setupStoreDB()

	// 4. 初始化设置服务 (SQLite)
	a.setupSettingsStore()

	// 5. 初始化窗口状态服务 (SQLite)
	a.setupWindowStateStore()

	// 6. 单实例检测（发现已运行实例时唤起其主窗口并退出本进程）
	a.checkSingleInstance()
}

// SetApplication Wails 在服务注册时注入应用句柄
func (a *App) SetApplication(app *application.App) {
	a.app = app
}

// ServiceStartup 在 Wails 应用启动时调用
// 此时窗口已创建，宿主事件总线可用
func (a *App) ServiceStartup(ctx context.Context, _ application.ServiceOptions) error {
	a.logger.Info("🚀 Page Assist 桌面版启动中...",
		"version", Version,
		"config_file", a.configPath)

	// 1. 日志广播接入前端事件总线
	if a.logEmitter != nil && a.app != nil {
		a.logEmitter.Start(func(name string, data any) { a.app.Event.Emit(name, data) })
	}

	// 2. 启动控制接口
	a.startControlServer(ctx)

	// 3. 设置配置热重载
	a.setupConfigReload()

	// 4. 设置事件桥接
	a.setupEventBridges(ctx)

	a.mu.Lock()
	a.isRunning = true
	a.mu.Unlock()

	a.logger.Info("✅ Page Assist 启动完成")
	return nil
}

// ServiceShutdown 在 Wails 应用关闭时调用
func (a *App) ServiceShutdown() error {
	a.mu.Lock()
	logger := a.logger
	controlServer := a.controlServer
	storeDB := a.storeDB
	configWatcher := a.configWatcher
	logEmitter := a.logEmitter
	bridgeStop := a.bridgeStop
	a.isRunning = false
	a.bridgeStop = nil
	a.mu.Unlock()

	if logger != nil {
		logger.Info("🛑 正在关闭 Page Assist...")
	}

	// 1. 停止事件桥接
	if bridgeStop != nil {
		close(bridgeStop)
	}

	// 2. 关闭控制接口（停止接收新请求）
	if controlServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := controlServer.Shutdown(shutdownCtx); err != nil && logger != nil {
			logger.Error("控制接口关闭失败", "error", err)
		}
		cancel()
	}

	// 3. 落盘窗口尺寸（窗口可能已销毁，失败时静默跳过）
	a.persistWindowSizes()

	// 4. 关闭应用数据库
	if storeDB != nil {
		if err := storeDB.Close(); err != nil && logger != nil {
			logger.Error("应用数据库关闭失败", "error", err)
		}
	}

	// 5. 关闭配置监听
	if configWatcher != nil {
		_ = configWatcher.Close()
	}

	// 6. 停止日志事件发射器
	if logEmitter != nil {
		logEmitter.Stop()
	}

	a.mu.Lock()
	a.controlServer = nil
	a.storeDB = nil
	a.mu.Unlock()

	if logger != nil {
		logger.Info("✅ Page Assist 已关闭")
	}
	return nil
}

// Quit 退出应用（托盘菜单与前端共用入口）
func (a *App) Quit() {
	if !atomic.CompareAndSwapInt32(&a.quitting, 0, 1) {
		return
	}

	if a.logger != nil {
		a.logger.Info("🛑 收到退出请求")
	}

	// 窗口销毁前抓取当前尺寸
	a.persistWindowSizes()

	if a.app == nil {
		os.Exit(0)
	}

	// Quit 可能触发同步回调，不要阻塞调用方线程
	go a.app.Quit()
}

// createWindows 创建主窗口并初始化窗口管理器
// 必须在 Wails 应用创建后、Run 之前调用
func (a *App) createWindows() error {
	if a.app == nil {
		return fmt.Errorf("Wails 应用未就绪")
	}

	host := window.NewWailsHost(a.app)

	// 悬浮窗参数 = 配置默认值 + 持久化的窗口状态
	floatingOpts := window.FloatingOptions()
	floatingOpts.Width = a.config.Window.Floating.Width
	floatingOpts.Height = a.config.Window.Floating.Height
	floatingOpts.AlwaysOnTop = a.config.FloatingAlwaysOnTop()
	if a.windowStates != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		floatingOpts = a.windowStates.ApplyFloatingState(ctx, floatingOpts)
		cancel()
	}

	manager := window.NewManager(host, floatingOpts, a.logger)
	manager.SetOnAlwaysOnTop(func(name string, enabled bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.windowStates.RecordAlwaysOnTop(ctx, name, enabled); err != nil {
			a.logger.Warn("⚠️ 置顶状态落盘失败", "window", name, "error", err)
		}
	})
	a.windowManager = manager

	// 主窗口
	mainCfg := a.config.Window.Main
	mainWin := a.app.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:      window.Main,
		Title:     a.config.App.Name,
		URL:       "/",
		Width:     mainCfg.Width,
		Height:    mainCfg.Height,
		MinWidth:  mainCfg.MinWidth,
		MinHeight: mainCfg.MinHeight,
		Hidden:    mainCfg.StartHidden,
	})

	// 关闭主窗口时隐藏到托盘；未启用托盘驻留时直接走退出流程
	mainWin.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		if atomic.LoadInt32(&a.quitting) != 0 {
			return
		}

		if a.config.CloseToTrayEnabled() {
			e.Cancel()
			mainWin.Hide()
			a.logger.Debug("🪟 主窗口已隐藏到托盘")
			a.persistWindowSizes()
			a.emitWindowUpdate()
			return
		}

		e.Cancel()
		a.Quit()
	})

	manager.Register(window.WrapWindow(window.Main, mainWin))

	a.logger.Info("🪟 主窗口已创建",
		"width", mainCfg.Width,
		"height", mainCfg.Height,
		"hidden", mainCfg.StartHidden)
	return nil
}

// attachTray 挂载系统托盘
// 托盘交互经由网关适配器触发，保证前端同步收到窗口状态推送
func (a *App) attachTray() {
	if !a.config.TrayEnabled() {
		a.logger.Info("📌 系统托盘已禁用")
		return
	}
	if a.app == nil || a.windowManager == nil {
		return
	}

	router := tray.NewRouter(&windowGateway{app: a}, a.Quit, a.logger)
	a.trayCtl = tray.Attach(a.app, router, tray.Options{
		Tooltip:  a.config.Tray.Tooltip,
		Icon:     trayIcon,
		Debounce: a.config.Tray.ClickDebounce,
	})

	a.logger.Info("📌 系统托盘已挂载", "tooltip", a.config.Tray.Tooltip)
}

// loadConfig 加载配置
func (a *App) loadConfig(configPath string) {
	// 创建临时 logger 用于初始化
	tempLogger := slog.Default()

	// 确保应用目录存在
	if err := utils.EnsureAppDirs(); err != nil {
		tempLogger.Warn("⚠️ 无法创建应用目录", "error", err)
	} else {
		tempLogger.Info("📁 应用目录已就绪",
			"appdir", utils.GetAppDataDir(),
			"data", utils.GetDataDir(),
			"logs", utils.GetLogDir())
	}

	// 未显式指定配置文件时，把嵌入的默认配置落到用户目录（已存在则不覆盖）
	if configPath == "" {
		configPath = filepath.Join(utils.GetAppDataDir(), "config.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			tempLogger.Info("📝 写入默认配置文件", "path", configPath)
			if err := os.WriteFile(configPath, defaultConfigContent, 0644); err != nil {
				panic(fmt.Sprintf("无法写入默认配置文件: %v", err))
			}
		}
	}

	// 创建配置监听器（加载时会补全默认值并校验）
	configWatcher, err := config.NewConfigWatcher(configPath, tempLogger)
	if err != nil {
		panic(fmt.Sprintf("无法加载配置: %v", err))
	}

	a.configWatcher = configWatcher
	cfg := configWatcher.GetConfig()

	// 路径类配置留空时统一指向用户目录（在任何组件初始化之前）
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = filepath.Join(utils.GetLogDir(), "app.log")
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(utils.GetDataDir(), "page-assist.db")
	}

	a.config = cfg
	a.configPath = configPath

	tempLogger.Info("✅ 配置加载完成",
		"config_file", configPath,
		"log_path", cfg.Logging.FilePath,
		"db_path", cfg.Storage.DatabasePath)
}

// setupLogger 设置日志
func (a *App) setupLogger() {
	logger, broadcastHandler, emitter := setupLogger(a.config.Logging)
	a.logger = logger
	slog.SetDefault(logger)

	// 存储日志处理器和发射器引用
	a.logHandler = broadcastHandler
	a.logEmitter = emitter

	a.logger.Info("✅ 日志系统初始化完成",
		"level", a.config.Logging.Level,
		"file_enabled", a.config.FileLoggingEnabled())
}

// refreshLogger 按当前日志配置重建日志系统
// 配置热重载与日志设置变更共用此路径
func (a *App) refreshLogger() {
	// 停止旧的日志 Emitter，避免多个 Emitter 同时广播导致日志重复
	if a.logEmitter != nil {
		a.logEmitter.Stop()
	}

	newLogger, newHandler, newEmitter := setupLogger(a.config.Logging)
	slog.SetDefault(newLogger)
	a.logger = newLogger
	a.logHandler = newHandler
	a.logEmitter = newEmitter

	if a.configWatcher != nil {
		a.configWatcher.UpdateLogger(newLogger)
	}

	// 宿主就绪时立即恢复日志广播
	if a.app != nil {
		newEmitter.Start(func(name string, data any) { a.app.Event.Emit(name, data) })
	}
}

// setupStoreDB 初始化应用数据库（设置与窗口状态共用）
func (a *App) setupStoreDB() {
	if a.config == nil {
		return
	}
	if a.storeDB != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.OpenDB(ctx, a.config.Storage.DatabasePath)
	if err != nil {
		a.logger.Warn("⚠️ 应用数据库初始化失败，设置与窗口状态记忆将不可用",
			"db", a.config.Storage.DatabasePath,
			"error", err)
		a.emitNotification("warning", "数据库暂不可用",
			"检测到数据库可能被占用或初始化失败；设置与窗口状态记忆暂不可用。请确保只运行一个 Page Assist 实例，必要时重启。")
		return
	}

	a.storeDB = db
	a.logger.Info("✅ 应用数据库已就绪", "db", a.config.Storage.DatabasePath)
}

// setupSettingsStore 设置系统设置存储 (SQLite)
func (a *App) setupSettingsStore() {
	db := a.storeDB
	if db == nil {
		a.logger.Error("❌ 无法获取数据库连接 (设置存储)")
		return
	}

	// 创建 SettingsStore
	a.settingsStore = store.NewSQLiteSettingsStore(db)

	// 创建 SettingsService
	a.settingsService = service.NewSettingsService(a.settingsStore)

	// 设置配置变更回调 - 热更新
	a.settingsService.SetOnChangeCallback(func() {
		a.applySettingsToConfig()
	})

	// 初始化默认设置（如果表为空）
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.settingsService.InitDefaults(ctx); err != nil {
		a.logger.Error("❌ 初始化默认设置失败", "error", err)
		return
	}

	// 从数据库加载设置并应用到配置
	a.applySettingsToConfig()

	a.logger.Info("✅ 系统设置存储已启用 (SQLite)")
}

// setupWindowStateStore 设置窗口状态存储 (SQLite)
func (a *App) setupWindowStateStore() {
	db := a.storeDB
	if db == nil {
		a.logger.Warn("⚠️ 数据库未就绪，窗口状态记忆不可用")
		return
	}

	a.windowStateStore = store.NewSQLiteWindowStateStore(db)
	a.windowStates = service.NewWindowStateService(a.windowStateStore, a.settingsService)

	a.logger.Info("✅ 窗口状态存储已启用 (SQLite)")
}

// checkSingleInstance 单实例检测
// 通过控制接口的健康检查识别已运行的实例；发现后唤起其主窗口并退出本进程
func (a *App) checkSingleInstance() {
	if a.config == nil || !a.config.SingleInstanceEnabled() || !a.config.ControlEnabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := a.config.Control.Host
	for i := 0; i < a.config.Control.MaxAttempts; i++ {
		port := a.config.Control.PreferredPort + i
		if port > 65535 {
			break
		}
		if !control.ProbeRunningInstance(ctx, host, port) {
			continue
		}

		a.logger.Info("🔁 检测到已运行的实例，唤起其主窗口后退出", "port", port)
		if err := control.RequestShowMain(ctx, host, port, a.config.Control.AuthToken); err != nil {
			a.logger.Warn("⚠️ 唤起已运行实例失败", "error", err)
		}

		if a.storeDB != nil {
			_ = a.storeDB.Close()
		}
		os.Exit(0)
	}
}

// startControlServer 启动控制接口
func (a *App) startControlServer(ctx context.Context) {
	if !a.config.ControlEnabled() {
		a.logger.Info("📡 控制接口已禁用")
		return
	}

	server := control.NewServer(control.Options{
		Host:           a.config.Control.Host,
		PreferredPort:  a.config.Control.PreferredPort,
		MaxAttempts:    a.config.Control.MaxAttempts,
		AuthToken:      a.config.Control.AuthToken,
		MaxConnections: a.config.Control.MaxConnections,
		Version:        Version,
	}, &windowGateway{app: a}, a.logger)

	if err := server.Start(ctx); err != nil {
		a.logger.Error("❌ 控制接口启动失败", "error", err)
		a.emitError("控制接口启动失败", err.Error())
		return
	}

	a.mu.Lock()
	a.controlServer = server
	a.mu.Unlock()
}

// setupConfigReload 设置配置热重载
func (a *App) setupConfigReload() {
	a.configWatcher.AddReloadCallback(func(newCfg *config.Config) {
		a.mu.Lock()
		defer a.mu.Unlock()

		// 更新配置引用
		a.config = newCfg

		// 路径类配置仍然补全到用户目录
		if a.config.Logging.FilePath == "" {
			a.config.Logging.FilePath = filepath.Join(utils.GetLogDir(), "app.log")
		}
		if a.config.Storage.DatabasePath == "" {
			a.config.Storage.DatabasePath = filepath.Join(utils.GetDataDir(), "page-assist.db")
		}

		// 更新日志
		a.refreshLogger()

		// 更新各组件
		a.applyConfigToComponents()

		a.logger.Info("🔄 配置已重新加载")

		// 通知前端配置已更新
		a.emitConfigReloaded()
	})

	a.logger.Info("🔄 配置热重载已启用")
}

// setupEventBridges 设置事件桥接
// 定时把系统状态推送到前端
func (a *App) setupEventBridges(ctx context.Context) {
	stop := make(chan struct{})
	a.mu.Lock()
	a.bridgeStop = stop
	a.mu.Unlock()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				a.mu.RLock()
				running := a.isRunning
				a.mu.RUnlock()
				if running {
					a.emitSystemStatus()
				}
			}
		}
	}()

	a.logger.Info("📡 事件桥接已启用")
}

// applySettingsToConfig 从数据库加载设置并应用到运行时配置
func (a *App) applySettingsToConfig() {
	if a.settingsService == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 窗口行为
	closeToTray := a.settingsService.GetBool(ctx, service.CategoryWindow, "close_to_tray", a.config.CloseToTrayEnabled())
	a.config.Window.Main.CloseToTray = &closeToTray
	restoreState := a.settingsService.GetBool(ctx, service.CategoryWindow, "restore_window_state", a.config.RestoreStateEnabled())
	a.config.Window.Floating.RestoreState = &restoreState
	a.config.Window.Floating.Width = a.settingsService.GetInt(ctx, service.CategoryWindow, "floating_width", a.config.Window.Floating.Width)
	a.config.Window.Floating.Height = a.settingsService.GetInt(ctx, service.CategoryWindow, "floating_height", a.config.Window.Floating.Height)
	floatingOnTop := a.settingsService.GetBool(ctx, service.CategoryWindow, "floating_always_on_top", a.config.FloatingAlwaysOnTop())
	a.config.Window.Floating.AlwaysOnTop = &floatingOnTop

	// 托盘
	a.config.Tray.Tooltip = a.getSettingString(ctx, service.CategoryTray, "tooltip", a.config.Tray.Tooltip)
	a.config.Tray.ClickDebounce = a.settingsService.GetDuration(ctx, service.CategoryTray, "click_debounce", a.config.Tray.ClickDebounce)

	// 控制接口（重启生效项，只回填展示值）
	controlEnabled := a.settingsService.GetBool(ctx, service.CategoryControl, "enabled", a.config.ControlEnabled())
	a.config.Control.Enabled = &controlEnabled
	a.config.Control.PreferredPort = a.settingsService.GetInt(ctx, service.CategoryControl, "preferred_port", a.config.Control.PreferredPort)
	a.config.Control.AuthToken = a.getSettingString(ctx, service.CategoryControl, "auth_token", a.config.Control.AuthToken)

	// 日志
	oldLevel := a.config.Logging.Level
	a.config.Logging.Level = a.getSettingString(ctx, service.CategoryLogging, "level", a.config.Logging.Level)
	a.config.Logging.MaxFileSize = a.getSettingString(ctx, service.CategoryLogging, "file_max_size", a.config.Logging.MaxFileSize)
	a.config.Logging.MaxFiles = a.settingsService.GetInt(ctx, service.CategoryLogging, "file_max_count", a.config.Logging.MaxFiles)
	a.config.Logging.CompressRotated = a.settingsService.GetBool(ctx, service.CategoryLogging, "compress_rotated", a.config.Logging.CompressRotated)

	a.logger.Debug("已从数据库加载设置")

	// 日志级别支持热更新，其余日志项重启生效
	if a.config.Logging.Level != oldLevel {
		a.refreshLogger()
		a.logger.Info("📋 日志级别已更新", "old", oldLevel, "new", a.config.Logging.Level)
	}

	// 更新各组件配置
	a.applyConfigToComponents()
}

// applyConfigToComponents 将当前配置同步到运行中的组件
func (a *App) applyConfigToComponents() {
	if a.windowManager != nil {
		opts := window.FloatingOptions()
		opts.Width = a.config.Window.Floating.Width
		opts.Height = a.config.Window.Floating.Height
		opts.AlwaysOnTop = a.config.FloatingAlwaysOnTop()
		a.windowManager.SetFloatingOptions(opts)
	}
	if a.trayCtl != nil {
		a.trayCtl.SetTooltip(a.config.Tray.Tooltip)
	}
}

// getSettingString 获取字符串设置值（带默认值）
func (a *App) getSettingString(ctx context.Context, category, key, defaultVal string) string {
	val, err := a.settingsService.GetValue(ctx, category, key)
	if err != nil || val == "" {
		return defaultVal
	}
	return val
}

// persistWindowSizes 把当前窗口尺寸写入数据库
// 退出与隐藏到托盘时调用；窗口已销毁或查询失败时跳过
func (a *App) persistWindowSizes() {
	a.mu.RLock()
	manager := a.windowManager
	states := a.windowStates
	logger := a.logger
	a.mu.RUnlock()

	if manager == nil || states == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, name := range manager.Names() {
		h, ok := manager.Get(name)
		if !ok {
			continue
		}
		width, height, err := h.Size()
		if err != nil || width <= 0 || height <= 0 {
			continue
		}
		if err := states.RecordSize(ctx, name, width, height); err != nil && logger != nil {
			logger.Warn("⚠️ 窗口尺寸落盘失败", "window", name, "error", err)
		}
	}
}
