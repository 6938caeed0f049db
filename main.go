// main.go - Page Assist 桌面端入口
// 加载配置与本地存储后挂到 Wails 宿主上运行

package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"

	"github.com/milhy545/page-assist/config"
	"github.com/milhy545/page-assist/internal/logging"
)

// 版本信息
var (
	Version   = "1.5.2"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// 命令行参数
var (
	configPath  = flag.String("config", "", "配置文件路径（留空使用用户目录下的默认配置）")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

// 嵌入前端资源
//
//go:embed all:frontend/dist
var assets embed.FS

// 嵌入托盘/应用图标
//
//go:embed build/appicon.png
var trayIcon []byte

// 嵌入默认配置文件
//
//go:embed config/config.yaml
var defaultConfigContent []byte

// 运行时变量
var currentLogHandler *SimpleHandler

func main() {
	flag.Parse()

	// 处理版本标志
	if *showVersion {
		fmt.Printf("Page Assist Desktop\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Built: %s\n", BuildTime)
		os.Exit(0)
	}

	// 创建应用实例并完成宿主无关的初始化
	// （配置、日志、数据库、单实例检测）
	app := NewApp()
	app.bootstrap(*configPath)

	// 创建 Wails 应用
	wailsApp := application.New(application.Options{
		Name:        app.config.App.Name,
		Description: "Page Assist 桌面端",
		Services: []application.Service{
			application.NewService(app),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	app.SetApplication(wailsApp)

	// 主窗口与窗口管理器
	if err := app.createWindows(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// 系统托盘
	app.attachTray()

	if err := wailsApp.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ============================================================
// 日志相关函数
// ============================================================

// setupLogger 配置结构化日志
// 返回 logger、广播处理器（日志查询用）和事件发射器（推送前端用）
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, *logging.BroadcastHandler, *logging.EventEmitter) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	fileEnabled := cfg.FileEnabled == nil || *cfg.FileEnabled

	var fileRotator *logging.FileRotator
	// 设置文件日志
	if fileEnabled {
		maxSize, err := logging.ParseSize(cfg.MaxFileSize)
		if err != nil {
			fmt.Printf("警告：无法解析日志文件大小配置 '%s'，使用默认值 100MB: %v\n", cfg.MaxFileSize, err)
			maxSize = 100 * 1024 * 1024
		}

		fileRotator, err = logging.NewFileRotator(cfg.FilePath, maxSize, cfg.MaxFiles, cfg.CompressRotated)
		if err != nil {
			fmt.Printf("警告：无法创建日志文件轮转器: %v\n", err)
			fileRotator = nil
		}
	}

	// 创建 SimpleHandler（文件和控制台输出）
	simpleHandler := &SimpleHandler{
		level:       level,
		fileRotator: fileRotator,
	}
	if fileRotator != nil && cfg.Format == "json" {
		// JSON 格式的文件日志交给标准处理器，控制台仍用易读格式
		simpleHandler.fileJSON = slog.NewJSONHandler(fileRotator, &slog.HandlerOptions{Level: level})
	}

	// 日志系统重建时关闭上一个轮转器，避免文件句柄泄漏
	prev := currentLogHandler
	currentLogHandler = simpleHandler
	if prev != nil {
		prev.Close()
	}

	// 用 BroadcastHandler 包装（添加日志查询与前端广播）
	broadcastHandler := logging.NewBroadcastHandler(simpleHandler, 1000)

	emitter := logging.NewEventEmitter()
	broadcastHandler.SetEmitter(emitter)

	if fileRotator != nil {
		fmt.Printf("🔧 文件日志已启用: 路径=%s 格式=%s\n", cfg.FilePath, cfg.Format)
	}

	return slog.New(broadcastHandler), broadcastHandler, emitter
}

// SimpleHandler 简化的日志处理器
type SimpleHandler struct {
	level       slog.Level
	fileRotator *logging.FileRotator
	fileJSON    slog.Handler
}

func (h *SimpleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *SimpleHandler) Handle(ctx context.Context, r slog.Record) error {
	message := r.Message

	var attrs []string
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})

	if len(attrs) > 0 {
		message = message + " " + strings.Join(attrs, " ")
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	pid := os.Getpid()
	gid := getGoroutineID()
	level := "INFO"
	switch r.Level {
	case slog.LevelDebug:
		level = "DEBUG"
	case slog.LevelWarn:
		level = "WARN"
	case slog.LevelError:
		level = "ERROR"
	}

	// 文件输出
	if h.fileJSON != nil {
		h.fileJSON.Handle(ctx, r)
	} else if h.fileRotator != nil {
		fileMessage := message
		if len(fileMessage) > 500 {
			fileMessage = fileMessage[:500] + "... (文件日志截断)"
		}
		formattedMessage := fmt.Sprintf("[%s] [PID:%d] [GID:%d] [%s] %s\n", timestamp, pid, gid, level, fileMessage)
		h.fileRotator.Write([]byte(formattedMessage))
	}

	// 控制台输出
	displayMessage := message
	if len(displayMessage) > 500 {
		displayMessage = displayMessage[:500] + "... (显示截断)"
	}

	consoleMessage := fmt.Sprintf("[%s] [PID:%d] [GID:%d] [%s] %s", timestamp, pid, gid, level, displayMessage)
	fmt.Println(consoleMessage)

	return nil
}

func (h *SimpleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SimpleHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *SimpleHandler) Close() error {
	if h.fileRotator != nil {
		return h.fileRotator.Close()
	}
	return nil
}

func getGoroutineID() int {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	idField := strings.Fields(string(buf))[1]
	id, err := strconv.Atoi(idField)
	if err != nil {
		return 0
	}
	return id
}
