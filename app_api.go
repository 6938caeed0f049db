// app_api.go - 暴露给前端的 API 方法 (Wails Bindings)
// 这些方法会被绑定生成为 JavaScript 调用
//
// API 文件按功能模块拆分:
// - app_api.go          - 系统状态、配置、辅助函数 (本文件)
// - app_api_window.go   - 窗口管理（悬浮窗/主窗口/置顶/状态）
// - app_api_settings.go - 系统设置管理 (SQLite)

package main

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/milhy545/page-assist/config"
)

// 端口检测缓存（避免频繁 TCP 连接）
// 使用 map 绑定到具体的 host:port，避免配置更改后返回旧端口状态
type portCheckCacheEntry struct {
	result    bool
	timestamp time.Time
}

var (
	portCheckCacheMap = make(map[string]portCheckCacheEntry) // key: "host:port"
	portCheckCacheMu  sync.RWMutex
	portCheckCacheTTL = 500 * time.Millisecond // 缓存有效期
)

// ============================================================
// 系统状态 API
// ============================================================

// SystemStatus 系统状态结构
type SystemStatus struct {
	Version        string   `json:"version"`
	Uptime         string   `json:"uptime"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
	StartTime      string   `json:"start_time"` // ISO8601 格式的启动时间
	ControlPort    int      `json:"control_port"`
	ControlHost    string   `json:"control_host"`
	ControlRunning bool     `json:"control_running"`
	AuthEnabled    bool     `json:"auth_enabled"`
	ConfigPath     string   `json:"config_path"`
	Windows        []string `json:"windows"` // 已注册的窗口名
}

// GetSystemStatus 获取系统状态
func (a *App) GetSystemStatus() SystemStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	uptime := time.Since(a.startTime)

	status := SystemStatus{
		Version:       Version,
		Uptime:        formatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     a.startTime.Format(time.RFC3339),
		ConfigPath:    a.configPath,
	}

	if a.config != nil {
		status.ControlHost = a.config.Control.Host
		status.AuthEnabled = a.config.Control.AuthToken != ""
	}

	if a.controlServer != nil {
		status.ControlPort = a.controlServer.Port()
		// 真正检测端口是否在监听
		if status.ControlPort > 0 {
			status.ControlRunning = a.checkPortListening(status.ControlHost, status.ControlPort)
		}
	}

	if a.windowManager != nil {
		status.Windows = a.windowManager.Names()
	}

	return status
}

// checkPortListening 检测端口是否在监听（带缓存，避免频繁 TCP 连接）
func (a *App) checkPortListening(host string, port int) bool {
	// 使用 net.JoinHostPort 正确处理 IPv6 地址
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	// 先检查缓存（绑定到具体的 host:port）
	portCheckCacheMu.RLock()
	if entry, ok := portCheckCacheMap[addr]; ok {
		if time.Since(entry.timestamp) < portCheckCacheTTL {
			portCheckCacheMu.RUnlock()
			return entry.result
		}
	}
	portCheckCacheMu.RUnlock()

	// 缓存过期或不存在，执行真实检测
	conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)

	result := err == nil
	if conn != nil {
		conn.Close()
	}

	// 更新缓存
	portCheckCacheMu.Lock()
	portCheckCacheMap[addr] = portCheckCacheEntry{
		result:    result,
		timestamp: time.Now(),
	}
	portCheckCacheMu.Unlock()

	return result
}

// ============================================================
// 配置 API
// ============================================================

// ConfigInfo 配置信息（脱敏）
type ConfigInfo struct {
	AppName        string `json:"app_name"`
	ControlEnabled bool   `json:"control_enabled"`
	ControlHost    string `json:"control_host"`
	ControlPort    int    `json:"control_port"`
	AuthEnabled    bool   `json:"auth_enabled"`
	CloseToTray    bool   `json:"close_to_tray"`
	TrayEnabled    bool   `json:"tray_enabled"`
	SingleInstance bool   `json:"single_instance"`
	LogLevel       string `json:"log_level"`
	DatabasePath   string `json:"database_path"`
}

// GetConfig 获取当前配置（脱敏）
func (a *App) GetConfig() ConfigInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.config == nil {
		return ConfigInfo{}
	}

	return ConfigInfo{
		AppName:        a.config.App.Name,
		ControlEnabled: a.config.ControlEnabled(),
		ControlHost:    a.config.Control.Host,
		ControlPort:    a.config.Control.PreferredPort,
		AuthEnabled:    a.config.Control.AuthToken != "",
		CloseToTray:    a.config.CloseToTrayEnabled(),
		TrayEnabled:    a.config.TrayEnabled(),
		SingleInstance: a.config.SingleInstanceEnabled(),
		LogLevel:       a.config.Logging.Level,
		DatabasePath:   a.config.Storage.DatabasePath,
	}
}

// SaveConfigFile 将当前运行配置写回用户配置文件
func (a *App) SaveConfigFile() error {
	a.mu.RLock()
	cfg := a.config
	path := a.configPath
	logger := a.logger
	a.mu.RUnlock()

	if cfg == nil || path == "" {
		return fmt.Errorf("配置尚未加载")
	}

	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("保存配置文件失败: %w", err)
	}

	if logger != nil {
		logger.Info("✅ 配置已写回配置文件", "path", path)
	}
	return nil
}

// ============================================================
// 系统功能 API
// ============================================================

// GetControlURL 获取控制接口 URL
func (a *App) GetControlURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.config == nil || a.controlServer == nil {
		return ""
	}

	port := a.controlServer.Port()
	if port == 0 {
		return ""
	}

	return fmt.Sprintf("http://%s:%d", a.config.Control.Host, port)
}

// IsControlRunning 检查控制接口是否运行中
func (a *App) IsControlRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isRunning && a.controlServer != nil && a.controlServer.Port() > 0
}

// GetRecentLogs 获取内存中的最近日志（前端日志页初始化用）
func (a *App) GetRecentLogs() []map[string]string {
	a.mu.RLock()
	handler := a.logHandler
	a.mu.RUnlock()

	if handler == nil {
		return nil
	}

	entries := handler.Recent()
	result := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		result = append(result, map[string]string{
			"time":    e.Time,
			"level":   e.Level,
			"message": e.Message,
		})
	}
	return result
}

// ============================================================
// 辅助函数
// ============================================================

// formatDuration 格式化时长
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
