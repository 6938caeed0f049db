package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Window  WindowConfig  `yaml:"window"`
	Tray    TrayConfig    `yaml:"tray"`
	Control ControlConfig `yaml:"control"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
}

type AppConfig struct {
	Name           string `yaml:"name"`                      // 应用显示名称
	SingleInstance *bool  `yaml:"single_instance,omitempty"` // 是否限制单实例，默认: true
}

type WindowConfig struct {
	Main     MainWindowConfig     `yaml:"main"`
	Floating FloatingWindowConfig `yaml:"floating"`
}

type MainWindowConfig struct {
	Width       int   `yaml:"width"`                   // 主窗口宽度，默认: 1024
	Height      int   `yaml:"height"`                  // 主窗口高度，默认: 720
	MinWidth    int   `yaml:"min_width"`               // 最小宽度，默认: 800
	MinHeight   int   `yaml:"min_height"`              // 最小高度，默认: 600
	CloseToTray *bool `yaml:"close_to_tray,omitempty"` // 关闭按钮隐藏到托盘，默认: true
	StartHidden bool  `yaml:"start_hidden"`            // 启动时不显示主窗口，默认: false
}

type FloatingWindowConfig struct {
	Width        int   `yaml:"width"`                    // 悬浮窗宽度，默认: 400
	Height       int   `yaml:"height"`                   // 悬浮窗高度，默认: 600
	AlwaysOnTop  *bool `yaml:"always_on_top,omitempty"`  // 悬浮窗置顶，默认: true
	RestoreState *bool `yaml:"restore_state,omitempty"`  // 恢复上次窗口状态，默认: true
}

type TrayConfig struct {
	Enabled       *bool         `yaml:"enabled,omitempty"` // 启用系统托盘，默认: true
	Tooltip       string        `yaml:"tooltip"`           // 托盘悬浮提示
	ClickDebounce time.Duration `yaml:"click_debounce"`    // Windows 托盘点击防抖，默认: 300ms
}

type ControlConfig struct {
	Enabled        *bool  `yaml:"enabled,omitempty"` // 启用本机控制接口，默认: true
	Host           string `yaml:"host"`              // 监听地址，默认: 127.0.0.1
	PreferredPort  int    `yaml:"preferred_port"`    // 首选端口，默认: 8765
	MaxAttempts    int    `yaml:"max_attempts"`      // 端口递增尝试次数，默认: 10
	MaxConnections int    `yaml:"max_connections"`   // 并发连接上限，默认: 32
	AuthToken      string `yaml:"auth_token,omitempty"`
}

type LoggingConfig struct {
	Level           string `yaml:"level"`            // 日志级别，默认: info
	Format          string `yaml:"format"`           // "json" 或 "text"
	FileEnabled     *bool  `yaml:"file_enabled,omitempty"` // 启用文件日志，默认: true
	FilePath        string `yaml:"file_path"`        // 日志文件路径
	MaxFileSize     string `yaml:"max_file_size"`    // 单文件上限（如 "100MB"）
	MaxFiles        int    `yaml:"max_files"`        // 保留的轮转文件数
	CompressRotated bool   `yaml:"compress_rotated"` // 轮转后用 brotli 压缩
}

type StorageConfig struct {
	DatabasePath string `yaml:"database_path"` // SQLite 数据库路径
}

// CloseToTrayEnabled 主窗口关闭按钮是否隐藏到托盘
func (c *Config) CloseToTrayEnabled() bool {
	return c.Window.Main.CloseToTray == nil || *c.Window.Main.CloseToTray
}

// FloatingAlwaysOnTop 悬浮窗是否默认置顶
func (c *Config) FloatingAlwaysOnTop() bool {
	return c.Window.Floating.AlwaysOnTop == nil || *c.Window.Floating.AlwaysOnTop
}

// RestoreStateEnabled 是否恢复上次窗口状态
func (c *Config) RestoreStateEnabled() bool {
	return c.Window.Floating.RestoreState == nil || *c.Window.Floating.RestoreState
}

// TrayEnabled 是否启用系统托盘
func (c *Config) TrayEnabled() bool {
	return c.Tray.Enabled == nil || *c.Tray.Enabled
}

// ControlEnabled 是否启用控制接口
func (c *Config) ControlEnabled() bool {
	return c.Control.Enabled == nil || *c.Control.Enabled
}

// SingleInstanceEnabled 是否限制单实例
func (c *Config) SingleInstanceEnabled() bool {
	return c.App.SingleInstance == nil || *c.App.SingleInstance
}

// FileLoggingEnabled 是否启用文件日志
func (c *Config) FileLoggingEnabled() bool {
	return c.Logging.FileEnabled == nil || *c.Logging.FileEnabled
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default 返回全默认值的配置（配置文件缺失时的兜底）
func Default() *Config {
	var config Config
	config.setDefaults()
	return &config
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "Page Assist"
	}

	if c.Window.Main.Width == 0 {
		c.Window.Main.Width = 1024
	}
	if c.Window.Main.Height == 0 {
		c.Window.Main.Height = 720
	}
	if c.Window.Main.MinWidth == 0 {
		c.Window.Main.MinWidth = 800
	}
	if c.Window.Main.MinHeight == 0 {
		c.Window.Main.MinHeight = 600
	}

	if c.Window.Floating.Width == 0 {
		c.Window.Floating.Width = 400
	}
	if c.Window.Floating.Height == 0 {
		c.Window.Floating.Height = 600
	}

	if c.Tray.Tooltip == "" {
		c.Tray.Tooltip = c.App.Name
	}
	if c.Tray.ClickDebounce == 0 {
		c.Tray.ClickDebounce = 300 * time.Millisecond
	}

	if c.Control.Host == "" {
		c.Control.Host = "127.0.0.1"
	}
	if c.Control.PreferredPort == 0 {
		c.Control.PreferredPort = 8765
	}
	if c.Control.MaxAttempts == 0 {
		c.Control.MaxAttempts = 10
	}
	if c.Control.MaxConnections == 0 {
		c.Control.MaxConnections = 32
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(getConfigAppDataDir(), "logs", "page-assist.log")
	}
	if c.Logging.MaxFileSize == "" {
		c.Logging.MaxFileSize = "100MB"
	}
	if c.Logging.MaxFiles == 0 {
		c.Logging.MaxFiles = 5
	}

	if c.Storage.DatabasePath == "" {
		// 使用跨平台用户目录作为默认路径
		// Windows: %APPDATA%\Page-Assist\data\page-assist.db
		// macOS: ~/Library/Application Support/Page-Assist/data/page-assist.db
		// Linux: ~/.local/share/page-assist/data/page-assist.db
		c.Storage.DatabasePath = filepath.Join(getConfigAppDataDir(), "data", "page-assist.db")
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Window.Main.Width < c.Window.Main.MinWidth || c.Window.Main.Height < c.Window.Main.MinHeight {
		return fmt.Errorf("main window size %dx%d is smaller than minimum %dx%d",
			c.Window.Main.Width, c.Window.Main.Height, c.Window.Main.MinWidth, c.Window.Main.MinHeight)
	}
	if c.Window.Floating.Width <= 0 || c.Window.Floating.Height <= 0 {
		return fmt.Errorf("floating window size must be positive, got %dx%d",
			c.Window.Floating.Width, c.Window.Floating.Height)
	}

	if c.Control.PreferredPort < 1 || c.Control.PreferredPort > 65535 {
		return fmt.Errorf("control preferred_port must be in range 1-65535, got %d", c.Control.PreferredPort)
	}
	if c.Control.MaxAttempts <= 0 {
		return fmt.Errorf("control max_attempts must be greater than 0")
	}
	if c.Control.MaxConnections <= 0 {
		return fmt.Errorf("control max_connections must be greater than 0")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging format must be 'text' or 'json', got %q", c.Logging.Format)
	}

	return nil
}

// ConfigWatcher handles automatic configuration reloading
type ConfigWatcher struct {
	configPath    string
	config        *Config
	mutex         sync.RWMutex
	watcher       *fsnotify.Watcher
	logger        *slog.Logger
	callbacks     []func(*Config)
	lastModTime   time.Time
	debounceTimer *time.Timer
}

// NewConfigWatcher creates a new configuration watcher
func NewConfigWatcher(configPath string, logger *slog.Logger) (*ConfigWatcher, error) {
	// Load initial configuration
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	// Get initial modification time
	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	// Create file watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	cw := &ConfigWatcher{
		configPath:  configPath,
		config:      config,
		watcher:     watcher,
		logger:      logger,
		callbacks:   make([]func(*Config), 0),
		lastModTime: fileInfo.ModTime(),
	}

	// Add config file to watcher
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	// Start watching in background
	go cw.watchLoop()

	return cw, nil
}

// GetConfig returns the current configuration (thread-safe)
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.config
}

// UpdateLogger updates the logger used by the config watcher
func (cw *ConfigWatcher) UpdateLogger(logger *slog.Logger) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	cw.logger = logger
}

// AddReloadCallback adds a callback function that will be called when config is reloaded
func (cw *ConfigWatcher) AddReloadCallback(callback func(*Config)) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// watchLoop monitors the config file for changes
func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			// Handle file write events
			if event.Has(fsnotify.Write) {
				// Check if file was actually modified by comparing modification time
				fileInfo, err := os.Stat(cw.configPath)
				if err != nil {
					cw.logger.Warn(fmt.Sprintf("⚠️ 无法获取配置文件信息: %v", err))
					continue
				}

				// Skip if modification time hasn't changed
				if !fileInfo.ModTime().After(cw.lastModTime) {
					continue
				}

				cw.lastModTime = fileInfo.ModTime()

				// Cancel any existing debounce timer
				if cw.debounceTimer != nil {
					cw.debounceTimer.Stop()
				}

				// Set up debounce timer to avoid multiple rapid reloads
				cw.debounceTimer = time.AfterFunc(500*time.Millisecond, func() {
					cw.logger.Info(fmt.Sprintf("🔄 检测到配置文件变更，正在重新加载... - 文件: %s", event.Name))
					if err := cw.reloadConfig(); err != nil {
						cw.logger.Error(fmt.Sprintf("❌ 配置文件重新加载失败: %v", err))
					} else {
						cw.logger.Info("✅ 配置文件重新加载成功")
					}
				})
			}

			// Handle file rename/remove events (some editors rename files during save)
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				// Re-add the file to watcher in case it was recreated
				time.Sleep(100 * time.Millisecond) // Give time for the file to be recreated
				if _, err := os.Stat(cw.configPath); err == nil {
					cw.watcher.Add(cw.configPath)
					cw.logger.Info(fmt.Sprintf("🔄 重新监听配置文件: %s", cw.configPath))
				}
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error(fmt.Sprintf("⚠️ 配置文件监听错误: %v", err))
		}
	}
}

// reloadConfig reloads the configuration from file
func (cw *ConfigWatcher) reloadConfig() error {
	newConfig, err := LoadConfig(cw.configPath)
	if err != nil {
		return err
	}

	cw.mutex.Lock()
	oldConfig := cw.config
	cw.config = newConfig
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mutex.Unlock()

	// Call all registered callbacks
	for _, callback := range callbacks {
		callback(newConfig)
	}

	// Log configuration changes
	cw.logConfigChanges(oldConfig, newConfig)

	return nil
}

// logConfigChanges logs the key differences between old and new configurations
func (cw *ConfigWatcher) logConfigChanges(oldConfig, newConfig *Config) {
	if oldConfig.Logging.Level != newConfig.Logging.Level {
		cw.logger.Info("📋 日志级别变更",
			"old_level", oldConfig.Logging.Level,
			"new_level", newConfig.Logging.Level)
	}

	if oldConfig.Control.PreferredPort != newConfig.Control.PreferredPort {
		cw.logger.Info("🌐 控制接口端口变更（重启后生效）",
			"old_port", oldConfig.Control.PreferredPort,
			"new_port", newConfig.Control.PreferredPort)
	}

	if oldConfig.Tray.Tooltip != newConfig.Tray.Tooltip {
		cw.logger.Info("📌 托盘提示文本变更",
			"old_tooltip", oldConfig.Tray.Tooltip,
			"new_tooltip", newConfig.Tray.Tooltip)
	}

	if oldConfig.CloseToTrayEnabled() != newConfig.CloseToTrayEnabled() {
		cw.logger.Info("🪟 关闭到托盘行为变更",
			"old_enabled", oldConfig.CloseToTrayEnabled(),
			"new_enabled", newConfig.CloseToTrayEnabled())
	}

	if oldConfig.Window.Floating.Width != newConfig.Window.Floating.Width ||
		oldConfig.Window.Floating.Height != newConfig.Window.Floating.Height {
		cw.logger.Info("🪟 悬浮窗默认尺寸变更",
			"old_size", fmt.Sprintf("%dx%d", oldConfig.Window.Floating.Width, oldConfig.Window.Floating.Height),
			"new_size", fmt.Sprintf("%dx%d", newConfig.Window.Floating.Width, newConfig.Window.Floating.Height))
	}
}

// Close stops the configuration watcher
func (cw *ConfigWatcher) Close() error {
	// Cancel any pending debounce timer
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	return cw.watcher.Close()
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, path string) error {
	// Marshal config to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigAppDataDir 获取应用数据目录（跨平台）
// 复制自 internal/utils/appdir.go，避免循环依赖
// Windows: %APPDATA%\Page-Assist
// macOS: ~/Library/Application Support/Page-Assist
// Linux: ~/.local/share/page-assist
func getConfigAppDataDir() string {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(baseDir, "Page-Assist")

	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Application Support", "Page-Assist")

	case "linux":
		homeDir, _ := os.UserHomeDir()
		xdgDataHome := os.Getenv("XDG_DATA_HOME")
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "page-assist")
		}
		return filepath.Join(homeDir, ".local", "share", "page-assist")

	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".page-assist")
	}
}
