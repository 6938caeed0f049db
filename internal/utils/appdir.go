// appdir.go - 应用数据目录管理
// 统一计算各平台的应用数据目录，供配置/数据库/日志使用

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// GetAppDataDir 获取应用数据根目录（跨平台）
//   - Windows: %APPDATA%\Page-Assist
//   - macOS:   ~/Library/Application Support/Page-Assist
//   - Linux:   $XDG_DATA_HOME/page-assist 或 ~/.local/share/page-assist
func GetAppDataDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Page-Assist")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Page-Assist")
	default:
		xdgData := os.Getenv("XDG_DATA_HOME")
		if xdgData == "" {
			home, _ := os.UserHomeDir()
			xdgData = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(xdgData, "page-assist")
	}
}

// GetDataDir 获取数据库目录（appdata/data）
func GetDataDir() string {
	return filepath.Join(GetAppDataDir(), "data")
}

// GetLogDir 获取日志目录（appdata/logs）
func GetLogDir() string {
	return filepath.Join(GetAppDataDir(), "logs")
}

// EnsureAppDirs 确保应用目录存在（首次启动时创建）
func EnsureAppDirs() error {
	for _, dir := range []string{GetAppDataDir(), GetDataDir(), GetLogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}
	return nil
}
