// app_api_storage.go - 本地存储诊断 API (Wails Bindings)
// 暴露应用数据库的体积、记录数与维护操作

package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

// StorageStats 应用数据库概况（给前端诊断页用）
type StorageStats struct {
	Available      bool    `json:"available"`        // 数据库是否就绪
	DatabasePath   string  `json:"database_path"`
	DatabaseSize   int64   `json:"database_size"`    // 字节
	DatabaseSizeMB float64 `json:"database_size_mb"`
	JournalMode    string  `json:"journal_mode"`
	SettingCount   int     `json:"setting_count"`
	WindowStates   int     `json:"window_states"`
}

// GetStorageStats 获取应用数据库概况
func (a *App) GetStorageStats() (*StorageStats, error) {
	a.mu.RLock()
	db := a.storeDB
	cfg := a.config
	settingsService := a.settingsService
	windowStates := a.windowStates
	a.mu.RUnlock()

	stats := &StorageStats{}
	if cfg != nil {
		stats.DatabasePath = cfg.Storage.DatabasePath
	}
	if db == nil {
		return stats, nil
	}
	stats.Available = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if info, err := os.Stat(stats.DatabasePath); err == nil {
		stats.DatabaseSize = info.Size()
		stats.DatabaseSizeMB = float64(info.Size()) / 1024.0 / 1024.0
	}

	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&stats.JournalMode); err != nil {
		a.logger.Warn("⚠️ 查询数据库日志模式失败", "error", err)
	}

	if settingsService != nil {
		if records, err := settingsService.GetAll(ctx); err == nil {
			stats.SettingCount = len(records)
		}
	}
	if windowStates != nil {
		if records, err := windowStates.States(ctx); err == nil {
			stats.WindowStates = len(records)
		}
	}

	return stats, nil
}

// CompactDatabase 压缩应用数据库 (VACUUM)
// 长期运行后回收已删除记录占用的空间
func (a *App) CompactDatabase() error {
	a.mu.RLock()
	db := a.storeDB
	cfg := a.config
	a.mu.RUnlock()

	if db == nil {
		return fmt.Errorf("应用数据库未就绪")
	}

	dbPath := ""
	if cfg != nil {
		dbPath = cfg.Storage.DatabasePath
	}

	var before int64
	if info, err := os.Stat(dbPath); err == nil {
		before = info.Size()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("压缩数据库失败: %w", err)
	}

	var after int64
	if info, err := os.Stat(dbPath); err == nil {
		after = info.Size()
	}

	a.logger.Info("✅ 数据库压缩完成",
		"before_bytes", before,
		"after_bytes", after)
	return nil
}
