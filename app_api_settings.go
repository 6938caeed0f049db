// app_api_settings.go - 系统设置管理 API (Wails Bindings)
// 提供 SQLite 设置存储的增删改查功能

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/milhy545/page-assist/internal/service"
	"github.com/milhy545/page-assist/internal/store"
	"github.com/milhy545/page-assist/internal/utils"
)

// ============================================================
// 系统设置管理 API (SQLite)
// ============================================================

// SettingInfo 设置信息（给前端用的结构体）
type SettingInfo struct {
	ID              int64  `json:"id"`
	Category        string `json:"category"`
	Key             string `json:"key"`
	Value           string `json:"value"`
	ValueType       string `json:"value_type"`
	Label           string `json:"label"`
	Description     string `json:"description"`
	DisplayOrder    int    `json:"display_order"`
	RequiresRestart bool   `json:"requires_restart"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// CategoryInfo 分类信息
type CategoryInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Order       int    `json:"order"`
}

// SettingsStorageStatus 设置存储状态
type SettingsStorageStatus struct {
	Enabled       bool `json:"enabled"`
	TotalCount    int  `json:"total_count"`
	CategoryCount int  `json:"category_count"`
	IsInitialized bool `json:"is_initialized"`
}

// UpdateSettingInput 更新单个设置的输入
type UpdateSettingInput struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// BatchUpdateSettingsInput 批量更新设置的输入
type BatchUpdateSettingsInput struct {
	Settings []UpdateSettingInput `json:"settings"`
}

// PortInfo 控制接口端口信息
type PortInfo struct {
	PreferredPort int  `json:"preferred_port"`
	ActualPort    int  `json:"actual_port"`
	IsDefault     bool `json:"is_default"`
	WasOccupied   bool `json:"was_occupied"`
}

func (a *App) errSettingsServiceDisabled() error {
	a.mu.RLock()
	dbPath := ""
	if a.config != nil {
		dbPath = a.config.Storage.DatabasePath
	}
	a.mu.RUnlock()

	if dbPath != "" {
		return fmt.Errorf("设置服务未启用（设置数据库未就绪，db=%s）。请稍等重试；若一直失败，请检查是否有另一个 Page Assist 实例占用数据库或重启应用。", dbPath)
	}
	return fmt.Errorf("设置服务未启用（设置数据库未就绪）。请稍等重试；若一直失败，请检查是否有另一个 Page Assist 实例占用数据库或重启应用。")
}

// GetSettingsStorageStatus 获取设置存储状态
func (a *App) GetSettingsStorageStatus() SettingsStorageStatus {
	a.mu.RLock()
	settingsService := a.settingsService
	a.mu.RUnlock()

	status := SettingsStorageStatus{
		Enabled: false,
	}

	if settingsService == nil {
		return status
	}

	status.Enabled = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 获取统计信息
	initialized, _ := settingsService.IsInitialized(ctx)
	status.IsInitialized = initialized

	records, err := settingsService.GetAll(ctx)
	if err == nil {
		status.TotalCount = len(records)
	}

	categories := settingsService.GetCategories()
	status.CategoryCount = len(categories)

	return status
}

// GetSettingCategories 获取所有设置分类
func (a *App) GetSettingCategories() []CategoryInfo {
	a.mu.RLock()
	settingsService := a.settingsService
	a.mu.RUnlock()

	if settingsService == nil {
		return []CategoryInfo{}
	}

	serviceCategories := settingsService.GetCategories()
	result := make([]CategoryInfo, 0, len(serviceCategories))

	for _, cat := range serviceCategories {
		result = append(result, CategoryInfo{
			Name:        cat.Name,
			Label:       cat.Label,
			Description: cat.Description,
			Icon:        cat.Icon,
			Order:       cat.Order,
		})
	}

	return result
}

// GetAllSettings 获取所有设置
func (a *App) GetAllSettings() ([]SettingInfo, error) {
	a.mu.RLock()
	settingsService := a.settingsService
	a.mu.RUnlock()

	if settingsService == nil {
		return nil, a.errSettingsServiceDisabled()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := settingsService.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取设置列表失败: %w", err)
	}

	result := make([]SettingInfo, 0, len(records))
	for _, r := range records {
		result = append(result, a.settingRecordToInfo(r))
	}

	return result, nil
}

// GetSettingsByCategory 获取指定分类的设置
func (a *App) GetSettingsByCategory(category string) ([]SettingInfo, error) {
	a.mu.RLock()
	settingsService := a.settingsService
	a.mu.RUnlock()

	if settingsService == nil {
		return nil, a.errSettingsServiceDisabled()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := settingsService.GetByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("获取分类设置失败: %w", err)
	}

	result := make([]SettingInfo, 0, len(records))
	for _, r := range records {
		result = append(result, a.settingRecordToInfo(r))
	}

	return result, nil
}

// GetSetting 获取单个设置
func (a *App) GetSetting(category, key string) (SettingInfo, error) {
	a.mu.RLock()
	settingsService := a.settingsService
	a.mu.RUnlock()

	if settingsService == nil {
		return SettingInfo{}, a.errSettingsServiceDisabled()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record, err := settingsService.Get(ctx, category, key)
	if err != nil {
		return SettingInfo{}, fmt.Errorf("获取设置失败: %w", err)
	}
	if record == nil {
		return SettingInfo{}, fmt.Errorf("设置 '%s.%s' 不存在", category, key)
	}

	return a.settingRecordToInfo(record), nil
}

// UpdateSetting 更新单个设置
func (a *App) UpdateSetting(input UpdateSettingInput) error {
	a.mu.RLock()
	settingsService := a.settingsService
	logger := a.logger
	a.mu.RUnlock()

	if settingsService == nil {
		return a.errSettingsServiceDisabled()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := settingsService.Set(ctx, input.Category, input.Key, input.Value); err != nil {
		return fmt.Errorf("更新设置失败: %w", err)
	}

	if logger != nil {
		logger.Info("✅ 设置已更新", "category", input.Category, "key", input.Key)
	}

	a.emitSettingsUpdate()
	return nil
}

// BatchUpdateSettings 批量更新设置
func (a *App) BatchUpdateSettings(input BatchUpdateSettingsInput) error {
	a.mu.RLock()
	settingsService := a.settingsService
	logger := a.logger
	a.mu.RUnlock()

	if settingsService == nil {
		return a.errSettingsServiceDisabled()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 转换为 store.SettingRecord
	records := make([]*store.SettingRecord, 0, len(input.Settings))
	for _, s := range input.Settings {
		records = append(records, &store.SettingRecord{
			Category: s.Category,
			Key:      s.Key,
			Value:    s.Value,
		})
	}

	if err := settingsService.UpdateAndApply(ctx, records); err != nil {
		return fmt.Errorf("批量更新设置失败: %w", err)
	}

	if logger != nil {
		logger.Info("✅ 设置已批量更新并应用", "count", len(records))
	}

	a.emitSettingsUpdate()
	return nil
}

// ResetCategorySettings 重置分类设置为默认值
func (a *App) ResetCategorySettings(category string) error {
	a.mu.RLock()
	settingsService := a.settingsService
	logger := a.logger
	a.mu.RUnlock()

	if settingsService == nil {
		return a.errSettingsServiceDisabled()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := settingsService.ResetCategory(ctx, category); err != nil {
		return fmt.Errorf("重置设置失败: %w", err)
	}

	if logger != nil {
		logger.Info("✅ 设置分类已重置", "category", category)
	}

	a.emitSettingsUpdate()
	return nil
}

// GetPortInfo 获取控制接口端口信息
func (a *App) GetPortInfo() PortInfo {
	a.mu.RLock()
	cfg := a.config
	server := a.controlServer
	a.mu.RUnlock()

	// 默认值
	defaultPort := 0
	if cfg != nil {
		defaultPort = cfg.Control.PreferredPort
	}
	info := PortInfo{
		PreferredPort: defaultPort,
		ActualPort:    defaultPort,
		IsDefault:     true,
		WasOccupied:   false,
	}

	if server != nil {
		portInfo := server.PortInfo()
		info = PortInfo{
			PreferredPort: portInfo.PreferredPort,
			ActualPort:    portInfo.ActualPort,
			IsDefault:     portInfo.IsDefault,
			WasOccupied:   portInfo.WasOccupied,
		}
	}

	return info
}

// UpdatePreferredPort 更新控制接口首选端口（需要重启生效）
func (a *App) UpdatePreferredPort(port int) error {
	a.mu.RLock()
	settingsService := a.settingsService
	server := a.controlServer
	logger := a.logger
	a.mu.RUnlock()

	if settingsService == nil {
		return a.errSettingsServiceDisabled()
	}

	// 验证端口范围
	if port < 1 || port > 65535 {
		return fmt.Errorf("端口号必须在 1-65535 之间")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := settingsService.Set(ctx, service.CategoryControl, "preferred_port", fmt.Sprintf("%d", port)); err != nil {
		return fmt.Errorf("更新首选端口失败: %w", err)
	}

	// 更新运行中服务器的端口记录（状态面板展示用）
	if server != nil {
		server.SetPreferredPort(port)
	}

	if logger != nil {
		logger.Info("✅ 首选端口已更新（需要重启生效）", "port", port)
	}

	return nil
}

// CheckPortAvailable 检查端口是否可用
func (a *App) CheckPortAvailable(port int) bool {
	return utils.IsPortAvailable(port)
}

// settingRecordToInfo 将数据库记录转换为前端 Info 结构
func (a *App) settingRecordToInfo(r *store.SettingRecord) SettingInfo {
	info := SettingInfo{
		ID:              r.ID,
		Category:        r.Category,
		Key:             r.Key,
		Value:           r.Value,
		ValueType:       r.ValueType,
		Label:           r.Label,
		Description:     r.Description,
		DisplayOrder:    r.DisplayOrder,
		RequiresRestart: r.RequiresRestart,
	}

	if !r.CreatedAt.IsZero() {
		info.CreatedAt = r.CreatedAt.Format("2006-01-02 15:04:05")
	}
	if !r.UpdatedAt.IsZero() {
		info.UpdatedAt = r.UpdatedAt.Format("2006-01-02 15:04:05")
	}

	return info
}
