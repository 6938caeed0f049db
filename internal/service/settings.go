// Package service 提供业务逻辑层实现
// 设置服务 - 应用设置的读写、默认值与热更新
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/milhy545/page-assist/internal/store"
)

// SettingCategory 设置分类常量
const (
	CategoryWindow  = "window"
	CategoryTray    = "tray"
	CategoryControl = "control"
	CategoryLogging = "logging"
)

// SettingValueType 设置值类型常量
const (
	ValueTypeString   = "string"
	ValueTypeInt      = "int"
	ValueTypeFloat    = "float"
	ValueTypeBool     = "bool"
	ValueTypeDuration = "duration"
	ValueTypePassword = "password"
)

// CategoryInfo 分类信息
type CategoryInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Order       int    `json:"order"`
}

// SettingsService 设置管理业务服务
type SettingsService struct {
	store          store.SettingsStore
	onChangeFunc   func() // 配置变更回调
	categoryLabels map[string]CategoryInfo
}

// NewSettingsService 创建设置服务实例
func NewSettingsService(store store.SettingsStore) *SettingsService {
	svc := &SettingsService{
		store: store,
		categoryLabels: map[string]CategoryInfo{
			CategoryWindow: {
				Name:        CategoryWindow,
				Label:       "窗口行为",
				Description: "配置主窗口与悬浮窗的默认行为",
				Icon:        "🪟",
				Order:       1,
			},
			CategoryTray: {
				Name:        CategoryTray,
				Label:       "系统托盘",
				Description: "配置托盘图标与点击行为",
				Icon:        "📌",
				Order:       2,
			},
			CategoryControl: {
				Name:        CategoryControl,
				Label:       "控制接口",
				Description: "配置浏览器扩展使用的本机控制接口",
				Icon:        "📡",
				Order:       3,
			},
			CategoryLogging: {
				Name:        CategoryLogging,
				Label:       "日志",
				Description: "配置日志级别与文件轮转",
				Icon:        "📋",
				Order:       4,
			},
		},
	}
	return svc
}

// SetOnChangeCallback 设置配置变更回调
func (s *SettingsService) SetOnChangeCallback(fn func()) {
	s.onChangeFunc = fn
}

// GetCategories 获取所有分类信息
func (s *SettingsService) GetCategories() []CategoryInfo {
	categories := make([]CategoryInfo, 0, len(s.categoryLabels))
	for _, info := range s.categoryLabels {
		categories = append(categories, info)
	}
	// 按 Order 排序
	for i := 0; i < len(categories)-1; i++ {
		for j := i + 1; j < len(categories); j++ {
			if categories[i].Order > categories[j].Order {
				categories[i], categories[j] = categories[j], categories[i]
			}
		}
	}
	return categories
}

// GetCategoryInfo 获取分类信息
func (s *SettingsService) GetCategoryInfo(category string) *CategoryInfo {
	if info, ok := s.categoryLabels[category]; ok {
		return &info
	}
	return nil
}

// Get 获取单个设置值
func (s *SettingsService) Get(ctx context.Context, category, key string) (*store.SettingRecord, error) {
	return s.store.Get(ctx, category, key)
}

// GetValue 获取设置值（仅返回值字符串）
func (s *SettingsService) GetValue(ctx context.Context, category, key string) (string, error) {
	record, err := s.store.Get(ctx, category, key)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return record.Value, nil
}

// GetInt 获取整数值
func (s *SettingsService) GetInt(ctx context.Context, category, key string, defaultVal int) int {
	val, err := s.GetValue(ctx, category, key)
	if err != nil || val == "" {
		return defaultVal
	}
	if i, err := strconv.Atoi(val); err == nil {
		return i
	}
	return defaultVal
}

// GetBool 获取布尔值
func (s *SettingsService) GetBool(ctx context.Context, category, key string, defaultVal bool) bool {
	val, err := s.GetValue(ctx, category, key)
	if err != nil || val == "" {
		return defaultVal
	}
	return val == "true" || val == "1" || val == "yes"
}

// GetDuration 获取时间间隔值
func (s *SettingsService) GetDuration(ctx context.Context, category, key string, defaultVal time.Duration) time.Duration {
	val, err := s.GetValue(ctx, category, key)
	if err != nil || val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}

// GetByCategory 获取分类下的所有设置
func (s *SettingsService) GetByCategory(ctx context.Context, category string) ([]*store.SettingRecord, error) {
	return s.store.GetByCategory(ctx, category)
}

// GetAll 获取所有设置
func (s *SettingsService) GetAll(ctx context.Context) ([]*store.SettingRecord, error) {
	return s.store.GetAll(ctx)
}

// Set 设置单个值
func (s *SettingsService) Set(ctx context.Context, category, key, value string) error {
	if err := s.store.Set(ctx, category, key, value); err != nil {
		return err
	}
	s.triggerOnChange(category, key)
	return nil
}

// UpdateAndApply 批量更新并应用（触发热更新）
// 只更新 value，保留 label、description 等元数据
func (s *SettingsService) UpdateAndApply(ctx context.Context, records []*store.SettingRecord) error {
	if err := s.store.BatchUpdateValues(ctx, records); err != nil {
		return fmt.Errorf("保存设置失败: %w", err)
	}

	// 触发配置热更新
	if s.onChangeFunc != nil {
		s.onChangeFunc()
		slog.Info("✅ [SettingsService] 设置已保存并应用热更新")
	}

	return nil
}

// ResetCategory 重置分类设置为默认值
func (s *SettingsService) ResetCategory(ctx context.Context, category string) error {
	// 删除当前分类的所有设置
	if err := s.store.DeleteByCategory(ctx, category); err != nil {
		return fmt.Errorf("删除分类设置失败: %w", err)
	}

	// 重新写入默认值
	defaults := s.getDefaultsForCategory(category)
	if len(defaults) > 0 {
		if err := s.store.SyncMetadata(ctx, defaults); err != nil {
			return fmt.Errorf("重置默认值失败: %w", err)
		}
	}

	// 触发热更新
	if s.onChangeFunc != nil {
		s.onChangeFunc()
	}

	slog.Info(fmt.Sprintf("✅ [SettingsService] 分类 %s 已重置为默认值", category))
	return nil
}

// triggerOnChange 触发变更回调（检查是否需要重启）
func (s *SettingsService) triggerOnChange(category, key string) {
	record, _ := s.store.Get(context.Background(), category, key)
	if record != nil && record.RequiresRestart {
		slog.Info(fmt.Sprintf("⚠️ [SettingsService] 设置 %s.%s 已保存，需要重启生效", category, key))
		return // 需要重启的配置不触发热更新
	}

	if s.onChangeFunc != nil {
		s.onChangeFunc()
	}
}

// InitDefaults 初始化默认设置
// 始终同步元数据（label、description、value_type等），保留用户设置的 value
func (s *SettingsService) InitDefaults(ctx context.Context) error {
	return s.store.SyncMetadata(ctx, s.GetAllDefaults())
}

// IsInitialized 检查是否已初始化
func (s *SettingsService) IsInitialized(ctx context.Context) (bool, error) {
	return s.store.IsInitialized(ctx)
}

// GetAllDefaults 获取所有默认设置
func (s *SettingsService) GetAllDefaults() []*store.SettingRecord {
	var defaults []*store.SettingRecord

	defaults = append(defaults, s.getDefaultsForCategory(CategoryWindow)...)
	defaults = append(defaults, s.getDefaultsForCategory(CategoryTray)...)
	defaults = append(defaults, s.getDefaultsForCategory(CategoryControl)...)
	defaults = append(defaults, s.getDefaultsForCategory(CategoryLogging)...)

	return defaults
}

// getDefaultsForCategory 获取分类的默认设置
func (s *SettingsService) getDefaultsForCategory(category string) []*store.SettingRecord {
	switch category {
	case CategoryWindow:
		return []*store.SettingRecord{
			{Category: CategoryWindow, Key: "close_to_tray", Value: "true", ValueType: ValueTypeBool, Label: "关闭到托盘", Description: "点击主窗口关闭按钮时隐藏到托盘而不是退出", DisplayOrder: 1},
			{Category: CategoryWindow, Key: "restore_window_state", Value: "true", ValueType: ValueTypeBool, Label: "恢复窗口状态", Description: "重新打开窗口时恢复上次的尺寸与置顶状态", DisplayOrder: 2},
			{Category: CategoryWindow, Key: "floating_width", Value: "400", ValueType: ValueTypeInt, Label: "悬浮窗宽度", Description: "悬浮窗的默认宽度（像素）", DisplayOrder: 3},
			{Category: CategoryWindow, Key: "floating_height", Value: "600", ValueType: ValueTypeInt, Label: "悬浮窗高度", Description: "悬浮窗的默认高度（像素）", DisplayOrder: 4},
			{Category: CategoryWindow, Key: "floating_always_on_top", Value: "true", ValueType: ValueTypeBool, Label: "悬浮窗置顶", Description: "悬浮窗是否默认保持在所有窗口之上", DisplayOrder: 5},
		}

	case CategoryTray:
		return []*store.SettingRecord{
			{Category: CategoryTray, Key: "tooltip", Value: "Page Assist", ValueType: ValueTypeString, Label: "悬浮提示", Description: "鼠标悬停托盘图标时显示的文本", DisplayOrder: 1},
			{Category: CategoryTray, Key: "click_debounce", Value: "300ms", ValueType: ValueTypeDuration, Label: "点击防抖", Description: "Windows 上托盘点击与窗口操作之间的防抖间隔", DisplayOrder: 2},
		}

	case CategoryControl:
		return []*store.SettingRecord{
			{Category: CategoryControl, Key: "enabled", Value: "true", ValueType: ValueTypeBool, Label: "启用控制接口", Description: "是否启动本机 HTTP 控制接口（供浏览器扩展调用）", DisplayOrder: 1, RequiresRestart: true},
			{Category: CategoryControl, Key: "preferred_port", Value: "8765", ValueType: ValueTypeInt, Label: "首选端口", Description: "控制接口首选端口，被占用时自动递增", DisplayOrder: 2, RequiresRestart: true},
			{Category: CategoryControl, Key: "auth_token", Value: "", ValueType: ValueTypePassword, Label: "访问令牌", Description: "Bearer Token，留空表示不鉴权（仅监听本机回环）", DisplayOrder: 3, RequiresRestart: true},
		}

	case CategoryLogging:
		return []*store.SettingRecord{
			{Category: CategoryLogging, Key: "level", Value: "info", ValueType: ValueTypeString, Label: "日志级别", Description: "debug / info / warn / error", DisplayOrder: 1},
			{Category: CategoryLogging, Key: "file_max_size", Value: "100MB", ValueType: ValueTypeString, Label: "单文件上限", Description: "日志文件超过该大小后轮转", DisplayOrder: 2, RequiresRestart: true},
			{Category: CategoryLogging, Key: "file_max_count", Value: "5", ValueType: ValueTypeInt, Label: "保留文件数", Description: "轮转出的历史日志文件保留数量", DisplayOrder: 3, RequiresRestart: true},
			{Category: CategoryLogging, Key: "compress_rotated", Value: "false", ValueType: ValueTypeBool, Label: "压缩历史日志", Description: "轮转出的历史日志是否用 brotli 压缩", DisplayOrder: 4, RequiresRestart: true},
		}

	default:
		return nil
	}
}
