// Package service 提供业务逻辑层实现
// 窗口状态服务 - 悬浮窗尺寸与置顶状态的持久化
package service

import (
	"context"
	"fmt"

	"github.com/milhy545/page-assist/internal/store"
	"github.com/milhy545/page-assist/internal/window"
)

// WindowStateService 窗口状态持久化服务
// 读写 window_state 表，失败时调用方应降级为默认值而不是中断启动
type WindowStateService struct {
	store    store.WindowStateStore
	settings *SettingsService
}

// NewWindowStateService 创建窗口状态服务实例
func NewWindowStateService(store store.WindowStateStore, settings *SettingsService) *WindowStateService {
	return &WindowStateService{store: store, settings: settings}
}

// restoreEnabled 是否恢复上次窗口状态（window.restore_window_state 设置）
func (s *WindowStateService) restoreEnabled(ctx context.Context) bool {
	if s.settings == nil {
		return true
	}
	return s.settings.GetBool(ctx, CategoryWindow, "restore_window_state", true)
}

// ApplyFloatingState 将持久化的悬浮窗状态叠加到创建参数上
// 没有记录或恢复被禁用时原样返回；尺寸会被钳制到最小值以上
func (s *WindowStateService) ApplyFloatingState(ctx context.Context, opts window.Options) window.Options {
	if s == nil || s.store == nil {
		return opts
	}
	if !s.restoreEnabled(ctx) {
		return opts
	}

	record, err := s.store.Get(ctx, opts.Name)
	if err != nil || record == nil {
		return opts
	}

	if record.Width >= opts.MinWidth {
		opts.Width = record.Width
	}
	if record.Height >= opts.MinHeight {
		opts.Height = record.Height
	}
	opts.AlwaysOnTop = record.AlwaysOnTop
	return opts
}

// RecordAlwaysOnTop 记录窗口置顶状态变更
// 已有记录时保留原尺寸，没有记录时按窗口默认尺寸补全
func (s *WindowStateService) RecordAlwaysOnTop(ctx context.Context, name string, enabled bool) error {
	if s == nil || s.store == nil {
		return nil
	}
	if name == "" {
		return fmt.Errorf("窗口名称不能为空")
	}

	record, err := s.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if record == nil {
		width, height := defaultWindowSize(name)
		record = &store.WindowStateRecord{Name: name, Width: width, Height: height}
	}

	record.AlwaysOnTop = enabled
	return s.store.Save(ctx, record)
}

// RecordSize 记录窗口尺寸（保留已有的置顶标记）
func (s *WindowStateService) RecordSize(ctx context.Context, name string, width, height int) error {
	if s == nil || s.store == nil {
		return nil
	}
	if name == "" {
		return fmt.Errorf("窗口名称不能为空")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("窗口尺寸必须为正数: %dx%d", width, height)
	}

	record, err := s.store.Get(ctx, name)
	if err != nil {
		return err
	}
	alwaysOnTop := false
	if record != nil {
		alwaysOnTop = record.AlwaysOnTop
	} else if name == window.Floating {
		// 悬浮窗默认置顶，首次落盘时不要丢掉该标记
		alwaysOnTop = true
	}

	return s.store.Save(ctx, &store.WindowStateRecord{
		Name:        name,
		Width:       width,
		Height:      height,
		AlwaysOnTop: alwaysOnTop,
	})
}

// States 列出所有已持久化的窗口状态
func (s *WindowStateService) States(ctx context.Context) ([]*store.WindowStateRecord, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	return s.store.List(ctx)
}

// Forget 删除某个窗口的持久化状态（恢复为默认值）
func (s *WindowStateService) Forget(ctx context.Context, name string) error {
	if s == nil || s.store == nil {
		return nil
	}
	if name == "" {
		return fmt.Errorf("窗口名称不能为空")
	}
	return s.store.Delete(ctx, name)
}

// defaultWindowSize 窗口的出厂默认尺寸
func defaultWindowSize(name string) (int, int) {
	if name == window.Floating {
		return window.FloatingWidth, window.FloatingHeight
	}
	return 1024, 720
}
