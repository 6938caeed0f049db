// app_api_window.go - 窗口管理 API (Wails Bindings)
// 包含悬浮窗创建/切换、主窗口切换、置顶控制与窗口状态查询

package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/milhy545/page-assist/internal/control"
	"github.com/milhy545/page-assist/internal/window"
)

// ============================================================
// 窗口管理 API
// ============================================================

// WindowStateInfo 窗口状态信息（运行时 + 持久化的合并视图）
type WindowStateInfo struct {
	Name        string `json:"name"`
	Registered  bool   `json:"registered"`    // 窗口当前是否存在
	Visible     bool   `json:"visible"`       // 当前是否可见
	AlwaysOnTop bool   `json:"always_on_top"` // 置顶标记（来自持久化记录）
	Width       int    `json:"width"`         // 持久化宽度，无记录时为 0
	Height      int    `json:"height"`        // 持久化高度，无记录时为 0
	UpdatedAt   string `json:"updated_at"`    // 最后一次持久化时间，无记录时为空
}

// CreateFloatingWindow 创建悬浮窗
// 已存在时返回错误，由前端提示用户
func (a *App) CreateFloatingWindow() error {
	a.mu.RLock()
	manager := a.windowManager
	a.mu.RUnlock()

	if manager == nil {
		return fmt.Errorf("窗口管理器未初始化")
	}

	if _, err := manager.CreateFloating(); err != nil {
		return err
	}

	a.emitWindowUpdate()
	return nil
}

// ToggleFloatingWindow 切换悬浮窗可见性（不存在时自动创建）
func (a *App) ToggleFloatingWindow() error {
	a.mu.RLock()
	manager := a.windowManager
	a.mu.RUnlock()

	if manager == nil {
		return fmt.Errorf("窗口管理器未初始化")
	}

	if err := manager.ToggleFloating(); err != nil {
		return err
	}

	a.emitWindowUpdate()
	return nil
}

// ToggleMainWindow 切换主窗口可见性
func (a *App) ToggleMainWindow() error {
	a.mu.RLock()
	manager := a.windowManager
	a.mu.RUnlock()

	if manager == nil {
		return fmt.Errorf("窗口管理器未初始化")
	}

	if err := manager.ToggleMain(); err != nil {
		return err
	}

	a.emitWindowUpdate()
	return nil
}

// ShowMainWindow 显示并聚焦主窗口（第二实例唤起、托盘菜单使用）
func (a *App) ShowMainWindow() error {
	a.mu.RLock()
	manager := a.windowManager
	a.mu.RUnlock()

	if manager == nil {
		return fmt.Errorf("窗口管理器未初始化")
	}

	if err := manager.Show(window.Main); err != nil {
		return err
	}

	a.emitWindowUpdate()
	return nil
}

// SetWindowAlwaysOnTop 设置指定窗口是否置顶
// 成功后置顶标记会持久化（通过窗口管理器的变更回调）
func (a *App) SetWindowAlwaysOnTop(name string, enabled bool) error {
	a.mu.RLock()
	manager := a.windowManager
	a.mu.RUnlock()

	if manager == nil {
		return fmt.Errorf("窗口管理器未初始化")
	}

	if err := manager.SetAlwaysOnTop(name, enabled); err != nil {
		return err
	}

	a.emitWindowUpdate()
	return nil
}

// GetWindowStates 获取所有窗口状态（运行时 + 持久化合并）
func (a *App) GetWindowStates() []WindowStateInfo {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return a.collectWindowStates(ctx)
}

// ResetWindowState 删除窗口的持久化状态（下次创建回到默认尺寸）
func (a *App) ResetWindowState(name string) error {
	a.mu.RLock()
	states := a.windowStates
	logger := a.logger
	a.mu.RUnlock()

	if states == nil {
		return fmt.Errorf("窗口状态服务未初始化")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := states.Forget(ctx, name); err != nil {
		return fmt.Errorf("重置窗口状态失败: %w", err)
	}

	if logger != nil {
		logger.Info("🔄 窗口状态已重置", "window", name)
	}

	a.emitWindowUpdate()
	return nil
}

// collectWindowStates 合并窗口管理器的运行时状态与持久化记录
// 持久化读取失败时退化为只报告运行时状态
func (a *App) collectWindowStates(ctx context.Context) []WindowStateInfo {
	a.mu.RLock()
	manager := a.windowManager
	states := a.windowStates
	a.mu.RUnlock()

	merged := make(map[string]*WindowStateInfo)

	if states != nil {
		records, err := states.States(ctx)
		if err == nil {
			for _, r := range records {
				merged[r.Name] = &WindowStateInfo{
					Name:        r.Name,
					AlwaysOnTop: r.AlwaysOnTop,
					Width:       r.Width,
					Height:      r.Height,
					UpdatedAt:   r.UpdatedAt.Format("2006-01-02 15:04:05"),
				}
			}
		}
	}

	if manager != nil {
		for _, name := range manager.Names() {
			info, ok := merged[name]
			if !ok {
				info = &WindowStateInfo{Name: name}
				merged[name] = info
			}
			info.Registered = true
			if h, found := manager.Get(name); found {
				if visible, err := h.Visible(); err == nil {
					info.Visible = visible
				}
			}
		}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]WindowStateInfo, 0, len(names))
	for _, name := range names {
		result = append(result, *merged[name])
	}
	return result
}

// ============================================================
// 控制接口适配器
// ============================================================

// windowGateway 将 App 的窗口操作适配为控制接口所需的网关
// 复用绑定方法，保证 HTTP 触发的变更同样推送到前端
type windowGateway struct {
	app *App
}

func (g *windowGateway) CreateFloating() error { return g.app.CreateFloatingWindow() }

func (g *windowGateway) ToggleFloating() error { return g.app.ToggleFloatingWindow() }

func (g *windowGateway) ToggleMain() error { return g.app.ToggleMainWindow() }

func (g *windowGateway) ShowMain() error { return g.app.ShowMainWindow() }

func (g *windowGateway) SetAlwaysOnTop(name string, enabled bool) error {
	return g.app.SetWindowAlwaysOnTop(name, enabled)
}

func (g *windowGateway) Windows(ctx context.Context) ([]control.WindowStatus, error) {
	states := g.app.collectWindowStates(ctx)
	result := make([]control.WindowStatus, 0, len(states))
	for _, s := range states {
		result = append(result, control.WindowStatus{
			Name:        s.Name,
			Registered:  s.Registered,
			Visible:     s.Visible,
			AlwaysOnTop: s.AlwaysOnTop,
			Width:       s.Width,
			Height:      s.Height,
		})
	}
	return result, nil
}
