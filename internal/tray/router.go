package tray

import (
	"log/slog"
)

// WindowToggler 路由器需要的窗口操作
type WindowToggler interface {
	ToggleMain() error
	ToggleFloating() error
}

// Router 托盘事件路由器
// 窗口切换异步派发（托盘线程不等待窗口操作），错误记日志后丢弃；
// 退出动作同步执行
type Router struct {
	windows WindowToggler
	quit    func()
	logger  *slog.Logger

	// 异步派发函数，测试时可替换为同步执行
	dispatch func(fn func())
}

// NewRouter 创建托盘事件路由器
// quit 在用户选择退出时被调用（应触发宿主的有序退出）
func NewRouter(windows WindowToggler, quit func(), logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		windows:  windows,
		quit:     quit,
		logger:   logger,
		dispatch: func(fn func()) { go fn() },
	}
}

// Route 分发一个托盘事件
func (r *Router) Route(evt Event) {
	switch evt.Kind() {
	case KindLeftClick:
		r.toggleAsync("main", r.windows.ToggleMain)

	case KindMenuItemClick:
		switch evt.MenuID() {
		case MenuShowMain:
			r.toggleAsync("main", r.windows.ToggleMain)
		case MenuFloating:
			r.toggleAsync("floating", r.windows.ToggleFloating)
		case MenuQuit:
			if r.quit != nil {
				r.quit()
			}
		default:
			// 未知菜单项忽略
		}

	case KindOther:
		// 忽略
	}
}

func (r *Router) toggleAsync(name string, op func() error) {
	r.dispatch(func() {
		if err := op(); err != nil {
			r.logger.Warn("托盘触发的窗口切换失败", "window", name, "error", err)
		}
	})
}
