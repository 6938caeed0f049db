package window

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Manager 窗口管理器
// 维护按名称注册的窗口表，并实现悬浮窗创建、可见性切换与置顶设置
// 窗口表访问全部走读写锁；宿主调用一律在锁外执行
type Manager struct {
	host   Host
	logger *slog.Logger

	mu      sync.RWMutex
	windows map[string]Handle

	// 悬浮窗创建参数（默认值 + 持久化状态合并后的结果）
	floatingOpts Options

	// 置顶变更回调（用于持久化），在宿主调用成功后触发
	onAlwaysOnTop func(name string, enabled bool)
}

// NewManager 创建窗口管理器
func NewManager(host Host, floatingOpts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if floatingOpts.Name == "" {
		floatingOpts = FloatingOptions()
	}
	return &Manager{
		host:         host,
		logger:       logger,
		windows:      make(map[string]Handle),
		floatingOpts: floatingOpts,
	}
}

// SetOnAlwaysOnTop 设置置顶变更回调
func (m *Manager) SetOnAlwaysOnTop(fn func(name string, enabled bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAlwaysOnTop = fn
}

// FloatingOptions 返回当前悬浮窗创建参数
func (m *Manager) FloatingOptions() Options {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.floatingOpts
}

// SetFloatingOptions 更新悬浮窗创建参数（设置热更新时调用）
// 只影响之后创建的悬浮窗，已存在的窗口不受影响
func (m *Manager) SetFloatingOptions(opts Options) {
	if opts.Name == "" {
		opts = FloatingOptions()
	}
	m.mu.Lock()
	m.floatingOpts = opts
	m.mu.Unlock()
}

// Register 注册窗口（同名覆盖）
func (m *Manager) Register(h Handle) {
	if h == nil {
		return
	}
	m.mu.Lock()
	m.windows[h.Name()] = h
	m.mu.Unlock()
}

// Deregister 移除窗口（窗口被销毁后调用）
func (m *Manager) Deregister(name string) {
	m.mu.Lock()
	delete(m.windows, name)
	m.mu.Unlock()
}

// deregisterHandle 只在注册表里仍是同一个句柄时移除
// 并发创建竞争中落败方的销毁回调不能把胜者注销掉
func (m *Manager) deregisterHandle(name string, h Handle) {
	m.mu.Lock()
	if cur, ok := m.windows[name]; ok && cur == h {
		delete(m.windows, name)
	}
	m.mu.Unlock()
}

// Get 按名称查找窗口；不存在时第二个返回值为 false
func (m *Manager) Get(name string) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.windows[name]
	return h, ok
}

// Names 返回已注册的窗口名（排序后）
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.windows))
	for name := range m.windows {
		names = append(names, name)
	}
	m.mu.RUnlock()

	sort.Strings(names)
	return names
}

// CreateFloating 创建悬浮窗并注册
// 已存在时返回 ErrFloatingExists；宿主创建失败时返回包装后的错误
func (m *Manager) CreateFloating() (Handle, error) {
	m.mu.RLock()
	_, exists := m.windows[Floating]
	opts := m.floatingOpts
	m.mu.RUnlock()
	if exists {
		return nil, ErrFloatingExists
	}

	// 窗口被销毁后自动注销，之后可以再次创建
	opts.OnClosed = func(closed Handle) {
		m.deregisterHandle(Floating, closed)
	}

	h, err := m.host.CreateWindow(opts)
	if err != nil {
		return nil, fmt.Errorf("Failed to create floating window: %w", err)
	}

	m.mu.Lock()
	if _, raced := m.windows[Floating]; raced {
		// 并发创建时保留先注册的那个
		m.mu.Unlock()
		h.Close()
		return nil, ErrFloatingExists
	}
	m.windows[Floating] = h
	m.mu.Unlock()

	m.logger.Info("悬浮窗已创建",
		"width", opts.Width,
		"height", opts.Height,
		"always_on_top", opts.AlwaysOnTop)

	return h, nil
}

// ToggleFloating 切换悬浮窗可见性
// 不存在时先创建再显示；可见性查询失败按不可见处理
func (m *Manager) ToggleFloating() error {
	m.mu.RLock()
	h, ok := m.windows[Floating]
	m.mu.RUnlock()

	if !ok {
		created, err := m.CreateFloating()
		if err != nil {
			return err
		}
		return m.showAndFocus(created)
	}

	return m.toggle(h)
}

// ToggleMain 切换主窗口可见性；主窗口未注册时静默跳过
func (m *Manager) ToggleMain() error {
	m.mu.RLock()
	h, ok := m.windows[Main]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	return m.toggle(h)
}

// Show 显示并聚焦指定窗口（不做可见性切换）
// 第二实例唤起主窗口时使用
func (m *Manager) Show(name string) error {
	m.mu.RLock()
	h, ok := m.windows[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrWindowNotFound, name)
	}

	return m.showAndFocus(h)
}

// SetAlwaysOnTop 设置指定窗口是否置顶
func (m *Manager) SetAlwaysOnTop(name string, enabled bool) error {
	m.mu.RLock()
	h, ok := m.windows[name]
	cb := m.onAlwaysOnTop
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrWindowNotFound, name)
	}

	if err := h.SetAlwaysOnTop(enabled); err != nil {
		return err
	}

	if cb != nil {
		cb(name, enabled)
	}

	return nil
}

// toggle 可见则隐藏，不可见则显示并聚焦
func (m *Manager) toggle(h Handle) error {
	visible, err := h.Visible()
	if err != nil {
		// 查询失败按不可见处理，走显示路径
		m.logger.Debug("窗口可见性查询失败，按隐藏处理", "window", h.Name(), "error", err)
		visible = false
	}

	if visible {
		return h.Hide()
	}

	return m.showAndFocus(h)
}

func (m *Manager) showAndFocus(h Handle) error {
	if err := h.Show(); err != nil {
		return err
	}
	return h.Focus()
}
