// Package window 管理应用的两个命名窗口（main / floating）
// 通过 Host/Handle 抽象与宿主 GUI 框架解耦，窗口语义可脱离宿主测试
package window

import "errors"

// 窗口名称常量
const (
	// Main 主窗口
	Main = "main"
	// Floating 悬浮窗
	Floating = "floating"
)

// 悬浮窗默认参数
const (
	FloatingTitle     = "Page Assist - Floating"
	FloatingURL       = "/"
	FloatingWidth     = 400
	FloatingHeight    = 600
	FloatingMinWidth  = 300
	FloatingMinHeight = 400
)

var (
	// ErrWindowNotFound 按名称找不到窗口
	ErrWindowNotFound = errors.New("window not found")

	// ErrFloatingExists 悬浮窗已存在，不允许重复创建
	ErrFloatingExists = errors.New("Floating window already exists")
)

// Handle 表示一个已创建的宿主窗口
// 所有方法返回宿主错误；Visible 查询失败时由调用方决定回退语义
type Handle interface {
	Name() string
	Show() error
	Hide() error
	Focus() error
	Visible() (bool, error)
	Size() (width, height int, err error)
	SetAlwaysOnTop(enabled bool) error
	Close() error
}

// Options 创建窗口的参数
type Options struct {
	Name        string // 注册名（唯一）
	Title       string
	URL         string
	Width       int
	Height      int
	MinWidth    int
	MinHeight   int
	Frameless   bool // 无边框（无系统装饰）
	AlwaysOnTop bool
	SkipTaskbar bool // 不在任务栏显示（按平台尽力而为）
	Resizable   bool
	Hidden      bool // 创建后保持隐藏，显示时机由调用方控制

	// OnClosed 窗口被销毁时回调，参数是该窗口的 Handle
	// 在宿主事件线程触发，回调内不要做窗口操作
	OnClosed func(h Handle)
}

// Host 抽象宿主 GUI 框架的窗口创建能力
type Host interface {
	CreateWindow(opts Options) (Handle, error)
}

// FloatingOptions 返回悬浮窗的默认创建参数
// 宽高与置顶标记可被持久化的窗口状态覆盖
func FloatingOptions() Options {
	return Options{
		Name:        Floating,
		Title:       FloatingTitle,
		URL:         FloatingURL,
		Width:       FloatingWidth,
		Height:      FloatingHeight,
		MinWidth:    FloatingMinWidth,
		MinHeight:   FloatingMinHeight,
		Frameless:   true,
		AlwaysOnTop: true,
		SkipTaskbar: true,
		Resizable:   true,
		Hidden:      true,
	}
}
