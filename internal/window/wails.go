package window

import (
	"fmt"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"
)

// WailsHost 基于 Wails 的 Host 实现
type WailsHost struct {
	app *application.App
}

// NewWailsHost 创建 Wails 窗口宿主
func NewWailsHost(app *application.App) *WailsHost {
	return &WailsHost{app: app}
}

// CreateWindow 按参数创建 webview 窗口
// SkipTaskbar 仅在 Windows 上有对应选项，其余平台由无边框+隐藏近似
func (h *WailsHost) CreateWindow(opts Options) (Handle, error) {
	if h.app == nil {
		return nil, fmt.Errorf("wails application 未初始化")
	}

	w := h.app.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:          opts.Name,
		Title:         opts.Title,
		URL:           opts.URL,
		Width:         opts.Width,
		Height:        opts.Height,
		MinWidth:      opts.MinWidth,
		MinHeight:     opts.MinHeight,
		Frameless:     opts.Frameless,
		AlwaysOnTop:   opts.AlwaysOnTop,
		Hidden:        opts.Hidden,
		DisableResize: !opts.Resizable,
		Windows: application.WindowsWindow{
			HiddenOnTaskbar: opts.SkipTaskbar,
		},
	})
	if w == nil {
		return nil, fmt.Errorf("宿主返回空窗口: %s", opts.Name)
	}

	handle := &WailsHandle{name: opts.Name, win: w}
	if opts.OnClosed != nil {
		w.RegisterHook(events.Common.WindowClosing, func(_ *application.WindowEvent) {
			opts.OnClosed(handle)
		})
	}
	return handle, nil
}

// WailsHandle 包装一个 Wails webview 窗口
// Wails 的窗口操作不返回错误，error 返回值属于 Handle 接口约定
type WailsHandle struct {
	name string
	win  *application.WebviewWindow
}

// WrapWindow 把已创建的 Wails 窗口包成 Handle（用于 main 窗口注册）
func WrapWindow(name string, win *application.WebviewWindow) *WailsHandle {
	return &WailsHandle{name: name, win: win}
}

// Window 返回底层 Wails 窗口（注册关闭钩子等场景使用）
func (h *WailsHandle) Window() *application.WebviewWindow {
	return h.win
}

func (h *WailsHandle) Name() string {
	return h.name
}

func (h *WailsHandle) Show() error {
	h.win.Show()
	return nil
}

func (h *WailsHandle) Hide() error {
	h.win.Hide()
	return nil
}

func (h *WailsHandle) Focus() error {
	h.win.Focus()
	return nil
}

func (h *WailsHandle) Visible() (bool, error) {
	return h.win.IsVisible(), nil
}

func (h *WailsHandle) Size() (int, int, error) {
	width, height := h.win.Size()
	return width, height, nil
}

func (h *WailsHandle) SetAlwaysOnTop(enabled bool) error {
	h.win.SetAlwaysOnTop(enabled)
	return nil
}

func (h *WailsHandle) Close() error {
	h.win.Close()
	return nil
}
