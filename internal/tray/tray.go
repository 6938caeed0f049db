package tray

import (
	"runtime"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/icons"
)

// Options 托盘挂载参数
type Options struct {
	// Tooltip 托盘悬浮提示文本
	Tooltip string

	// Icon 托盘图标（macOS 外的平台使用；macOS 走模板图标）
	Icon []byte

	// DarkModeIcon 深色模式图标，为空时复用 Icon
	DarkModeIcon []byte

	// Debounce Windows 上点击与窗口操作之间的防抖间隔
	Debounce time.Duration
}

// Controller 托盘控制器
type Controller struct {
	tray *application.SystemTray
}

// Stop 移除托盘图标
func (c *Controller) Stop() {
	if c != nil && c.tray != nil {
		c.tray.Destroy()
	}
}

// SetTooltip 更新托盘悬浮提示（设置热更新时调用）
func (c *Controller) SetTooltip(text string) {
	if c != nil && c.tray != nil && text != "" {
		c.tray.SetTooltip(text)
	}
}

// Attach 在 Wails 应用上创建系统托盘
// 菜单结构固定（MenuItems），交互翻译成 Event 后交给路由器
func Attach(app *application.App, router *Router, opts Options) *Controller {
	tray := app.SystemTray.New()

	if opts.Tooltip != "" {
		tray.SetTooltip(opts.Tooltip)
	}

	// macOS 使用模板图标自动适配菜单栏明暗主题
	if runtime.GOOS == "darwin" {
		tray.SetTemplateIcon(icons.SystrayMacTemplate)
	} else if len(opts.Icon) > 0 {
		tray.SetIcon(opts.Icon)
		dark := opts.DarkModeIcon
		if len(dark) == 0 {
			dark = opts.Icon
		}
		tray.SetDarkModeIcon(dark)
	}

	if opts.Debounce > 0 {
		tray.WindowDebounce(opts.Debounce)
	}

	menu := app.NewMenu()
	for _, item := range MenuItems() {
		if item.Separator {
			menu.AddSeparator()
			continue
		}

		id := item.ID
		menuItem := menu.Add(item.Label)
		if id == MenuQuit {
			menuItem.SetAccelerator("CmdOrCtrl+Q")
		}
		menuItem.OnClick(func(_ *application.Context) {
			router.Route(MenuItemClick(id))
		})
	}
	tray.SetMenu(menu)

	tray.OnClick(func() {
		router.Route(LeftClick())
	})

	return &Controller{tray: tray}
}
