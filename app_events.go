// app_events.go - Wails 事件发射
// 将 Go 后端状态变化通知到前端

package main

// 事件名称常量
const (
	EventSystemStatus   = "system:status"
	EventWindowUpdate   = "window:update"
	EventSettingsUpdate = "settings:update"
	EventConfigReloaded = "config:reloaded"
	EventError          = "error"
	EventNotification   = "notification"
)

// emitSystemStatus 发送系统状态更新到前端
func (a *App) emitSystemStatus() {
	if a.app == nil {
		return
	}

	status := a.GetSystemStatus()
	a.app.Event.Emit(EventSystemStatus, status)
}

// emitWindowUpdate 发送窗口状态更新到前端
func (a *App) emitWindowUpdate() {
	if a.app == nil {
		return
	}

	states := a.GetWindowStates()
	// 包装为前端期望的格式 { windows: [...] }
	data := map[string]interface{}{
		"windows": states,
	}

	if a.logger != nil {
		a.logger.Debug("📡 [Wails Event] 推送窗口状态", "count", len(states))
	}

	a.app.Event.Emit(EventWindowUpdate, data)
}

// emitSettingsUpdate 发送设置变更到前端
func (a *App) emitSettingsUpdate() {
	if a.app == nil {
		return
	}

	a.app.Event.Emit(EventSettingsUpdate, nil)
}

// emitConfigReloaded 通知前端配置已重载
func (a *App) emitConfigReloaded() {
	if a.app == nil {
		return
	}

	a.app.Event.Emit(EventConfigReloaded, nil)
}

// emitError 发送错误通知到前端
func (a *App) emitError(title, message string) {
	if a.app == nil {
		return
	}

	a.app.Event.Emit(EventError, map[string]string{
		"title":   title,
		"message": message,
	})
}

// emitNotification 发送通知到前端
func (a *App) emitNotification(level, title, message string) {
	if a.app == nil {
		return
	}

	a.app.Event.Emit(EventNotification, map[string]string{
		"level":   level, // "info", "warning", "error", "success"
		"title":   title,
		"message": message,
	})
}
