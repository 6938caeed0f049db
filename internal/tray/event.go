// Package tray 提供系统托盘：固定菜单、事件模型与路由
package tray

// EventKind 托盘事件类别
type EventKind int

const (
	// KindLeftClick 托盘图标被左键点击
	KindLeftClick EventKind = iota
	// KindMenuItemClick 菜单项被点击
	KindMenuItemClick
	// KindOther 其它交互（右键、悬停等），路由时忽略
	KindOther
)

// Event 托盘事件（封闭变体，只能通过构造函数创建）
type Event struct {
	kind   EventKind
	menuID string
}

// LeftClick 构造左键点击事件
func LeftClick() Event {
	return Event{kind: KindLeftClick}
}

// MenuItemClick 构造菜单项点击事件
func MenuItemClick(id string) Event {
	return Event{kind: KindMenuItemClick, menuID: id}
}

// Other 构造其它交互事件
func Other() Event {
	return Event{kind: KindOther}
}

// Kind 返回事件类别
func (e Event) Kind() EventKind {
	return e.kind
}

// MenuID 返回菜单项 ID（仅 KindMenuItemClick 有意义）
func (e Event) MenuID() string {
	return e.menuID
}
