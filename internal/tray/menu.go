package tray

// 托盘菜单项 ID
const (
	MenuShowMain = "show_main"
	MenuFloating = "floating"
	MenuQuit     = "quit"
)

// Item 一个托盘菜单项；Separator 为 true 时其余字段忽略
type Item struct {
	ID        string
	Label     string
	Separator bool
}

// MenuItems 返回托盘菜单的固定结构（顺序即展示顺序）
func MenuItems() []Item {
	return []Item{
		{ID: MenuShowMain, Label: "Show Main Window"},
		{ID: MenuFloating, Label: "Floating Mode"},
		{Separator: true},
		{ID: MenuQuit, Label: "Quit"},
	}
}
