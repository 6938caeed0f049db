package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/milhy545/page-assist/internal/store"
	"github.com/milhy545/page-assist/internal/window"
)

func newTestWindowStateService(t *testing.T) (*WindowStateService, *SettingsService, func()) {
	t.Helper()

	db, cleanup := createServiceTestDB(t)
	settings := NewSettingsService(store.NewSQLiteSettingsStore(db))
	if err := settings.InitDefaults(context.Background()); err != nil {
		cleanup()
		t.Fatalf("初始化默认设置失败: %v", err)
	}
	svc := NewWindowStateService(store.NewSQLiteWindowStateStore(db), settings)
	return svc, settings, cleanup
}

func TestApplyFloatingStateWithoutRecord(t *testing.T) {
	svc, _, cleanup := newTestWindowStateService(t)
	defer cleanup()

	opts := window.FloatingOptions()
	got := svc.ApplyFloatingState(context.Background(), opts)
	if !reflect.DeepEqual(got, opts) {
		t.Fatalf("无记录时参数不应改变: got %+v", got)
	}
}

func TestApplyFloatingStateOverrides(t *testing.T) {
	svc, _, cleanup := newTestWindowStateService(t)
	defer cleanup()

	ctx := context.Background()
	err := svc.RecordSize(ctx, window.Floating, 520, 680)
	if err != nil {
		t.Fatalf("保存尺寸失败: %v", err)
	}
	if err := svc.RecordAlwaysOnTop(ctx, window.Floating, false); err != nil {
		t.Fatalf("保存置顶状态失败: %v", err)
	}

	got := svc.ApplyFloatingState(ctx, window.FloatingOptions())
	if got.Width != 520 || got.Height != 680 {
		t.Fatalf("尺寸未恢复: got %dx%d", got.Width, got.Height)
	}
	if got.AlwaysOnTop {
		t.Fatalf("置顶状态未恢复")
	}
	// 固定属性不受持久化影响
	if !got.Frameless || got.Title != window.FloatingTitle {
		t.Fatalf("固定属性被意外修改: %+v", got)
	}
}

func TestApplyFloatingStateClampsToMinimum(t *testing.T) {
	svc, _, cleanup := newTestWindowStateService(t)
	defer cleanup()

	ctx := context.Background()
	if err := svc.RecordSize(ctx, window.Floating, 100, 120); err != nil {
		t.Fatalf("保存尺寸失败: %v", err)
	}

	got := svc.ApplyFloatingState(ctx, window.FloatingOptions())
	if got.Width != window.FloatingWidth || got.Height != window.FloatingHeight {
		t.Fatalf("小于最小值的记录不应生效: got %dx%d", got.Width, got.Height)
	}
}

func TestApplyFloatingStateRestoreDisabled(t *testing.T) {
	svc, settings, cleanup := newTestWindowStateService(t)
	defer cleanup()

	ctx := context.Background()
	if err := svc.RecordSize(ctx, window.Floating, 520, 680); err != nil {
		t.Fatalf("保存尺寸失败: %v", err)
	}
	if err := settings.Set(ctx, CategoryWindow, "restore_window_state", "false"); err != nil {
		t.Fatalf("关闭状态恢复失败: %v", err)
	}

	opts := window.FloatingOptions()
	got := svc.ApplyFloatingState(ctx, opts)
	if !reflect.DeepEqual(got, opts) {
		t.Fatalf("恢复被禁用时参数不应改变: got %+v", got)
	}
}

func TestRecordAlwaysOnTopBackfillsDefaults(t *testing.T) {
	svc, _, cleanup := newTestWindowStateService(t)
	defer cleanup()

	ctx := context.Background()
	if err := svc.RecordAlwaysOnTop(ctx, window.Floating, true); err != nil {
		t.Fatalf("保存置顶状态失败: %v", err)
	}

	states, err := svc.States(ctx)
	if err != nil {
		t.Fatalf("读取状态列表失败: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("状态数量错误: got %d", len(states))
	}
	if states[0].Width != window.FloatingWidth || states[0].Height != window.FloatingHeight {
		t.Fatalf("缺失记录应按默认尺寸补全: got %dx%d", states[0].Width, states[0].Height)
	}
	if !states[0].AlwaysOnTop {
		t.Fatalf("置顶状态未保存")
	}
}

func TestRecordSizePreservesOnTopFlag(t *testing.T) {
	svc, _, cleanup := newTestWindowStateService(t)
	defer cleanup()

	ctx := context.Background()

	// 悬浮窗首次落盘时默认置顶
	if err := svc.RecordSize(ctx, window.Floating, 500, 700); err != nil {
		t.Fatalf("保存悬浮窗尺寸失败: %v", err)
	}
	// 主窗口没有置顶默认
	if err := svc.RecordSize(ctx, window.Main, 1280, 800); err != nil {
		t.Fatalf("保存主窗口尺寸失败: %v", err)
	}

	states, err := svc.States(ctx)
	if err != nil {
		t.Fatalf("读取状态列表失败: %v", err)
	}
	byName := map[string]*store.WindowStateRecord{}
	for _, st := range states {
		byName[st.Name] = st
	}
	if !byName[window.Floating].AlwaysOnTop {
		t.Fatalf("悬浮窗首次落盘应默认置顶")
	}
	if byName[window.Main].AlwaysOnTop {
		t.Fatalf("主窗口不应默认置顶")
	}

	// 显式取消置顶后，再次保存尺寸不能把标记翻回去
	if err := svc.RecordAlwaysOnTop(ctx, window.Floating, false); err != nil {
		t.Fatalf("取消置顶失败: %v", err)
	}
	if err := svc.RecordSize(ctx, window.Floating, 480, 640); err != nil {
		t.Fatalf("再次保存尺寸失败: %v", err)
	}
	record, err := svc.store.Get(ctx, window.Floating)
	if err != nil || record == nil {
		t.Fatalf("读取记录失败: %v", err)
	}
	if record.AlwaysOnTop {
		t.Fatalf("保存尺寸不应覆盖已取消的置顶标记")
	}
	if record.Width != 480 || record.Height != 640 {
		t.Fatalf("尺寸未更新: got %dx%d", record.Width, record.Height)
	}
}

func TestForgetWindowState(t *testing.T) {
	svc, _, cleanup := newTestWindowStateService(t)
	defer cleanup()

	ctx := context.Background()
	if err := svc.RecordSize(ctx, window.Floating, 500, 700); err != nil {
		t.Fatalf("保存尺寸失败: %v", err)
	}
	if err := svc.Forget(ctx, window.Floating); err != nil {
		t.Fatalf("删除状态失败: %v", err)
	}

	opts := window.FloatingOptions()
	if got := svc.ApplyFloatingState(ctx, opts); !reflect.DeepEqual(got, opts) {
		t.Fatalf("删除后应回到默认参数: got %+v", got)
	}
}
