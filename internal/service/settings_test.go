package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/milhy545/page-assist/internal/store"

	_ "modernc.org/sqlite"
)

func createServiceTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "service_test_*")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		t.Fatalf("打开数据库失败: %v", err)
	}

	if err := store.EnsureSchema(context.Background(), db); err != nil {
		_ = db.Close()
		_ = os.RemoveAll(tmpDir)
		t.Fatalf("初始化表结构失败: %v", err)
	}

	return db, func() {
		_ = db.Close()
		_ = os.RemoveAll(tmpDir)
	}
}

func newTestSettingsService(t *testing.T) (*SettingsService, func()) {
	t.Helper()

	db, cleanup := createServiceTestDB(t)
	svc := NewSettingsService(store.NewSQLiteSettingsStore(db))
	if err := svc.InitDefaults(context.Background()); err != nil {
		cleanup()
		t.Fatalf("初始化默认设置失败: %v", err)
	}
	return svc, cleanup
}

func TestSettingsServiceTypedGetters(t *testing.T) {
	svc, cleanup := newTestSettingsService(t)
	defer cleanup()

	ctx := context.Background()

	if !svc.GetBool(ctx, CategoryWindow, "close_to_tray", false) {
		t.Fatalf("close_to_tray 默认值应为 true")
	}
	if got := svc.GetInt(ctx, CategoryControl, "preferred_port", 0); got != 8765 {
		t.Fatalf("preferred_port 默认值错误: got %d, want 8765", got)
	}
	if got := svc.GetDuration(ctx, CategoryTray, "click_debounce", 0); got != 300*time.Millisecond {
		t.Fatalf("click_debounce 默认值错误: got %v, want 300ms", got)
	}

	// 不存在的键回退到调用方给的默认值
	if got := svc.GetInt(ctx, CategoryWindow, "nonexistent", 42); got != 42 {
		t.Fatalf("缺失键应返回调用方默认值: got %d, want 42", got)
	}
}

func TestSettingsServiceHotReloadSkipsRestartRequired(t *testing.T) {
	svc, cleanup := newTestSettingsService(t)
	defer cleanup()

	ctx := context.Background()

	fired := 0
	svc.SetOnChangeCallback(func() { fired++ })

	// 普通设置触发热更新
	if err := svc.Set(ctx, CategoryWindow, "close_to_tray", "false"); err != nil {
		t.Fatalf("设置 close_to_tray 失败: %v", err)
	}
	if fired != 1 {
		t.Fatalf("普通设置应触发热更新: fired=%d", fired)
	}

	// 需要重启的设置不触发热更新
	if err := svc.Set(ctx, CategoryControl, "preferred_port", "9000"); err != nil {
		t.Fatalf("设置 preferred_port 失败: %v", err)
	}
	if fired != 1 {
		t.Fatalf("需重启的设置不应触发热更新: fired=%d", fired)
	}
	if got := svc.GetInt(ctx, CategoryControl, "preferred_port", 0); got != 9000 {
		t.Fatalf("值本身仍应被保存: got %d", got)
	}
}

func TestSettingsServiceUpdateAndApply(t *testing.T) {
	svc, cleanup := newTestSettingsService(t)
	defer cleanup()

	ctx := context.Background()

	fired := 0
	svc.SetOnChangeCallback(func() { fired++ })

	err := svc.UpdateAndApply(ctx, []*store.SettingRecord{
		{Category: CategoryWindow, Key: "floating_width", Value: "520"},
		{Category: CategoryWindow, Key: "floating_height", Value: "680"},
	})
	if err != nil {
		t.Fatalf("批量更新失败: %v", err)
	}
	if fired != 1 {
		t.Fatalf("批量更新应触发一次热更新: fired=%d", fired)
	}

	if got := svc.GetInt(ctx, CategoryWindow, "floating_width", 0); got != 520 {
		t.Fatalf("floating_width 未更新: got %d", got)
	}

	// 批量更新不应破坏元数据
	record, err := svc.Get(ctx, CategoryWindow, "floating_width")
	if err != nil || record == nil {
		t.Fatalf("读取设置失败: %v", err)
	}
	if record.Label != "悬浮窗宽度" {
		t.Fatalf("label 不应被批量更新覆盖: got %q", record.Label)
	}
}

func TestSettingsServiceResetCategory(t *testing.T) {
	svc, cleanup := newTestSettingsService(t)
	defer cleanup()

	ctx := context.Background()

	if err := svc.Set(ctx, CategoryWindow, "floating_width", "999"); err != nil {
		t.Fatalf("设置失败: %v", err)
	}
	if err := svc.ResetCategory(ctx, CategoryWindow); err != nil {
		t.Fatalf("重置分类失败: %v", err)
	}

	if got := svc.GetInt(ctx, CategoryWindow, "floating_width", 0); got != 400 {
		t.Fatalf("重置后应恢复默认值: got %d, want 400", got)
	}

	// 其他分类不受影响
	if got := svc.GetInt(ctx, CategoryControl, "preferred_port", 0); got != 8765 {
		t.Fatalf("其他分类不应被重置: got %d", got)
	}
}

func TestSettingsServiceCategoriesSorted(t *testing.T) {
	svc, cleanup := newTestSettingsService(t)
	defer cleanup()

	categories := svc.GetCategories()
	if len(categories) != 4 {
		t.Fatalf("分类数量错误: got %d, want 4", len(categories))
	}

	wantOrder := []string{CategoryWindow, CategoryTray, CategoryControl, CategoryLogging}
	for i, want := range wantOrder {
		if categories[i].Name != want {
			t.Fatalf("分类顺序错误: 第 %d 项 got %s, want %s", i, categories[i].Name, want)
		}
	}

	if info := svc.GetCategoryInfo(CategoryTray); info == nil || info.Label != "系统托盘" {
		t.Fatalf("GetCategoryInfo 返回错误: %+v", info)
	}
	if info := svc.GetCategoryInfo("unknown"); info != nil {
		t.Fatalf("未知分类应返回 nil: %+v", info)
	}
}
