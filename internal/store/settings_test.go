package store

import (
	"context"
	"testing"
)

func defaultTestSettings() []*SettingRecord {
	return []*SettingRecord{
		{Category: "window", Key: "close_to_tray", Value: "true", ValueType: "bool", Label: "关闭到托盘", DisplayOrder: 1},
		{Category: "window", Key: "floating_width", Value: "400", ValueType: "int", Label: "悬浮窗宽度", DisplayOrder: 2},
		{Category: "control", Key: "port", Value: "8765", ValueType: "int", Label: "控制接口端口", RequiresRestart: true},
	}
}

// TestSettingsSetAndGet 测试设置读写
func TestSettingsSetAndGet(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteSettingsStore(db)
	ctx := context.Background()

	if err := store.Set(ctx, "window", "close_to_tray", "false"); err != nil {
		t.Fatalf("设置值失败: %v", err)
	}

	rec, err := store.Get(ctx, "window", "close_to_tray")
	if err != nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if rec == nil {
		t.Fatal("期望取到记录，实际为 nil")
	}
	if rec.Value != "false" {
		t.Errorf("值不匹配: 期望 false，实际 %s", rec.Value)
	}

	missing, err := store.Get(ctx, "window", "no_such_key")
	if err != nil {
		t.Fatalf("获取不存在的设置不应报错: %v", err)
	}
	if missing != nil {
		t.Errorf("期望 nil，实际 %+v", missing)
	}
}

// TestSettingsInitDefaults 测试默认值初始化只执行一次
func TestSettingsInitDefaults(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteSettingsStore(db)
	ctx := context.Background()

	if err := store.InitDefaults(ctx, defaultTestSettings()); err != nil {
		t.Fatalf("初始化默认值失败: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if count != 3 {
		t.Fatalf("期望 3 条记录，实际 %d 条", count)
	}

	// 用户改值后再次初始化不应覆盖
	if err := store.Set(ctx, "window", "floating_width", "520"); err != nil {
		t.Fatalf("更新值失败: %v", err)
	}
	if err := store.InitDefaults(ctx, defaultTestSettings()); err != nil {
		t.Fatalf("重复初始化失败: %v", err)
	}

	rec, err := store.Get(ctx, "window", "floating_width")
	if err != nil || rec == nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if rec.Value != "520" {
		t.Errorf("重复初始化覆盖了用户值: 期望 520，实际 %s", rec.Value)
	}
}

// TestSettingsSyncMetadata 测试元数据同步保留用户值
func TestSettingsSyncMetadata(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteSettingsStore(db)
	ctx := context.Background()

	if err := store.InitDefaults(ctx, defaultTestSettings()); err != nil {
		t.Fatalf("初始化默认值失败: %v", err)
	}
	if err := store.Set(ctx, "window", "close_to_tray", "false"); err != nil {
		t.Fatalf("更新值失败: %v", err)
	}

	// 新版本：改了 label，新增了一个键
	updated := defaultTestSettings()
	updated[0].Label = "关闭时最小化到托盘"
	updated = append(updated, &SettingRecord{
		Category: "tray", Key: "debounce_ms", Value: "300", ValueType: "int", Label: "托盘点击防抖",
	})

	if err := store.SyncMetadata(ctx, updated); err != nil {
		t.Fatalf("同步元数据失败: %v", err)
	}

	rec, err := store.Get(ctx, "window", "close_to_tray")
	if err != nil || rec == nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if rec.Value != "false" {
		t.Errorf("同步元数据覆盖了用户值: 期望 false，实际 %s", rec.Value)
	}
	if rec.Label != "关闭时最小化到托盘" {
		t.Errorf("label 未更新: %s", rec.Label)
	}

	added, err := store.Get(ctx, "tray", "debounce_ms")
	if err != nil {
		t.Fatalf("获取新增设置失败: %v", err)
	}
	if added == nil || added.Value != "300" {
		t.Errorf("新增键未写入: %+v", added)
	}
}

// TestSettingsBatchUpdateValues 测试批量更新只改 value
func TestSettingsBatchUpdateValues(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteSettingsStore(db)
	ctx := context.Background()

	if err := store.InitDefaults(ctx, defaultTestSettings()); err != nil {
		t.Fatalf("初始化默认值失败: %v", err)
	}

	err := store.BatchUpdateValues(ctx, []*SettingRecord{
		{Category: "window", Key: "close_to_tray", Value: "false"},
		{Category: "control", Key: "port", Value: "9000"},
	})
	if err != nil {
		t.Fatalf("批量更新失败: %v", err)
	}

	rec, err := store.Get(ctx, "control", "port")
	if err != nil || rec == nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if rec.Value != "9000" {
		t.Errorf("值未更新: 期望 9000，实际 %s", rec.Value)
	}
	if rec.Label != "控制接口端口" {
		t.Errorf("批量更新不应改动元数据: %s", rec.Label)
	}
}

// TestSettingsCategories 测试分类删除与列举
func TestSettingsCategories(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteSettingsStore(db)
	ctx := context.Background()

	if err := store.InitDefaults(ctx, defaultTestSettings()); err != nil {
		t.Fatalf("初始化默认值失败: %v", err)
	}

	categories, err := store.ListCategories(ctx)
	if err != nil {
		t.Fatalf("获取分类失败: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("期望 2 个分类，实际 %d 个: %v", len(categories), categories)
	}

	if err := store.DeleteByCategory(ctx, "window"); err != nil {
		t.Fatalf("删除分类失败: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if count != 1 {
		t.Errorf("删除分类后期望剩 1 条，实际 %d 条", count)
	}
}
