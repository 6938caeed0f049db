package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// createTestDB 创建测试用的 SQLite 数据库（内嵌 schema）
func createTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "store_test_*")
	if err != nil {
		t.Fatalf("创建临时目录失败: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("打开数据库失败: %v", err)
	}

	if err := EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("创建表失败: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

// TestWindowStateGetMissing 测试获取不存在的窗口状态
func TestWindowStateGetMissing(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteWindowStateStore(db)

	rec, err := store.Get(context.Background(), "floating")
	if err != nil {
		t.Fatalf("获取窗口状态失败: %v", err)
	}
	if rec != nil {
		t.Errorf("期望 nil（未保存过），实际得到 %+v", rec)
	}
}

// TestWindowStateSaveAndGet 测试保存与读取
func TestWindowStateSaveAndGet(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteWindowStateStore(db)
	ctx := context.Background()

	err := store.Save(ctx, &WindowStateRecord{
		Name:        "floating",
		Width:       480,
		Height:      720,
		AlwaysOnTop: true,
	})
	if err != nil {
		t.Fatalf("保存窗口状态失败: %v", err)
	}

	rec, err := store.Get(ctx, "floating")
	if err != nil {
		t.Fatalf("获取窗口状态失败: %v", err)
	}
	if rec == nil {
		t.Fatal("期望取到记录，实际为 nil")
	}
	if rec.Width != 480 || rec.Height != 720 {
		t.Errorf("尺寸不匹配: 期望 480x720，实际 %dx%d", rec.Width, rec.Height)
	}
	if !rec.AlwaysOnTop {
		t.Error("期望 AlwaysOnTop 为 true")
	}
	if rec.UpdatedAt.IsZero() {
		t.Error("UpdatedAt 不应为零值")
	}
}

// TestWindowStateUpsert 测试重复保存覆盖旧值
func TestWindowStateUpsert(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteWindowStateStore(db)
	ctx := context.Background()

	if err := store.Save(ctx, &WindowStateRecord{Name: "floating", Width: 400, Height: 600}); err != nil {
		t.Fatalf("首次保存失败: %v", err)
	}
	if err := store.Save(ctx, &WindowStateRecord{Name: "floating", Width: 500, Height: 650, AlwaysOnTop: true}); err != nil {
		t.Fatalf("二次保存失败: %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("查询窗口状态失败: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("期望 1 条记录，实际 %d 条", len(records))
	}
	if records[0].Width != 500 || !records[0].AlwaysOnTop {
		t.Errorf("覆盖后的记录不匹配: %+v", records[0])
	}
}

// TestWindowStateList 测试列出全部窗口状态
func TestWindowStateList(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteWindowStateStore(db)
	ctx := context.Background()

	if err := store.Save(ctx, &WindowStateRecord{Name: "main", Width: 1024, Height: 720}); err != nil {
		t.Fatalf("保存 main 失败: %v", err)
	}
	if err := store.Save(ctx, &WindowStateRecord{Name: "floating", Width: 400, Height: 600}); err != nil {
		t.Fatalf("保存 floating 失败: %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("查询窗口状态失败: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d 条", len(records))
	}
	// 按名称排序: floating 在前
	if records[0].Name != "floating" || records[1].Name != "main" {
		t.Errorf("排序不符: %s, %s", records[0].Name, records[1].Name)
	}
}

// TestWindowStateDelete 测试删除窗口状态
func TestWindowStateDelete(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteWindowStateStore(db)
	ctx := context.Background()

	if err := store.Save(ctx, &WindowStateRecord{Name: "floating", Width: 400, Height: 600}); err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if err := store.Delete(ctx, "floating"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	rec, err := store.Get(ctx, "floating")
	if err != nil {
		t.Fatalf("获取窗口状态失败: %v", err)
	}
	if rec != nil {
		t.Errorf("删除后仍取到记录: %+v", rec)
	}
}

// TestWindowStateSaveInvalid 测试非法记录校验
func TestWindowStateSaveInvalid(t *testing.T) {
	db, cleanup := createTestDB(t)
	defer cleanup()

	store := NewSQLiteWindowStateStore(db)
	ctx := context.Background()

	if err := store.Save(ctx, nil); err == nil {
		t.Error("期望 nil 记录报错")
	}
	if err := store.Save(ctx, &WindowStateRecord{Name: "", Width: 400, Height: 600}); err == nil {
		t.Error("期望空名称报错")
	}
	if err := store.Save(ctx, &WindowStateRecord{Name: "floating", Width: 0, Height: 600}); err == nil {
		t.Error("期望零宽度报错")
	}
}
