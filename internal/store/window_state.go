// 窗口状态存储 - 记住窗口尺寸与置顶标记，重开时恢复
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// WindowStateRecord 表示一个窗口的持久化 UI 状态
type WindowStateRecord struct {
	Name        string    `json:"name"`          // 窗口名: main / floating
	Width       int       `json:"width"`         // 窗口宽度（像素）
	Height      int       `json:"height"`        // 窗口高度（像素）
	AlwaysOnTop bool      `json:"always_on_top"` // 是否置顶
	UpdatedAt   time.Time `json:"updated_at"`
}

// WindowStateStore 定义窗口状态存储接口
type WindowStateStore interface {
	Get(ctx context.Context, name string) (*WindowStateRecord, error)
	Save(ctx context.Context, rec *WindowStateRecord) error
	List(ctx context.Context) ([]*WindowStateRecord, error)
	Delete(ctx context.Context, name string) error
}

// SQLiteWindowStateStore 实现 WindowStateStore 接口
type SQLiteWindowStateStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteWindowStateStore 创建窗口状态存储
func NewSQLiteWindowStateStore(db *sql.DB) *SQLiteWindowStateStore {
	return &SQLiteWindowStateStore{db: db}
}

// Get 获取窗口状态（不存在时返回 nil, nil，调用方回退默认值）
func (s *SQLiteWindowStateStore) Get(ctx context.Context, name string) (*WindowStateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT name, width, height, always_on_top, updated_at FROM window_state WHERE name = ?`

	var rec WindowStateRecord
	var alwaysOnTop int
	var updatedAt string

	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&rec.Name, &rec.Width, &rec.Height, &alwaysOnTop, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("获取窗口状态失败: %w", err)
	}

	rec.AlwaysOnTop = alwaysOnTop == 1
	rec.UpdatedAt = parseSQLiteDateTime(updatedAt)

	return &rec, nil
}

// Save 保存窗口状态（存在则更新）
func (s *SQLiteWindowStateStore) Save(ctx context.Context, rec *WindowStateRecord) error {
	if rec == nil || rec.Name == "" {
		return fmt.Errorf("窗口状态记录无效")
	}
	if rec.Width <= 0 || rec.Height <= 0 {
		return fmt.Errorf("窗口尺寸无效: %dx%d", rec.Width, rec.Height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO window_state (name, width, height, always_on_top, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			width = excluded.width,
			height = excluded.height,
			always_on_top = excluded.always_on_top,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, query, rec.Name, rec.Width, rec.Height, boolToInt(rec.AlwaysOnTop)); err != nil {
		return fmt.Errorf("保存窗口状态失败: %w", err)
	}

	return nil
}

// List 获取所有窗口状态
func (s *SQLiteWindowStateStore) List(ctx context.Context) ([]*WindowStateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT name, width, height, always_on_top, updated_at FROM window_state ORDER BY name ASC`

	rows, err := queryRowsWithSQLiteBusyRetry(ctx, func() (*sql.Rows, error) {
		return s.db.QueryContext(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("查询窗口状态失败: %w", err)
	}
	defer rows.Close()

	var records []*WindowStateRecord
	for rows.Next() {
		var rec WindowStateRecord
		var alwaysOnTop int
		var updatedAt string

		if err := rows.Scan(&rec.Name, &rec.Width, &rec.Height, &alwaysOnTop, &updatedAt); err != nil {
			return nil, fmt.Errorf("扫描窗口状态失败: %w", err)
		}

		rec.AlwaysOnTop = alwaysOnTop == 1
		rec.UpdatedAt = parseSQLiteDateTime(updatedAt)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历窗口状态失败: %w", err)
	}

	return records, nil
}

// Delete 删除窗口状态（恢复默认）
func (s *SQLiteWindowStateStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM window_state WHERE name = ?`, name); err != nil {
		return fmt.Errorf("删除窗口状态失败: %w", err)
	}

	return nil
}
