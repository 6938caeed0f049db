// 设置存储 - 应用设置的持久化（分类 + 键值 + 展示元数据）
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// SettingRecord 表示数据库中的设置记录
type SettingRecord struct {
	ID int64 `json:"id"`

	// 设置标识
	Category string `json:"category"` // 分类: window, tray, control, logging
	Key      string `json:"key"`      // 配置键

	// 设置值
	Value     string `json:"value"`      // 值（统一存字符串）
	ValueType string `json:"value_type"` // 类型: string, int, float, bool, duration

	// 显示信息
	Label        string `json:"label"`         // 显示名称
	Description  string `json:"description"`   // 配置说明
	DisplayOrder int    `json:"display_order"` // 显示顺序

	// 元信息
	RequiresRestart bool `json:"requires_restart"` // 是否需要重启生效

	// 审计字段
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingsStore 定义设置存储接口
type SettingsStore interface {
	// 单条操作
	Get(ctx context.Context, category, key string) (*SettingRecord, error)
	Set(ctx context.Context, category, key, value string) error
	Delete(ctx context.Context, category, key string) error

	// 批量操作
	GetByCategory(ctx context.Context, category string) ([]*SettingRecord, error)
	GetAll(ctx context.Context) ([]*SettingRecord, error)
	BatchUpdateValues(ctx context.Context, records []*SettingRecord) error // 只更新value
	DeleteByCategory(ctx context.Context, category string) error

	// 初始化
	InitDefaults(ctx context.Context, defaults []*SettingRecord) error
	IsInitialized(ctx context.Context) (bool, error)
	SyncMetadata(ctx context.Context, defaults []*SettingRecord) error // 同步元数据，保留用户值

	// 统计与分类
	Count(ctx context.Context) (int, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// SQLiteSettingsStore 实现 SettingsStore 接口
type SQLiteSettingsStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteSettingsStore 创建新的 SQLite 设置存储
func NewSQLiteSettingsStore(db *sql.DB) *SQLiteSettingsStore {
	return &SQLiteSettingsStore{db: db}
}

const settingColumns = `id, category, key, value, value_type,
	COALESCE(label, '') as label,
	COALESCE(description, '') as description,
	display_order, requires_restart, created_at, updated_at`

// Get 获取单个设置（不存在时返回 nil, nil）
func (s *SQLiteSettingsStore) Get(ctx context.Context, category, key string) (*SettingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + settingColumns + ` FROM settings WHERE category = ? AND key = ?`

	record, err := scanSettingRow(s.db.QueryRowContext(ctx, query, category, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("获取设置失败: %w", err)
	}

	return record, nil
}

// Set 设置单个值（存在则更新，不存在则插入）
func (s *SQLiteSettingsStore) Set(ctx context.Context, category, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO settings (category, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(category, key) DO UPDATE SET
			value = excluded.value
	`

	if _, err := s.db.ExecContext(ctx, query, category, key, value); err != nil {
		return fmt.Errorf("设置值失败: %w", err)
	}

	return nil
}

// Delete 删除单个设置
func (s *SQLiteSettingsStore) Delete(ctx context.Context, category, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE category = ? AND key = ?`, category, key)
	if err != nil {
		return fmt.Errorf("删除设置失败: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("设置不存在: %s.%s", category, key)
	}

	return nil
}

// GetByCategory 获取分类下的所有设置
func (s *SQLiteSettingsStore) GetByCategory(ctx context.Context, category string) ([]*SettingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + settingColumns + ` FROM settings
		WHERE category = ?
		ORDER BY display_order ASC, key ASC`

	return s.scanSettings(ctx, query, category)
}

// GetAll 获取所有设置
func (s *SQLiteSettingsStore) GetAll(ctx context.Context) ([]*SettingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + settingColumns + ` FROM settings
		ORDER BY category ASC, display_order ASC, key ASC`

	return s.scanSettings(ctx, query)
}

// BatchUpdateValues 批量更新值（只更新 value，保留其他元数据）
func (s *SQLiteSettingsStore) BatchUpdateValues(ctx context.Context, records []*SettingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE settings SET value = ? WHERE category = ? AND key = ?`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, record.Value, record.Category, record.Key); err != nil {
			return fmt.Errorf("更新 %s.%s 失败: %w", record.Category, record.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}

	return nil
}

// DeleteByCategory 删除分类下的所有设置
func (s *SQLiteSettingsStore) DeleteByCategory(ctx context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE category = ?`, category); err != nil {
		return fmt.Errorf("删除分类设置失败: %w", err)
	}

	return nil
}

// InitDefaults 初始化默认设置（仅当设置表为空时写入）
func (s *SQLiteSettingsStore) InitDefaults(ctx context.Context, defaults []*SettingRecord) error {
	initialized, err := s.IsInitialized(ctx)
	if err != nil {
		return err
	}

	if initialized {
		return nil // 已初始化，跳过
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertAll(ctx, defaults, false)
}

// IsInitialized 检查是否已初始化（设置表是否有数据）
func (s *SQLiteSettingsStore) IsInitialized(ctx context.Context) (bool, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SyncMetadata 同步设置元数据（label、description等）
// 已存在的记录保留用户设置的 value，缺失的记录按默认值补齐
func (s *SQLiteSettingsStore) SyncMetadata(ctx context.Context, defaults []*SettingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertAll(ctx, defaults, true)
}

// upsertAll 批量 upsert；preserveValue 为 true 时冲突不覆盖已有 value
// 调用方需持有 s.mu 写锁
func (s *SQLiteSettingsStore) upsertAll(ctx context.Context, records []*SettingRecord, preserveValue bool) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	valueClause := "value = excluded.value,"
	if preserveValue {
		valueClause = ""
	}

	query := `
		INSERT INTO settings (category, key, value, value_type, label, description, display_order, requires_restart)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, key) DO UPDATE SET
			` + valueClause + `
			value_type = excluded.value_type,
			label = excluded.label,
			description = excluded.description,
			display_order = excluded.display_order,
			requires_restart = excluded.requires_restart
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		_, err = stmt.ExecContext(ctx,
			record.Category, record.Key, record.Value, record.ValueType,
			record.Label, record.Description, record.DisplayOrder,
			boolToInt(record.RequiresRestart),
		)
		if err != nil {
			return fmt.Errorf("写入 %s.%s 失败: %w", record.Category, record.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}

	return nil
}

// Count 获取设置总数
func (s *SQLiteSettingsStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM settings").Scan(&count); err != nil {
		return 0, fmt.Errorf("获取设置数量失败: %w", err)
	}

	return count, nil
}

// ListCategories 获取所有分类
func (s *SQLiteSettingsStore) ListCategories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := queryRowsWithSQLiteBusyRetry(ctx, func() (*sql.Rows, error) {
		return s.db.QueryContext(ctx, `SELECT DISTINCT category FROM settings ORDER BY category ASC`)
	})
	if err != nil {
		return nil, fmt.Errorf("获取分类列表失败: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("扫描分类失败: %w", err)
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

// scanSettings 扫描多个设置记录
func (s *SQLiteSettingsStore) scanSettings(ctx context.Context, query string, args ...interface{}) ([]*SettingRecord, error) {
	rows, err := queryRowsWithSQLiteBusyRetry(ctx, func() (*sql.Rows, error) {
		return s.db.QueryContext(ctx, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("查询设置失败: %w", err)
	}
	defer rows.Close()

	var records []*SettingRecord
	for rows.Next() {
		record, err := scanSettingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描设置记录失败: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历设置记录失败: %w", err)
	}

	return records, nil
}

// rowScanner 兼容 *sql.Row 与 *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSettingRow(row rowScanner) (*SettingRecord, error) {
	var record SettingRecord
	var requiresRestart int
	var createdAt, updatedAt string

	err := row.Scan(
		&record.ID, &record.Category, &record.Key, &record.Value, &record.ValueType,
		&record.Label, &record.Description, &record.DisplayOrder,
		&requiresRestart, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.RequiresRestart = requiresRestart == 1
	record.CreatedAt = parseSQLiteDateTime(createdAt)
	record.UpdatedAt = parseSQLiteDateTime(updatedAt)

	return &record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
