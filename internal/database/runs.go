package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sshcollectorpro/devextract/internal/model"
)

// RunStore 执行记录存取
type RunStore struct {
	db *gorm.DB
}

// NewRunStore 基于给定连接创建；conn 为 nil 时使用全局数据库
func NewRunStore(conn *gorm.DB) *RunStore {
	if conn == nil {
		conn = GetDB()
	}
	return &RunStore{db: conn}
}

// Save 写入一条记录
func (s *RunStore) Save(run *model.Run) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return withRetry(func() error {
		return s.db.Create(run).Error
	}, 3, 50*time.Millisecond)
}

// Get 按 ID 查询
func (s *RunStore) Get(id string) (*model.Run, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	var run model.Run
	if err := s.db.Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// List 按条件分页查询，最新的在前；返回总数
func (s *RunStore) List(f model.RunFilter) ([]model.Run, int64, error) {
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("database not initialized")
	}
	q := s.db.Model(&model.Run{})
	if f.Host != "" {
		q = q.Where("host = ?", f.Host)
	}
	if f.Dialect != "" {
		q = q.Where("dialect = ?", f.Dialect)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var runs []model.Run
	err := q.Order("start_time DESC").Limit(limit).Offset(f.Offset).Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
