package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"gorm.io/gorm"
)

// TestRepository 检测任务仓库
type TestRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{db: db}
}

// Create 创建检测任务
func (r *TestRepository) Create(ctx context.Context, test *entity.Test) error {
	return r.db.WithContext(ctx).Create(test).Error
}

// FindByID 根据ID查找检测任务
func (r *TestRepository) FindByID(ctx context.Context, id string) (*entity.Test, error) {
	var test entity.Test
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&test).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &test, nil
}

// FindAll 查询检测任务列表
func (r *TestRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Test, int64, error) {
	var items []entity.Test
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Test{})

	if productID := filters["product_id"]; productID != "" {
		query = query.Where("product_id = ?", productID)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if testType := filters["type"]; testType != "" {
		query = query.Where("test_type = ?", testType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByProductID 查询产品的全部检测任务
func (r *TestRepository) FindByProductID(ctx context.Context, productID string) ([]entity.Test, error) {
	var items []entity.Test
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// TransitionStatus 条件状态更新：仅当当前状态为fromStatus时生效。
// 并发竞争的失败方返回false，由调用方读取落库状态后报InvalidState。
func (r *TestRepository) TransitionStatus(ctx context.Context, id, fromStatus string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Test{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateFields 通用字段更新（不做状态检查，调用方保证status经过TransitionStatus）
func (r *TestRepository) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&entity.Test{}).
		Where("id = ?", id).
		Updates(updates).Error
}
