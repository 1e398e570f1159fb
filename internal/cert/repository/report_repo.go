package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"gorm.io/gorm"
)

// ReportRepository 检测报告仓库
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create 创建报告
func (r *ReportRepository) Create(ctx context.Context, report *entity.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// FindByID 根据ID查找报告
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*entity.Report, error) {
	var report entity.Report
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

// FindAll 查询报告列表
func (r *ReportRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Report, int64, error) {
	var items []entity.Report
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Report{})

	if productID := filters["product_id"]; productID != "" {
		query = query.Where("product_id = ?", productID)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
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

// FindByProductID 查询产品的全部报告
func (r *ReportRepository) FindByProductID(ctx context.Context, productID string) ([]entity.Report, error) {
	var items []entity.Report
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindByStatus 查询指定状态的报告（启动时恢复generating用）
func (r *ReportRepository) FindByStatus(ctx context.Context, status string) ([]entity.Report, error) {
	var items []entity.Report
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Find(&items).Error
	return items, err
}

// UpdateFields 更新报告字段
func (r *ReportRepository) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&entity.Report{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CompleteFrom 条件完成：仅当报告仍处于fromStatus时写入完成字段，
// 防止恢复调度与原定时器重复完成同一份报告。
func (r *ReportRepository) CompleteFrom(ctx context.Context, id, fromStatus string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Report{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
