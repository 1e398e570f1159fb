package repository

import (
	"context"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TestHistoryRepository 检测历史仓库（只增不改）。
// 写入失败必须返回错误，由工作流上报，不得静默吞掉。
type TestHistoryRepository struct {
	db *gorm.DB
}

func NewTestHistoryRepository(db *gorm.DB) *TestHistoryRepository {
	return &TestHistoryRepository{db: db}
}

// Append 追加一条历史记录
func (r *TestHistoryRepository) Append(ctx context.Context, record *entity.TestHistory) error {
	if record.ID == "" {
		record.ID = uuid.New().String()[:32]
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByTestID 按时间顺序查询检测任务的全部历史
func (r *TestHistoryRepository) FindByTestID(ctx context.Context, testID string) ([]entity.TestHistory, error) {
	var items []entity.TestHistory
	err := r.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("changed_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// CountByTestID 统计检测任务的历史条数
func (r *TestHistoryRepository) CountByTestID(ctx context.Context, testID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.TestHistory{}).
		Where("test_id = ?", testID).
		Count(&count).Error
	return count, err
}
