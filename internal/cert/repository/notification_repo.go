package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRepository 通知仓库
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create 创建通知。写入失败必须返回错误，由工作流上报。
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()[:32]
	}
	return r.db.WithContext(ctx).Create(n).Error
}

// FindByID 根据ID查找通知
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*entity.Notification, error) {
	var n entity.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// FindByRecipient 查询收件人的通知列表
func (r *NotificationRepository) FindByRecipient(ctx context.Context, recipientID, recipientType string, page, pageSize int) ([]entity.Notification, int64, error) {
	var items []entity.Notification
	var total int64

	query := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("recipient_id = ? AND recipient_type = ?", recipientID, recipientType)

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

// Update 更新通知（仅用于已读标记）
func (r *NotificationRepository) Update(ctx context.Context, n *entity.Notification) error {
	return r.db.WithContext(ctx).Save(n).Error
}

// CountByRecipientAndType 统计某收件人某类型的通知数（测试断言用）
func (r *NotificationRepository) CountByRecipientAndType(ctx context.Context, recipientID, notificationType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("recipient_id = ? AND notification_type = ?", recipientID, notificationType).
		Count(&count).Error
	return count, err
}
