package service

import (
	"context"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/cert/sse"
	"github.com/facebookgo/clock"
	"github.com/google/uuid"
)

// NotificationService 通知服务。只负责通知记录落库和站内SSE推送，
// 邮件/短信等投递渠道不在本服务范围。
type NotificationService struct {
	repo *repository.NotificationRepository
	hub  *sse.Hub
	clk  clock.Clock
}

func NewNotificationService(repo *repository.NotificationRepository, hub *sse.Hub, clk clock.Clock) *NotificationService {
	return &NotificationService{repo: repo, hub: hub, clk: clk}
}

// Notify 创建一条已发送状态的通知。本设计中分发同步完成，落库即视为已发送；
// 写入失败原样返回错误，由工作流决定如何上报。
func (s *NotificationService) Notify(ctx context.Context, recipientID, recipientType, notificationType, subject, message string) (*entity.Notification, error) {
	now := s.clk.Now()
	n := &entity.Notification{
		ID:               uuid.New().String()[:32],
		RecipientID:      recipientID,
		RecipientType:    recipientType,
		NotificationType: notificationType,
		Subject:          subject,
		Message:          message,
		Status:           entity.NotificationStatusSent,
		SentAt:           &now,
		CreatedAt:        now,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.PublishNotification(n.RecipientID, n.ID, n.NotificationType, n.Subject)
	}

	return n, nil
}

// List 查询当前用户的通知列表
func (s *NotificationService) List(ctx context.Context, actor entity.Actor, page, pageSize int) ([]entity.Notification, int64, error) {
	return s.repo.FindByRecipient(ctx, actor.ID, actor.Role, page, pageSize)
}

// MarkRead 标记已读。只有收件人本人可以操作。
func (s *NotificationService) MarkRead(ctx context.Context, id string, actor entity.Actor) (*entity.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("通知不存在")
		}
		return nil, err
	}

	if n.RecipientID != actor.ID {
		return nil, errs.Permission("只有收件人本人可以标记已读")
	}

	now := s.clk.Now()
	n.Status = entity.NotificationStatusRead
	n.ReadAt = &now

	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
