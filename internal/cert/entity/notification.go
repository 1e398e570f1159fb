package entity

import "time"

// Notification 站内通知记录
type Notification struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RecipientID   string `json:"recipient_id" gorm:"size:32;not null;index:idx_notifications_recipient"`
	RecipientType string `json:"recipient_type" gorm:"size:20;index:idx_notifications_recipient"` // supplier/tester/admin

	NotificationType string `json:"notification_type" gorm:"size:50;not null"` // product_submitted/test_completed/...
	Subject          string `json:"subject" gorm:"size:255;not null"`
	Message          string `json:"message" gorm:"type:text"`

	Status string     `json:"status" gorm:"size:20;default:pending;index"` // pending/sent/failed/read
	SentAt *time.Time `json:"sent_at"`
	ReadAt *time.Time `json:"read_at"`

	Metadata  JSONB     `json:"metadata" gorm:"type:jsonb"`
	CreatedAt time.Time `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// 通知状态
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusRead    = "read"
)

// 通知类型
const (
	NotifyProductSubmitted = "product_submitted"
	NotifyTestCompleted    = "test_completed"
)
