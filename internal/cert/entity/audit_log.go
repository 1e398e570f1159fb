package entity

import "time"

// AuditLog 系统操作审计日志（只增不改，与业务工作流解耦）
type AuditLog struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	UserID   string `json:"user_id" gorm:"size:255;index"`
	UserType string `json:"user_type" gorm:"size:20"`

	Action     string `json:"action" gorm:"size:100;not null"`
	EntityType string `json:"entity_type" gorm:"size:50;index:idx_audit_entity"`
	EntityID   string `json:"entity_id" gorm:"size:32;index:idx_audit_entity"`

	IPAddress      string `json:"ip_address" gorm:"size:50"`
	UserAgent      string `json:"user_agent" gorm:"type:text"`
	RequestData    JSONB  `json:"request_data" gorm:"type:jsonb"`
	ResponseStatus int    `json:"response_status"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
