package entity

import "time"

// TestHistory 检测状态变更历史（只增不改）
type TestHistory struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	TestID string `json:"test_id" gorm:"size:32;not null;index"`

	ChangedBy  string `json:"changed_by" gorm:"size:255;not null"`
	ChangeType string `json:"change_type" gorm:"size:50;not null"` // test_created/test_started/test_completed/status_update

	OldStatus *string `json:"old_status" gorm:"size:20"` // 首条记录为NULL
	NewStatus string  `json:"new_status" gorm:"size:20"`

	ChangeDescription string    `json:"change_description" gorm:"type:text"`
	ChangedAt         time.Time `json:"changed_at" gorm:"autoCreateTime;index"`
	Metadata          JSONB     `json:"metadata" gorm:"type:jsonb"`
}

func (TestHistory) TableName() string {
	return "test_history"
}

// 变更类型
const (
	ChangeTypeTestCreated   = "test_created"
	ChangeTypeTestStarted   = "test_started"
	ChangeTypeTestCompleted = "test_completed"
	ChangeTypeStatusUpdate  = "status_update"
)
