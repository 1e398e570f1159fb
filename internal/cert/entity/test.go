package entity

import "time"

// Test 检测任务（一个产品可有多个检测项目）
type Test struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	ProductID string `json:"product_id" gorm:"size:32;not null;index:idx_tests_product_status"`

	TestType string `json:"test_type" gorm:"size:50;index"` // Safety/Compliance/Quality/Performance/Environmental
	TestName string `json:"test_name" gorm:"size:255;not null"`

	Status   string `json:"status" gorm:"size:20;default:pending;index:idx_tests_product_status"` // pending/scheduled/in_progress/completed/failed/cancelled
	Priority string `json:"priority" gorm:"size:20;default:medium"`                               // low/medium/high/urgent

	AssignedTo    string     `json:"assigned_to" gorm:"size:255;index"`
	ScheduledDate *time.Time `json:"scheduled_date" gorm:"index"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`

	ResultStatus  *string `json:"result_status" gorm:"size:20"` // pass/fail/conditional/pending
	ResultSummary string  `json:"result_summary" gorm:"type:text"`
	ResultFileURL string  `json:"result_file_url" gorm:"size:1024"`
	ResultData    JSONB   `json:"result_data" gorm:"type:jsonb"`

	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	History []TestHistory `json:"history,omitempty" gorm:"foreignKey:TestID"`
}

func (Test) TableName() string {
	return "tests"
}

// 检测状态
const (
	TestStatusPending    = "pending"
	TestStatusScheduled  = "scheduled"
	TestStatusInProgress = "in_progress"
	TestStatusCompleted  = "completed"
	TestStatusFailed     = "failed"
	TestStatusCancelled  = "cancelled"
)

// 检测结果
const (
	TestResultPass        = "pass"
	TestResultFail        = "fail"
	TestResultConditional = "conditional"
	TestResultPending     = "pending"
)

// 检测类型
var TestTypes = []string{"Safety", "Compliance", "Quality", "Performance", "Environmental"}

// 优先级
const (
	TestPriorityLow    = "low"
	TestPriorityMedium = "medium"
	TestPriorityHigh   = "high"
	TestPriorityUrgent = "urgent"
)

// IsValidTestType 判断检测类型是否合法
func IsValidTestType(t string) bool {
	for _, v := range TestTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsValidTestStatus 判断检测状态是否合法
func IsValidTestStatus(s string) bool {
	switch s {
	case TestStatusPending, TestStatusScheduled, TestStatusInProgress,
		TestStatusCompleted, TestStatusFailed, TestStatusCancelled:
		return true
	}
	return false
}

// IsTerminalTestStatus completed/failed/cancelled为终态，不允许再完成
func IsTerminalTestStatus(s string) bool {
	return s == TestStatusCompleted || s == TestStatusFailed || s == TestStatusCancelled
}
