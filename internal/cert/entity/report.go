package entity

import "time"

// Report 检测报告（异步生成）
type Report struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	ProductID string `json:"product_id" gorm:"size:32;not null;index:idx_reports_product_type"`

	ReportType   string `json:"report_type" gorm:"size:20;index:idx_reports_product_type"` // composite/interim/final/summary
	ReportFormat string `json:"report_format" gorm:"size:10;default:JSON"`                 // JSON/XML/XLSX

	Status      string     `json:"status" gorm:"size:20;default:pending;index"` // pending/generating/completed/failed
	ReportURL   string     `json:"report_url" gorm:"size:1024"`
	GeneratedAt *time.Time `json:"generated_at" gorm:"index"`
	ExpiresAt   *time.Time `json:"expires_at"`

	StorageBucket string `json:"storage_bucket" gorm:"size:255"`
	StorageKey    string `json:"storage_key" gorm:"size:1024"`
	FileSize      *int64 `json:"file_size"`
	Checksum      string `json:"checksum" gorm:"size:64"` // sha256

	Metadata  JSONB     `json:"metadata" gorm:"type:jsonb"`
	CreatedAt time.Time `json:"created_at"`
}

func (Report) TableName() string {
	return "reports"
}

// 报告状态
const (
	ReportStatusPending    = "pending"
	ReportStatusGenerating = "generating"
	ReportStatusCompleted  = "completed"
	ReportStatusFailed     = "failed"
)

// 报告类型
var ReportTypes = map[string]bool{
	"composite": true,
	"interim":   true,
	"final":     true,
	"summary":   true,
}

// 报告格式
var ReportFormats = map[string]bool{
	"JSON": true,
	"XML":  true,
	"XLSX": true,
}

// DownloadDescriptor 报告下载凭据（到期时间仅为提示性元数据）
type DownloadDescriptor struct {
	ReportID    string `json:"report_id"`
	DownloadURL string `json:"download_url"`
	ExpiresIn   string `json:"expires_in"`
	Message     string `json:"message"`
}
