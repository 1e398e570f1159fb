package entity

import "time"

// ProductFile 产品附件（检测资料）
type ProductFile struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	ProductID string `json:"product_id" gorm:"size:32;not null;index"`

	FileName string `json:"file_name" gorm:"size:255;not null"`
	FileType string `json:"file_type" gorm:"size:20"` // PDF/CSV/XML/XLSX/JSON
	FileSize int64  `json:"file_size"`

	StorageBucket string `json:"storage_bucket" gorm:"size:255"`
	StorageKey    string `json:"storage_key" gorm:"size:1024"`
	FileHash      string `json:"file_hash" gorm:"size:64"` // sha256

	UploadStatus string     `json:"upload_status" gorm:"size:20;default:pending"` // pending/uploaded/validated/failed
	UploadedAt   time.Time  `json:"uploaded_at" gorm:"autoCreateTime"`
	ValidatedAt  *time.Time `json:"validated_at"`

	Metadata JSONB `json:"metadata" gorm:"type:jsonb"`
}

func (ProductFile) TableName() string {
	return "product_files"
}

// 附件上传状态
const (
	FileStatusPending   = "pending"
	FileStatusUploaded  = "uploaded"
	FileStatusValidated = "validated"
	FileStatusFailed    = "failed"
)

// AllowedFileExtensions 附件扩展名白名单
var AllowedFileExtensions = map[string]bool{
	"pdf":  true,
	"csv":  true,
	"xml":  true,
	"xlsx": true,
	"json": true,
}

// MaxFileSize 附件大小上限（100MB）
const MaxFileSize = 100 * 1024 * 1024
