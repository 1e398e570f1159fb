package entity

import "time"

// Product 送检产品
type Product struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	SupplierID string `json:"supplier_id" gorm:"size:32;not null;index:idx_products_supplier_status"`

	Name        string  `json:"name" gorm:"size:255;not null"`
	Description string  `json:"description" gorm:"type:text"`
	Category    string  `json:"category" gorm:"size:100;index"`
	SKU         *string `json:"sku" gorm:"size:100;uniqueIndex"`

	SubmissionStatus string     `json:"submission_status" gorm:"size:20;default:draft;index:idx_products_supplier_status"` // draft/submitted/in_review/testing/completed/rejected
	SubmissionDate   *time.Time `json:"submission_date" gorm:"index"`
	ReviewDate       *time.Time `json:"review_date"`
	CompletionDate   *time.Time `json:"completion_date"`

	Metadata  JSONB     `json:"metadata" gorm:"type:jsonb"`
	Version   int       `json:"version" gorm:"default:1"` // 乐观锁版本号
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// 产品送检状态
const (
	ProductStatusDraft     = "draft"
	ProductStatusSubmitted = "submitted"
	ProductStatusInReview  = "in_review"
	ProductStatusTesting   = "testing"
	ProductStatusCompleted = "completed"
	ProductStatusRejected  = "rejected"
)

// ValidProductTransitions 合法的产品状态流转
var ValidProductTransitions = map[string][]string{
	ProductStatusDraft:     {ProductStatusSubmitted},
	ProductStatusSubmitted: {ProductStatusInReview},
	ProductStatusInReview:  {ProductStatusTesting, ProductStatusRejected},
	ProductStatusTesting:   {ProductStatusCompleted, ProductStatusRejected},
}

// CanProductTransition 判断产品状态流转是否合法
func CanProductTransition(from, to string) bool {
	for _, s := range ValidProductTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
