package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Supplier     *SupplierRepository
	Product      *ProductRepository
	ProductFile  *ProductFileRepository
	Test         *TestRepository
	TestHistory  *TestHistoryRepository
	Report       *ReportRepository
	Notification *NotificationRepository
	AuditLog     *AuditLogRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Supplier:     NewSupplierRepository(db),
		Product:      NewProductRepository(db),
		ProductFile:  NewProductFileRepository(db),
		Test:         NewTestRepository(db),
		TestHistory:  NewTestHistoryRepository(db),
		Report:       NewReportRepository(db),
		Notification: NewNotificationRepository(db),
		AuditLog:     NewAuditLogRepository(db),
	}
}
