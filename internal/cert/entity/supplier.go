package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB JSONB类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// Supplier 供应商账号（送检方）
type Supplier struct {
	ID           string `json:"id" gorm:"primaryKey;size:32"`
	Username     string `json:"username" gorm:"size:100;uniqueIndex;not null"`
	Email        string `json:"email" gorm:"size:200;uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"size:100;not null"`

	FirstName          string `json:"first_name" gorm:"size:100"`
	LastName           string `json:"last_name" gorm:"size:100"`
	Phone              string `json:"phone" gorm:"size:50"`
	Address            string `json:"address" gorm:"type:text"`
	RegistrationNumber string `json:"registration_number" gorm:"size:100"`

	Role   string `json:"role" gorm:"size:20;default:supplier"`  // supplier/tester/admin
	Status string `json:"status" gorm:"size:20;default:active"` // active/suspended/inactive

	Metadata  JSONB     `json:"metadata" gorm:"type:jsonb"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Supplier) TableName() string {
	return "suppliers"
}

// 账号角色
const (
	RoleSupplier = "supplier"
	RoleTester   = "tester"
	RoleAdmin    = "admin"
)

// 账号状态
const (
	SupplierStatusActive    = "active"
	SupplierStatusSuspended = "suspended"
	SupplierStatusInactive  = "inactive"
)

// Actor 当前操作人（从JWT claims解析）
type Actor struct {
	ID       string
	Username string
	Role     string
}

// IsStaff 是否为内部人员（测试员/管理员）
func (a Actor) IsStaff() bool {
	return a.Role == RoleTester || a.Role == RoleAdmin
}

// IsAdmin 是否为管理员
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
