package service

import (
	"context"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/facebookgo/clock"
)

// SupplierService 供应商档案服务
type SupplierService struct {
	supplierRepo *repository.SupplierRepository
	clk          clock.Clock
}

func NewSupplierService(supplierRepo *repository.SupplierRepository, clk clock.Clock) *SupplierService {
	return &SupplierService{supplierRepo: supplierRepo, clk: clk}
}

// List 供应商列表（仅管理员）
func (s *SupplierService) List(ctx context.Context, actor entity.Actor, page, pageSize int) ([]entity.Supplier, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, errs.Permission("只有管理员可以查看供应商列表")
	}
	return s.supplierRepo.FindAll(ctx, page, pageSize)
}

// SupplierDetail 供应商详情（带产品数）
type SupplierDetail struct {
	entity.Supplier
	ProductCount int64 `json:"product_count"`
}

// Get 查询供应商详情。供应商只能查自己。
func (s *SupplierService) Get(ctx context.Context, id string, actor entity.Actor) (*SupplierDetail, error) {
	if !actor.IsStaff() && actor.ID != id {
		return nil, errs.Permission("无权访问该供应商")
	}

	supplier, err := s.supplierRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("供应商不存在")
		}
		return nil, err
	}

	count, err := s.supplierRepo.CountProducts(ctx, id)
	if err != nil {
		return nil, err
	}

	return &SupplierDetail{Supplier: *supplier, ProductCount: count}, nil
}

// UpdateSupplierReq 更新供应商档案请求
type UpdateSupplierReq struct {
	FirstName          *string                `json:"first_name"`
	LastName           *string                `json:"last_name"`
	Phone              *string                `json:"phone"`
	Address            *string                `json:"address"`
	RegistrationNumber *string                `json:"registration_number"`
	Status             *string                `json:"status"` // 仅管理员
	Metadata           map[string]interface{} `json:"metadata"`
}

// Update 更新供应商档案。账号状态只有管理员能改。
func (s *SupplierService) Update(ctx context.Context, id string, req UpdateSupplierReq, actor entity.Actor) (*entity.Supplier, error) {
	if !actor.IsAdmin() && actor.ID != id {
		return nil, errs.Permission("无权修改该供应商")
	}

	supplier, err := s.supplierRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("供应商不存在")
		}
		return nil, err
	}

	if req.FirstName != nil {
		supplier.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		supplier.LastName = *req.LastName
	}
	if req.Phone != nil {
		supplier.Phone = *req.Phone
	}
	if req.Address != nil {
		supplier.Address = *req.Address
	}
	if req.RegistrationNumber != nil {
		supplier.RegistrationNumber = *req.RegistrationNumber
	}
	if req.Metadata != nil {
		supplier.Metadata = req.Metadata
	}
	if req.Status != nil {
		if !actor.IsAdmin() {
			return nil, errs.Permission("只有管理员可以变更账号状态")
		}
		switch *req.Status {
		case entity.SupplierStatusActive, entity.SupplierStatusSuspended, entity.SupplierStatusInactive:
			supplier.Status = *req.Status
		default:
			return nil, errs.Validation("不支持的账号状态: %s", *req.Status)
		}
	}
	supplier.UpdatedAt = s.clk.Now()

	if err := s.supplierRepo.Update(ctx, supplier); err != nil {
		return nil, err
	}

	return supplier, nil
}
