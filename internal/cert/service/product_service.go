package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductService 产品送检服务
type ProductService struct {
	productRepo  *repository.ProductRepository
	supplierRepo *repository.SupplierRepository
	notifier     *NotificationService
	clk          clock.Clock
}

func NewProductService(
	productRepo *repository.ProductRepository,
	supplierRepo *repository.SupplierRepository,
	notifier *NotificationService,
	clk clock.Clock,
) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		supplierRepo: supplierRepo,
		notifier:     notifier,
		clk:          clk,
	}
}

// CreateProductReq 创建产品请求
type CreateProductReq struct {
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	SKU         *string                `json:"sku"`
	SupplierID  string                 `json:"supplier_id"` // 仅管理员可代供应商创建
	Metadata    map[string]interface{} `json:"metadata"`
}

// Create 创建产品，初始状态draft
func (s *ProductService) Create(ctx context.Context, req CreateProductReq, actor entity.Actor) (*entity.Product, error) {
	supplierID := actor.ID
	if req.SupplierID != "" && req.SupplierID != actor.ID {
		if !actor.IsAdmin() {
			return nil, errs.Permission("只有管理员可以代供应商创建产品")
		}
		if _, err := s.supplierRepo.FindByID(ctx, req.SupplierID); err != nil {
			if err == repository.ErrNotFound {
				return nil, errs.Validation("供应商 %s 不存在", req.SupplierID)
			}
			return nil, err
		}
		supplierID = req.SupplierID
	}

	now := s.clk.Now()
	product := &entity.Product{
		ID:               uuid.New().String()[:32],
		SupplierID:       supplierID,
		Name:             req.Name,
		Description:      req.Description,
		Category:         req.Category,
		SKU:              req.SKU,
		SubmissionStatus: entity.ProductStatusDraft,
		Metadata:         req.Metadata,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// List 查询产品列表。供应商只能看到自己的产品。
func (s *ProductService) List(ctx context.Context, actor entity.Actor, page, pageSize int, filters map[string]string) ([]entity.Product, int64, error) {
	if !actor.IsStaff() {
		filters["supplier_id"] = actor.ID
	}
	return s.productRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 查询产品详情，带归属校验
func (s *ProductService) Get(ctx context.Context, id string, actor entity.Actor) (*entity.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("产品不存在")
		}
		return nil, err
	}

	if !actor.IsStaff() && product.SupplierID != actor.ID {
		return nil, errs.Permission("无权访问该产品")
	}

	return product, nil
}

// UpdateProductReq 编辑产品请求
type UpdateProductReq struct {
	Name        *string                `json:"name"`
	Description *string                `json:"description"`
	Category    *string                `json:"category"`
	SKU         *string                `json:"sku"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Update 编辑产品基本信息。只有草稿状态可编辑。
func (s *ProductService) Update(ctx context.Context, id string, req UpdateProductReq, actor entity.Actor) (*entity.Product, error) {
	product, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if product.SubmissionStatus != entity.ProductStatusDraft {
		return nil, errs.InvalidState("当前状态 %s 不允许编辑，只有草稿可编辑", product.SubmissionStatus)
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.SKU != nil {
		product.SKU = req.SKU
	}
	if req.Metadata != nil {
		product.Metadata = req.Metadata
	}
	product.UpdatedAt = s.clk.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// Submit 提交产品送检：draft → submitted。
// 条件更新保证并发重复提交只有一方成功，失败方按落库状态报错。
func (s *ProductService) Submit(ctx context.Context, id string, actor entity.Actor) (*entity.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("产品不存在")
		}
		return nil, err
	}

	if !actor.IsAdmin() && product.SupplierID != actor.ID {
		return nil, errs.Permission("只有产品归属供应商或管理员可以提交送检")
	}

	now := s.clk.Now()
	ok, err := s.productRepo.TransitionStatus(ctx, id, entity.ProductStatusDraft, map[string]interface{}{
		"submission_status": entity.ProductStatusSubmitted,
		"submission_date":   now,
		"updated_at":        now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, ferr := s.productRepo.FindByID(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, errs.InvalidState("当前状态 %s 不允许提交，只有草稿可提交", current.SubmissionStatus)
	}

	product, err = s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 状态已落库，通知写失败必须上报而不是吞掉
	_, err = s.notifier.Notify(ctx,
		product.SupplierID,
		entity.RoleSupplier,
		entity.NotifyProductSubmitted,
		fmt.Sprintf("Product submitted: %s", product.Name),
		fmt.Sprintf("Your product '%s' has been submitted for testing and certification.", product.Name),
	)
	if err != nil {
		return nil, errs.Storage("产品已提交，但通知写入失败", err)
	}

	return product, nil
}

// UpdateStatusReq 更新产品送检状态请求
type UpdateStatusReq struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 管理员推进送检状态（submitted→in_review→testing→completed/rejected）
func (s *ProductService) UpdateStatus(ctx context.Context, id string, req UpdateStatusReq, actor entity.Actor) (*entity.Product, error) {
	if !actor.IsAdmin() {
		return nil, errs.Permission("只有管理员可以变更送检状态")
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("产品不存在")
		}
		return nil, err
	}

	fromStatus := product.SubmissionStatus
	if !entity.CanProductTransition(fromStatus, req.Status) {
		return nil, errs.InvalidState("不允许从 %s 流转到 %s", fromStatus, req.Status)
	}

	now := s.clk.Now()
	updates := map[string]interface{}{
		"submission_status": req.Status,
		"version":           gorm.Expr("version + 1"),
		"updated_at":        now,
	}
	switch req.Status {
	case entity.ProductStatusInReview:
		updates["review_date"] = now
	case entity.ProductStatusCompleted, entity.ProductStatusRejected:
		updates["completion_date"] = now
	}

	ok, err := s.productRepo.TransitionStatus(ctx, id, fromStatus, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, ferr := s.productRepo.FindByID(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, errs.InvalidState("状态已变更为 %s，请刷新后重试", current.SubmissionStatus)
	}

	return s.productRepo.FindByID(ctx, id)
}
