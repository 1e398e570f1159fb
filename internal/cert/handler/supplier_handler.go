package handler

import (
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/gin-gonic/gin"
)

// SupplierHandler 供应商档案处理器
type SupplierHandler struct {
	svc *service.SupplierService
}

func NewSupplierHandler(svc *service.SupplierService) *SupplierHandler {
	return &SupplierHandler{svc: svc}
}

// List 供应商列表（仅管理员）
// GET /api/v1/suppliers
func (h *SupplierHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	items, total, err := h.svc.List(c.Request.Context(), GetActor(c), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, NewListResponse(items, page, pageSize, total))
}

// Get 供应商详情
// GET /api/v1/suppliers/:id
func (h *SupplierHandler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, detail)
}

// Update 更新供应商档案
// PUT /api/v1/suppliers/:id
func (h *SupplierHandler) Update(c *gin.Context) {
	var req service.UpdateSupplierReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	supplier, err := h.svc.Update(c.Request.Context(), c.Param("id"), req, GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, supplier)
}
