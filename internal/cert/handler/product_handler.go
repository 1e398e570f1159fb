package handler

import (
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/gin-gonic/gin"
)

// ProductHandler 产品处理器
type ProductHandler struct {
	svc *service.ProductService
}

func NewProductHandler(svc *service.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// Create 创建产品
// POST /api/v1/products
func (h *ProductHandler) Create(c *gin.Context) {
	var req service.CreateProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	product, err := h.svc.Create(c.Request.Context(), req, GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Created(c, product)
}

// List 产品列表
// GET /api/v1/products?status=&category=&page=&page_size=
func (h *ProductHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":      c.Query("status"),
		"category":    c.Query("category"),
		"supplier_id": c.Query("supplier_id"),
	}

	items, total, err := h.svc.List(c.Request.Context(), GetActor(c), page, pageSize, filters)
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, NewListResponse(items, page, pageSize, total))
}

// Get 产品详情
// GET /api/v1/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.svc.Get(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, product)
}

// Update 编辑产品（仅草稿）
// PUT /api/v1/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	var req service.UpdateProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	product, err := h.svc.Update(c.Request.Context(), c.Param("id"), req, GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, product)
}

// Submit 提交送检
// POST /api/v1/products/:id/submit
func (h *ProductHandler) Submit(c *gin.Context) {
	product, err := h.svc.Submit(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, gin.H{
		"product": product,
		"message": "Product submitted for testing and certification",
	})
}

// UpdateStatus 管理员推进送检状态
// PUT /api/v1/products/:id/status
func (h *ProductHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	product, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req, GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, product)
}
