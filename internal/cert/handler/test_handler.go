package handler

import (
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/gin-gonic/gin"
)

// TestHandler 检测任务处理器
type TestHandler struct {
	svc *service.TestService
}

func NewTestHandler(svc *service.TestService) *TestHandler {
	return &TestHandler{svc: svc}
}

// Create 创建检测任务
// POST /api/v1/tests
func (h *TestHandler) Create(c *gin.Context) {
	var req service.CreateTestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	test, err := h.svc.Create(c.Request.Context(), req, GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Created(c, test)
}

// List 检测任务列表
// GET /api/v1/tests?product_id=&status=&type=
func (h *TestHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"product_id": c.Query("product_id"),
		"status":     c.Query("status"),
		"type":       c.Query("type"),
	}

	items, total, err := h.svc.List(c.Request.Context(), GetActor(c), page, pageSize, filters)
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, NewListResponse(items, page, pageSize, total))
}

// Get 检测任务详情
// GET /api/v1/tests/:id
func (h *TestHandler) Get(c *gin.Context) {
	test, err := h.svc.Get(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, test)
}

// Start 开始检测
// POST /api/v1/tests/:id/start
func (h *TestHandler) Start(c *gin.Context) {
	test, err := h.svc.Start(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, test)
}

// Complete 完成检测
// POST /api/v1/tests/:id/complete
func (h *TestHandler) Complete(c *gin.Context) {
	var req service.CompleteTestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	test, err := h.svc.Complete(c.Request.Context(), c.Param("id"), req, GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, test)
}

// Update 编辑检测任务
// PUT /api/v1/tests/:id
func (h *TestHandler) Update(c *gin.Context) {
	var req service.UpdateTestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	test, err := h.svc.Update(c.Request.Context(), c.Param("id"), req, GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, test)
}

// History 检测状态变更历史
// GET /api/v1/tests/:id/history
func (h *TestHandler) History(c *gin.Context) {
	items, err := h.svc.History(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, gin.H{"items": items, "total": len(items)})
}

// ProductTests 产品的检测任务及汇总
// GET /api/v1/products/:id/tests
func (h *TestHandler) ProductTests(c *gin.Context) {
	tests, summary, err := h.svc.ProductTests(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, gin.H{"items": tests, "summary": summary})
}
