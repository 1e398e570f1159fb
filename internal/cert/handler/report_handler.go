package handler

import (
	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/gin-gonic/gin"
)

// ReportHandler 检测报告处理器
type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Create 创建报告（异步生成，立即返回）
// POST /api/v1/reports
func (h *ReportHandler) Create(c *gin.Context) {
	var req service.CreateReportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	report, err := h.svc.Create(c.Request.Context(), req, GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Created(c, gin.H{
		"report_id": report.ID,
		"status":    report.Status,
		"message":   "Report generation started",
	})
}

// List 报告列表
// GET /api/v1/reports?product_id=&status=
func (h *ReportHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"product_id": c.Query("product_id"),
		"status":     c.Query("status"),
	}

	items, total, err := h.svc.List(c.Request.Context(), GetActor(c), page, pageSize, filters)
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, NewListResponse(items, page, pageSize, total))
}

// Status 查询报告生成状态
// GET /api/v1/reports/:id/status
func (h *ReportHandler) Status(c *gin.Context) {
	report, err := h.svc.Get(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	payload := gin.H{
		"report_id":     report.ID,
		"status":        report.Status,
		"report_type":   report.ReportType,
		"report_format": report.ReportFormat,
	}
	if report.Status == entity.ReportStatusCompleted {
		payload["download_url"] = report.ReportURL
		payload["generated_at"] = report.GeneratedAt
		payload["expires_at"] = report.ExpiresAt
	}

	Success(c, payload)
}

// Download 获取报告下载凭据
// GET /api/v1/reports/:id/download
func (h *ReportHandler) Download(c *gin.Context) {
	desc, err := h.svc.Download(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, desc)
}

// ProductReports 产品的全部报告
// GET /api/v1/products/:id/reports
func (h *ReportHandler) ProductReports(c *gin.Context) {
	items, err := h.svc.ProductReports(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, gin.H{"items": items, "total": len(items)})
}
