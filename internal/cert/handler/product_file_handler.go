package handler

import (
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/gin-gonic/gin"
)

// ProductFileHandler 产品附件处理器
type ProductFileHandler struct {
	svc *service.ProductFileService
}

func NewProductFileHandler(svc *service.ProductFileService) *ProductFileHandler {
	return &ProductFileHandler{svc: svc}
}

// Upload 上传检测资料附件
// POST /api/v1/products/:id/files  (multipart, field "file")
func (h *ProductFileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件")
		return
	}

	file, err := h.svc.Upload(c.Request.Context(), c.Param("id"), header, GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Created(c, file)
}

// List 产品附件列表
// GET /api/v1/products/:id/files
func (h *ProductFileHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, gin.H{"items": items, "total": len(items)})
}

// Download 获取附件下载凭据
// GET /api/v1/files/:id/download
func (h *ProductFileHandler) Download(c *gin.Context) {
	payload, err := h.svc.Download(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, payload)
}
