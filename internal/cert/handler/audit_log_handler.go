package handler

import (
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/gin-gonic/gin"
)

// AuditLogHandler 审计日志处理器。路由层限定admin角色。
type AuditLogHandler struct {
	repo *repository.AuditLogRepository
}

func NewAuditLogHandler(repo *repository.AuditLogRepository) *AuditLogHandler {
	return &AuditLogHandler{repo: repo}
}

// List 审计日志列表
// GET /api/v1/audit-logs?user_id=&entity_type=&entity_id=
func (h *AuditLogHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"user_id":     c.Query("user_id"),
		"entity_type": c.Query("entity_type"),
		"entity_id":   c.Query("entity_id"),
	}

	items, total, err := h.repo.FindAll(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, NewListResponse(items, page, pageSize, total))
}
