package handler

import (
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/gin-gonic/gin"
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List 当前用户的通知列表
// GET /api/v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	items, total, err := h.svc.List(c.Request.Context(), GetActor(c), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, NewListResponse(items, page, pageSize, total))
}

// MarkRead 标记通知已读
// POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	n, err := h.svc.MarkRead(c.Request.Context(), c.Param("id"), GetActor(c))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, n)
}
