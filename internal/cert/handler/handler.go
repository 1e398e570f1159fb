package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Auth         *AuthHandler
	Supplier     *SupplierHandler
	Product      *ProductHandler
	ProductFile  *ProductFileHandler
	Test         *TestHandler
	Report       *ReportHandler
	Notification *NotificationHandler
	AuditLog     *AuditLogHandler
	SSE          *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(
	authSvc *service.AuthService,
	supplierSvc *service.SupplierService,
	productSvc *service.ProductService,
	fileSvc *service.ProductFileService,
	testSvc *service.TestService,
	reportSvc *service.ReportService,
	notificationSvc *service.NotificationService,
	auditLogRepo *repository.AuditLogRepository,
	sseHandler *SSEHandler,
) *Handlers {
	return &Handlers{
		Auth:         NewAuthHandler(authSvc),
		Supplier:     NewSupplierHandler(supplierSvc),
		Product:      NewProductHandler(productSvc),
		ProductFile:  NewProductFileHandler(fileSvc),
		Test:         NewTestHandler(testSvc),
		Report:       NewReportHandler(reportSvc),
		Notification: NewNotificationHandler(notificationSvc),
		AuditLog:     NewAuditLogHandler(auditLogRepo),
		SSE:          sseHandler,
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewListResponse(items interface{}, page, pageSize int, total int64) ListResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Fail 把业务错误映射为统一envelope。错误码的高三位即HTTP状态码。
func Fail(c *gin.Context, err error) {
	if err == repository.ErrNotFound {
		Error(c, 40400, "资源不存在")
		return
	}
	Error(c, errs.Code(err), err.Error())
}

// GetActor 从gin上下文取当前操作人（JWTAuth中间件注入）
func GetActor(c *gin.Context) entity.Actor {
	actor := entity.Actor{}
	if v, ok := c.Get("user_id"); ok {
		actor.ID, _ = v.(string)
	}
	if v, ok := c.Get("username"); ok {
		actor.Username, _ = v.(string)
	}
	if v, ok := c.Get("role"); ok {
		actor.Role, _ = v.(string)
	}
	return actor
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
