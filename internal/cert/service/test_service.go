package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/facebookgo/clock"
	"github.com/google/uuid"
)

// TestService 检测任务服务。所有状态变更走条件更新，
// 每次变更恰好追加一条历史记录。
type TestService struct {
	testRepo    *repository.TestRepository
	historyRepo *repository.TestHistoryRepository
	productRepo *repository.ProductRepository
	notifier    *NotificationService
	clk         clock.Clock
}

func NewTestService(
	testRepo *repository.TestRepository,
	historyRepo *repository.TestHistoryRepository,
	productRepo *repository.ProductRepository,
	notifier *NotificationService,
	clk clock.Clock,
) *TestService {
	return &TestService{
		testRepo:    testRepo,
		historyRepo: historyRepo,
		productRepo: productRepo,
		notifier:    notifier,
		clk:         clk,
	}
}

// CreateTestReq 创建检测任务请求
type CreateTestReq struct {
	ProductID     string                 `json:"product_id" binding:"required"`
	TestType      string                 `json:"test_type" binding:"required"`
	TestName      string                 `json:"test_name" binding:"required"`
	Status        string                 `json:"status"`
	Priority      string                 `json:"priority"`
	AssignedTo    string                 `json:"assigned_to"`
	ScheduledDate *time.Time             `json:"scheduled_date"`
	Notes         string                 `json:"notes"`
	ResultData    map[string]interface{} `json:"result_data"`
}

// Create 创建检测任务并写入首条历史（old_status为NULL）
func (s *TestService) Create(ctx context.Context, req CreateTestReq, actor entity.Actor) (*entity.Test, error) {
	if !actor.IsStaff() {
		return nil, errs.Permission("只有检测人员或管理员可以创建检测任务")
	}

	if !entity.IsValidTestType(req.TestType) {
		return nil, errs.Validation("不支持的检测类型: %s", req.TestType)
	}

	initialStatus := req.Status
	if initialStatus == "" {
		initialStatus = entity.TestStatusPending
	}
	if !entity.IsValidTestStatus(initialStatus) {
		return nil, errs.Validation("不支持的检测状态: %s", initialStatus)
	}

	priority := req.Priority
	if priority == "" {
		priority = entity.TestPriorityMedium
	}

	if _, err := s.productRepo.FindByID(ctx, req.ProductID); err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.Validation("产品 %s 不存在", req.ProductID)
		}
		return nil, err
	}

	now := s.clk.Now()
	test := &entity.Test{
		ID:            uuid.New().String()[:32],
		ProductID:     req.ProductID,
		TestType:      req.TestType,
		TestName:      req.TestName,
		Status:        initialStatus,
		Priority:      priority,
		AssignedTo:    req.AssignedTo,
		ScheduledDate: req.ScheduledDate,
		Notes:         req.Notes,
		ResultData:    req.ResultData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, err
	}

	// 首条历史记录，old_status为NULL
	record := &entity.TestHistory{
		TestID:            test.ID,
		ChangedBy:         actor.Username,
		ChangeType:        entity.ChangeTypeTestCreated,
		OldStatus:         nil,
		NewStatus:         initialStatus,
		ChangeDescription: fmt.Sprintf("Test created with status %s", initialStatus),
		ChangedAt:         now,
	}
	if err := s.historyRepo.Append(ctx, record); err != nil {
		return nil, errs.Storage("检测任务已创建，但历史记录写入失败", err)
	}

	return test, nil
}

// Get 查询检测任务详情
func (s *TestService) Get(ctx context.Context, id string, actor entity.Actor) (*entity.Test, error) {
	test, err := s.testRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("检测任务不存在")
		}
		return nil, err
	}

	if !actor.IsStaff() {
		product, err := s.productRepo.FindByID(ctx, test.ProductID)
		if err != nil {
			return nil, err
		}
		if product.SupplierID != actor.ID {
			return nil, errs.Permission("无权访问该检测任务")
		}
	}

	return test, nil
}

// List 查询检测任务列表。供应商只能按自己的产品查询。
func (s *TestService) List(ctx context.Context, actor entity.Actor, page, pageSize int, filters map[string]string) ([]entity.Test, int64, error) {
	if !actor.IsStaff() {
		productID := filters["product_id"]
		if productID == "" {
			return nil, 0, errs.Permission("供应商查询检测任务需指定product_id")
		}
		product, err := s.productRepo.FindByID(ctx, productID)
		if err != nil {
			if err == repository.ErrNotFound {
				return nil, 0, errs.NotFound("产品不存在")
			}
			return nil, 0, err
		}
		if product.SupplierID != actor.ID {
			return nil, 0, errs.Permission("无权访问该产品的检测任务")
		}
	}
	return s.testRepo.FindAll(ctx, page, pageSize, filters)
}

// Start 开始检测：scheduled → in_progress。
// 并发竞争的失败方按落库状态报InvalidState。
func (s *TestService) Start(ctx context.Context, id string, actor entity.Actor) (*entity.Test, error) {
	if !actor.IsStaff() {
		return nil, errs.Permission("只有检测人员或管理员可以开始检测")
	}

	if _, err := s.testRepo.FindByID(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("检测任务不存在")
		}
		return nil, err
	}

	now := s.clk.Now()
	ok, err := s.testRepo.TransitionStatus(ctx, id, entity.TestStatusScheduled, map[string]interface{}{
		"status":     entity.TestStatusInProgress,
		"started_at": now,
		"updated_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, ferr := s.testRepo.FindByID(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, errs.InvalidState("当前状态 %s 不允许开始，只有已排期的检测可以开始", current.Status)
	}

	oldStatus := entity.TestStatusScheduled
	record := &entity.TestHistory{
		TestID:            id,
		ChangedBy:         actor.Username,
		ChangeType:        entity.ChangeTypeTestStarted,
		OldStatus:         &oldStatus,
		NewStatus:         entity.TestStatusInProgress,
		ChangeDescription: "Test execution started",
		ChangedAt:         now,
	}
	if err := s.historyRepo.Append(ctx, record); err != nil {
		return nil, errs.Storage("检测已开始，但历史记录写入失败", err)
	}

	return s.testRepo.FindByID(ctx, id)
}

// CompleteTestReq 完成检测请求
type CompleteTestReq struct {
	ResultStatus  string                 `json:"result_status"`
	ResultSummary string                 `json:"result_summary"`
	ResultFileURL string                 `json:"result_file_url"`
	ResultData    map[string]interface{} `json:"result_data"`
	Notes         string                 `json:"notes"`
}

// Complete 完成检测。历史记录的old_status取变更前的真实状态。
func (s *TestService) Complete(ctx context.Context, id string, req CompleteTestReq, actor entity.Actor) (*entity.Test, error) {
	if !actor.IsStaff() {
		return nil, errs.Permission("只有检测人员或管理员可以完成检测")
	}

	if req.ResultStatus == "" {
		return nil, errs.Validation("result_status不能为空")
	}
	switch req.ResultStatus {
	case entity.TestResultPass, entity.TestResultFail, entity.TestResultConditional, entity.TestResultPending:
	default:
		return nil, errs.Validation("不支持的检测结果: %s", req.ResultStatus)
	}

	test, err := s.testRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("检测任务不存在")
		}
		return nil, err
	}

	// 变更前先取真实状态，历史记录要还原完整状态链
	priorStatus := test.Status
	if entity.IsTerminalTestStatus(priorStatus) {
		return nil, errs.InvalidState("检测已处于终态 %s，不允许再次完成", priorStatus)
	}

	now := s.clk.Now()
	updates := map[string]interface{}{
		"status":         entity.TestStatusCompleted,
		"result_status":  req.ResultStatus,
		"result_summary": req.ResultSummary,
		"completed_at":   now,
		"updated_at":     now,
	}
	if req.ResultFileURL != "" {
		updates["result_file_url"] = req.ResultFileURL
	}
	if req.ResultData != nil {
		updates["result_data"] = entity.JSONB(req.ResultData)
	}
	if req.Notes != "" {
		updates["notes"] = req.Notes
	}

	ok, err := s.testRepo.TransitionStatus(ctx, id, priorStatus, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, ferr := s.testRepo.FindByID(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, errs.InvalidState("检测状态已变更为 %s，不允许完成", current.Status)
	}

	record := &entity.TestHistory{
		TestID:            id,
		ChangedBy:         actor.Username,
		ChangeType:        entity.ChangeTypeTestCompleted,
		OldStatus:         &priorStatus,
		NewStatus:         entity.TestStatusCompleted,
		ChangeDescription: fmt.Sprintf("Test completed with %s result", req.ResultStatus),
		ChangedAt:         now,
	}
	if err := s.historyRepo.Append(ctx, record); err != nil {
		return nil, errs.Storage("检测已完成，但历史记录写入失败", err)
	}

	test, err = s.testRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 通知产品归属供应商
	product, err := s.productRepo.FindByID(ctx, test.ProductID)
	if err != nil {
		return nil, err
	}
	_, err = s.notifier.Notify(ctx,
		product.SupplierID,
		entity.RoleSupplier,
		entity.NotifyTestCompleted,
		fmt.Sprintf("Test completed: %s", test.TestName),
		fmt.Sprintf("Test '%s' for product '%s' has completed with result: %s.", test.TestName, product.Name, req.ResultStatus),
	)
	if err != nil {
		return nil, errs.Storage("检测已完成，但通知写入失败", err)
	}

	return test, nil
}

// UpdateTestReq 编辑检测任务请求
type UpdateTestReq struct {
	TestName      *string                `json:"test_name"`
	Status        *string                `json:"status"`
	Priority      *string                `json:"priority"`
	AssignedTo    *string                `json:"assigned_to"`
	ScheduledDate *time.Time             `json:"scheduled_date"`
	ResultSummary *string                `json:"result_summary"`
	ResultData    map[string]interface{} `json:"result_data"`
	Notes         *string                `json:"notes"`
}

// Update 通用字段编辑。凡是改了status，就追加一条status_update历史。
func (s *TestService) Update(ctx context.Context, id string, req UpdateTestReq, actor entity.Actor) (*entity.Test, error) {
	if !actor.IsStaff() {
		return nil, errs.Permission("只有检测人员或管理员可以编辑检测任务")
	}

	test, err := s.testRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("检测任务不存在")
		}
		return nil, err
	}

	now := s.clk.Now()
	updates := map[string]interface{}{"updated_at": now}
	if req.TestName != nil {
		updates["test_name"] = *req.TestName
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.AssignedTo != nil {
		updates["assigned_to"] = *req.AssignedTo
	}
	if req.ScheduledDate != nil {
		updates["scheduled_date"] = *req.ScheduledDate
	}
	if req.ResultSummary != nil {
		updates["result_summary"] = *req.ResultSummary
	}
	if req.ResultData != nil {
		updates["result_data"] = entity.JSONB(req.ResultData)
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	statusChanged := req.Status != nil && *req.Status != test.Status
	if statusChanged {
		if !entity.IsValidTestStatus(*req.Status) {
			return nil, errs.Validation("不支持的检测状态: %s", *req.Status)
		}
		updates["status"] = *req.Status

		ok, err := s.testRepo.TransitionStatus(ctx, id, test.Status, updates)
		if err != nil {
			return nil, err
		}
		if !ok {
			current, ferr := s.testRepo.FindByID(ctx, id)
			if ferr != nil {
				return nil, ferr
			}
			return nil, errs.InvalidState("检测状态已变更为 %s，请刷新后重试", current.Status)
		}

		oldStatus := test.Status
		record := &entity.TestHistory{
			TestID:            id,
			ChangedBy:         actor.Username,
			ChangeType:        entity.ChangeTypeStatusUpdate,
			OldStatus:         &oldStatus,
			NewStatus:         *req.Status,
			ChangeDescription: fmt.Sprintf("Status changed from %s to %s", oldStatus, *req.Status),
			ChangedAt:         now,
		}
		if err := s.historyRepo.Append(ctx, record); err != nil {
			return nil, errs.Storage("检测已更新，但历史记录写入失败", err)
		}
	} else if len(updates) > 1 {
		if err := s.testRepo.UpdateFields(ctx, id, updates); err != nil {
			return nil, err
		}
	}

	return s.testRepo.FindByID(ctx, id)
}

// History 按时间顺序查询检测任务的状态变更历史
func (s *TestService) History(ctx context.Context, id string, actor entity.Actor) ([]entity.TestHistory, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.historyRepo.FindByTestID(ctx, id)
}

// TestSummary 产品检测汇总
type TestSummary struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	InProgress int     `json:"in_progress"`
	Pending    int     `json:"pending"`
	PassRate   float64 `json:"pass_rate"`
}

// ProductTests 查询产品的全部检测任务及汇总
func (s *TestService) ProductTests(ctx context.Context, productID string, actor entity.Actor) ([]entity.Test, *TestSummary, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, errs.NotFound("产品不存在")
		}
		return nil, nil, err
	}
	if !actor.IsStaff() && product.SupplierID != actor.ID {
		return nil, nil, errs.Permission("无权访问该产品的检测任务")
	}

	tests, err := s.testRepo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	summary := &TestSummary{Total: len(tests)}
	passed := 0
	for _, t := range tests {
		switch t.Status {
		case entity.TestStatusCompleted:
			summary.Completed++
			if t.ResultStatus != nil && *t.ResultStatus == entity.TestResultPass {
				passed++
			}
		case entity.TestStatusInProgress:
			summary.InProgress++
		case entity.TestStatusPending, entity.TestStatusScheduled:
			summary.Pending++
		}
	}
	if summary.Completed > 0 {
		summary.PassRate = float64(passed) / float64(summary.Completed) * 100
	}

	return tests, summary, nil
}
