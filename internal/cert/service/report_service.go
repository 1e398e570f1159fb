package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/config"
	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
)

// ReportService 检测报告服务。创建后立即返回，
// 生成在延时定时器里完成，进程重启后由RecoverPending补排。
type ReportService struct {
	reportRepo  *repository.ReportRepository
	testRepo    *repository.TestRepository
	productRepo *repository.ProductRepository
	minioClient *minio.Client
	cfg         config.ReportConfig
	bucket      string
	clk         clock.Clock

	mu     sync.Mutex
	timers map[string]*clock.Timer
}

func NewReportService(
	reportRepo *repository.ReportRepository,
	testRepo *repository.TestRepository,
	productRepo *repository.ProductRepository,
	cfg config.ReportConfig,
	clk clock.Clock,
) *ReportService {
	return &ReportService{
		reportRepo:  reportRepo,
		testRepo:    testRepo,
		productRepo: productRepo,
		cfg:         cfg,
		clk:         clk,
		timers:      make(map[string]*clock.Timer),
	}
}

// SetMinioClient 注入MinIO客户端
func (s *ReportService) SetMinioClient(client *minio.Client, bucket string) {
	s.minioClient = client
	s.bucket = bucket
}

// CreateReportReq 创建报告请求
type CreateReportReq struct {
	ProductID    string `json:"product_id" binding:"required"`
	ReportType   string `json:"report_type"`
	ReportFormat string `json:"report_format"`
}

// Create 创建报告并调度异步生成，立即返回generating状态
func (s *ReportService) Create(ctx context.Context, req CreateReportReq, actor entity.Actor) (*entity.Report, error) {
	reportType := req.ReportType
	if reportType == "" {
		reportType = "composite"
	}
	if !entity.ReportTypes[reportType] {
		return nil, errs.Validation("不支持的报告类型: %s", reportType)
	}

	reportFormat := strings.ToUpper(req.ReportFormat)
	if reportFormat == "" {
		reportFormat = "JSON"
	}
	if !entity.ReportFormats[reportFormat] {
		return nil, errs.Validation("不支持的报告格式: %s", req.ReportFormat)
	}

	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.Validation("产品 %s 不存在", req.ProductID)
		}
		return nil, err
	}
	if !actor.IsStaff() && product.SupplierID != actor.ID {
		return nil, errs.Permission("无权为该产品生成报告")
	}

	report := &entity.Report{
		ID:           uuid.New().String()[:32],
		ProductID:    req.ProductID,
		ReportType:   reportType,
		ReportFormat: reportFormat,
		Status:       entity.ReportStatusGenerating,
		CreatedAt:    s.clk.Now(),
	}

	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	s.schedule(report.ID, s.cfg.GenerateDelay)

	return report, nil
}

// schedule 排入延时生成队列，定时器句柄可在停机时取消
func (s *ReportService) schedule(reportID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[reportID]; ok {
		return
	}
	s.timers[reportID] = s.clk.AfterFunc(delay, func() {
		s.finish(reportID)
	})
}

// finish 后台完成报告生成。条件更新保证补排与原定时器不会重复完成。
func (s *ReportService) finish(reportID string) {
	ctx := context.Background()

	defer func() {
		s.mu.Lock()
		delete(s.timers, reportID)
		s.mu.Unlock()
	}()

	report, err := s.reportRepo.FindByID(ctx, reportID)
	if err != nil {
		log.Printf("[report] finish %s: load failed: %v", reportID, err)
		return
	}
	if report.Status != entity.ReportStatusGenerating {
		return
	}

	data, contentType, err := s.render(ctx, report)
	if err != nil {
		log.Printf("[report] finish %s: render failed: %v", reportID, err)
		s.markFailed(ctx, reportID)
		return
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	fileSize := int64(len(data))

	now := s.clk.Now()
	expiresAt := now.AddDate(0, 0, s.cfg.ExpireDays)

	updates := map[string]interface{}{
		"status":       entity.ReportStatusCompleted,
		"report_url":   fmt.Sprintf("/api/v1/reports/%s/download", reportID),
		"generated_at": now,
		"expires_at":   expiresAt,
		"file_size":    fileSize,
		"checksum":     checksum,
	}

	// MinIO未配置时跳过上传，仅落库报告元数据（本地/测试环境）
	if s.minioClient != nil {
		key := fmt.Sprintf("reports/%s/%s.%s", now.Format("2006/01/02"), reportID, strings.ToLower(report.ReportFormat))
		_, err := s.minioClient.PutObject(ctx, s.bucket, key, bytes.NewReader(data), fileSize, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			log.Printf("[report] finish %s: upload failed: %v", reportID, err)
			s.markFailed(ctx, reportID)
			return
		}
		updates["storage_bucket"] = s.bucket
		updates["storage_key"] = key
	}

	ok, err := s.reportRepo.CompleteFrom(ctx, reportID, entity.ReportStatusGenerating, updates)
	if err != nil {
		log.Printf("[report] finish %s: update failed: %v", reportID, err)
		return
	}
	if !ok {
		log.Printf("[report] finish %s: already finalized, skipping", reportID)
	}
}

func (s *ReportService) markFailed(ctx context.Context, reportID string) {
	if _, err := s.reportRepo.CompleteFrom(ctx, reportID, entity.ReportStatusGenerating, map[string]interface{}{
		"status": entity.ReportStatusFailed,
	}); err != nil {
		log.Printf("[report] mark failed %s: %v", reportID, err)
	}
}

// reportDocument 报告文档结构（JSON/XML共用）
type reportDocument struct {
	XMLName     xml.Name          `json:"-" xml:"report"`
	ReportID    string            `json:"report_id" xml:"report_id"`
	ReportType  string            `json:"report_type" xml:"report_type"`
	GeneratedAt time.Time         `json:"generated_at" xml:"generated_at"`
	Product     reportProduct     `json:"product" xml:"product"`
	Summary     reportSummary     `json:"summary" xml:"summary"`
	Tests       []reportTestEntry `json:"tests" xml:"tests>test"`
}

type reportProduct struct {
	ID               string `json:"id" xml:"id"`
	Name             string `json:"name" xml:"name"`
	Category         string `json:"category" xml:"category"`
	SubmissionStatus string `json:"submission_status" xml:"submission_status"`
}

type reportSummary struct {
	TotalTests     int     `json:"total_tests" xml:"total_tests"`
	CompletedTests int     `json:"completed_tests" xml:"completed_tests"`
	PassedTests    int     `json:"passed_tests" xml:"passed_tests"`
	PassRate       float64 `json:"pass_rate" xml:"pass_rate"`
}

type reportTestEntry struct {
	ID            string     `json:"id" xml:"id"`
	TestType      string     `json:"test_type" xml:"test_type"`
	TestName      string     `json:"test_name" xml:"test_name"`
	Status        string     `json:"status" xml:"status"`
	ResultStatus  string     `json:"result_status" xml:"result_status"`
	ResultSummary string     `json:"result_summary" xml:"result_summary"`
	CompletedAt   *time.Time `json:"completed_at" xml:"completed_at,omitempty"`
}

// render 聚合产品的检测结果，按报告格式渲染成文档
func (s *ReportService) render(ctx context.Context, report *entity.Report) ([]byte, string, error) {
	product, err := s.productRepo.FindByID(ctx, report.ProductID)
	if err != nil {
		return nil, "", fmt.Errorf("load product: %w", err)
	}
	tests, err := s.testRepo.FindByProductID(ctx, report.ProductID)
	if err != nil {
		return nil, "", fmt.Errorf("load tests: %w", err)
	}

	doc := reportDocument{
		ReportID:    report.ID,
		ReportType:  report.ReportType,
		GeneratedAt: s.clk.Now(),
		Product: reportProduct{
			ID:               product.ID,
			Name:             product.Name,
			Category:         product.Category,
			SubmissionStatus: product.SubmissionStatus,
		},
	}

	for _, t := range tests {
		entry := reportTestEntry{
			ID:            t.ID,
			TestType:      t.TestType,
			TestName:      t.TestName,
			Status:        t.Status,
			ResultSummary: t.ResultSummary,
			CompletedAt:   t.CompletedAt,
		}
		if t.ResultStatus != nil {
			entry.ResultStatus = *t.ResultStatus
		}
		doc.Tests = append(doc.Tests, entry)

		doc.Summary.TotalTests++
		if t.Status == entity.TestStatusCompleted {
			doc.Summary.CompletedTests++
			if entry.ResultStatus == entity.TestResultPass {
				doc.Summary.PassedTests++
			}
		}
	}
	if doc.Summary.CompletedTests > 0 {
		doc.Summary.PassRate = float64(doc.Summary.PassedTests) / float64(doc.Summary.CompletedTests) * 100
	}

	switch report.ReportFormat {
	case "XML":
		data, err := xml.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return append([]byte(xml.Header), data...), "application/xml", nil
	case "XLSX":
		data, err := renderXLSX(doc)
		if err != nil {
			return nil, "", err
		}
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	default:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}

// renderXLSX 渲染XLSX报表
func renderXLSX(doc reportDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Report"
	f.SetSheetName("Sheet1", sheet)

	f.SetCellValue(sheet, "A1", "Report ID")
	f.SetCellValue(sheet, "B1", doc.ReportID)
	f.SetCellValue(sheet, "A2", "Product")
	f.SetCellValue(sheet, "B2", doc.Product.Name)
	f.SetCellValue(sheet, "A3", "Category")
	f.SetCellValue(sheet, "B3", doc.Product.Category)
	f.SetCellValue(sheet, "A4", "Pass Rate")
	f.SetCellValue(sheet, "B4", fmt.Sprintf("%.1f%%", doc.Summary.PassRate))

	headers := []string{"Test ID", "Type", "Name", "Status", "Result", "Summary"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 6)
		f.SetCellValue(sheet, cell, h)
	}

	for row, t := range doc.Tests {
		values := []interface{}{t.ID, t.TestType, t.TestName, t.Status, t.ResultStatus, t.ResultSummary}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+7)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Get 查询报告详情，带归属校验
func (s *ReportService) Get(ctx context.Context, id string, actor entity.Actor) (*entity.Report, error) {
	report, err := s.reportRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("报告不存在")
		}
		return nil, err
	}

	if !actor.IsStaff() {
		product, err := s.productRepo.FindByID(ctx, report.ProductID)
		if err != nil {
			return nil, err
		}
		if product.SupplierID != actor.ID {
			return nil, errs.Permission("无权访问该报告")
		}
	}

	return report, nil
}

// List 查询报告列表
func (s *ReportService) List(ctx context.Context, actor entity.Actor, page, pageSize int, filters map[string]string) ([]entity.Report, int64, error) {
	if !actor.IsStaff() {
		productID := filters["product_id"]
		if productID == "" {
			return nil, 0, errs.Permission("供应商查询报告需指定product_id")
		}
		product, err := s.productRepo.FindByID(ctx, productID)
		if err != nil {
			if err == repository.ErrNotFound {
				return nil, 0, errs.NotFound("产品不存在")
			}
			return nil, 0, err
		}
		if product.SupplierID != actor.ID {
			return nil, 0, errs.Permission("无权访问该产品的报告")
		}
	}
	return s.reportRepo.FindAll(ctx, page, pageSize, filters)
}

// ProductReports 查询产品的全部报告
func (s *ReportService) ProductReports(ctx context.Context, productID string, actor entity.Actor) ([]entity.Report, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("产品不存在")
		}
		return nil, err
	}
	if !actor.IsStaff() && product.SupplierID != actor.ID {
		return nil, errs.Permission("无权访问该产品的报告")
	}
	return s.reportRepo.FindByProductID(ctx, productID)
}

// Download 生成报告下载凭据。未完成的报告返回NotReady。
func (s *ReportService) Download(ctx context.Context, id string, actor entity.Actor) (*entity.DownloadDescriptor, error) {
	report, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	switch report.Status {
	case entity.ReportStatusCompleted:
	case entity.ReportStatusFailed:
		return nil, errs.InvalidState("报告生成失败，无法下载")
	default:
		return nil, errs.NotReady("报告尚未生成完成，当前状态: %s", report.Status)
	}

	desc := &entity.DownloadDescriptor{
		ReportID:  report.ID,
		ExpiresIn: fmt.Sprintf("%d seconds", int(s.cfg.PresignExpire.Seconds())),
		Message:   "Report download link generated",
	}

	if s.minioClient != nil && report.StorageKey != "" {
		u, err := s.minioClient.PresignedGetObject(ctx, report.StorageBucket, report.StorageKey, s.cfg.PresignExpire, nil)
		if err != nil {
			return nil, errs.Storage("生成下载链接失败", err)
		}
		desc.DownloadURL = u.String()
	} else {
		desc.DownloadURL = report.ReportURL
	}

	return desc, nil
}

// RecoverPending 进程启动时补排停机期间滞留的generating报告
func (s *ReportService) RecoverPending(ctx context.Context) error {
	reports, err := s.reportRepo.FindByStatus(ctx, entity.ReportStatusGenerating)
	if err != nil {
		return err
	}
	for _, r := range reports {
		s.schedule(r.ID, s.cfg.GenerateDelay)
	}
	if len(reports) > 0 {
		log.Printf("[report] rescheduled %d pending reports", len(reports))
	}
	return nil
}

// Stop 停掉所有未触发的生成定时器（优雅停机）
func (s *ReportService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
