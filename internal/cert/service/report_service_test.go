package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/cert/testutil"
	"github.com/bitfantasy/nimo-cert/internal/config"
	"github.com/facebookgo/clock"
	"gorm.io/gorm"
)

const reportDelay = 5 * time.Second

func setupReportService(t *testing.T) (*gorm.DB, *ReportService, *clock.Mock) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	mock := clock.NewMock()
	cfg := config.ReportConfig{
		GenerateDelay: reportDelay,
		ExpireDays:    30,
		PresignExpire: time.Hour,
	}
	svc := NewReportService(repos.Report, repos.Test, repos.Product, cfg, mock)
	t.Cleanup(svc.Stop)
	return db, svc, mock
}

func seedReportData(t *testing.T, db *gorm.DB) string {
	t.Helper()
	testutil.SeedSupplier(t, db, "sup-rep-001", "rep_supplier")
	testutil.SeedProduct(t, db, "prod-rep-001", "sup-rep-001", "Thermostat", entity.ProductStatusTesting)

	pass := entity.TestResultPass
	now := time.Now()
	test := &entity.Test{
		ID:            "test-rep-001",
		ProductID:     "prod-rep-001",
		TestType:      "Safety",
		TestName:      "Thermal cutoff test",
		Status:        entity.TestStatusCompleted,
		ResultStatus:  &pass,
		ResultSummary: "Cutoff engaged within limits",
		CompletedAt:   &now,
	}
	if err := db.Create(test).Error; err != nil {
		t.Fatalf("seed test failed: %v", err)
	}
	return "prod-rep-001"
}

// waitForReportStatus polls until the report reaches the wanted status.
// Mock timers fire their callbacks on separate goroutines, so the test
// has to wait for the write to land.
func waitForReportStatus(t *testing.T, db *gorm.DB, id, want string) *entity.Report {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var report entity.Report
		if err := db.Where("id = ?", id).First(&report).Error; err == nil && report.Status == want {
			return &report
		}
		time.Sleep(20 * time.Millisecond)
	}
	var report entity.Report
	db.Where("id = ?", id).First(&report)
	t.Fatalf("report %s never reached status %s, stuck at %s", id, want, report.Status)
	return nil
}

// TestReportGeneration tests the async generation flow: create returns
// immediately with generating, the delayed job completes it
func TestReportGeneration(t *testing.T) {
	db, svc, mock := setupReportService(t)
	ctx := context.Background()
	productID := seedReportData(t, db)
	admin := entity.Actor{ID: "test-admin-001", Username: "test_admin", Role: entity.RoleAdmin}

	report, err := svc.Create(ctx, CreateReportReq{ProductID: productID}, admin)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if report.Status != entity.ReportStatusGenerating {
		t.Fatalf("expected status generating, got %s", report.Status)
	}
	if report.ReportType != "composite" || report.ReportFormat != "JSON" {
		t.Fatalf("expected composite/JSON defaults, got %s/%s", report.ReportType, report.ReportFormat)
	}

	// Download before generation finishes must report not-ready
	if _, err := svc.Download(ctx, report.ID, admin); errs.KindOf(err) != errs.KindNotReady {
		t.Fatalf("expected NOT_READY before generation, got %v", err)
	}

	mock.Add(reportDelay)
	done := waitForReportStatus(t, db, report.ID, entity.ReportStatusCompleted)

	if done.ReportURL != "/api/v1/reports/"+report.ID+"/download" {
		t.Fatalf("unexpected report_url: %s", done.ReportURL)
	}
	if done.GeneratedAt == nil || done.ExpiresAt == nil {
		t.Fatal("expected generated_at and expires_at to be set")
	}
	if got := done.ExpiresAt.Sub(*done.GeneratedAt); got != 30*24*time.Hour {
		t.Fatalf("expected 30 day expiry window, got %v", got)
	}
	if len(done.Checksum) != 64 {
		t.Fatalf("expected sha256 checksum, got %q", done.Checksum)
	}
	if done.FileSize == nil || *done.FileSize <= 0 {
		t.Fatalf("expected positive file_size, got %v", done.FileSize)
	}

	// Without object storage the descriptor falls back to the API download URL
	desc, err := svc.Download(ctx, report.ID, admin)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if desc.DownloadURL != done.ReportURL {
		t.Fatalf("expected download_url %s, got %s", done.ReportURL, desc.DownloadURL)
	}

	// A second finish for the same report must not rewrite completion fields
	svc.finish(report.ID)
	again := waitForReportStatus(t, db, report.ID, entity.ReportStatusCompleted)
	if !again.GeneratedAt.Equal(*done.GeneratedAt) {
		t.Fatal("expected generated_at to be untouched by repeated finish")
	}
}

// TestReportFormats tests XML and XLSX rendering paths
func TestReportFormats(t *testing.T) {
	db, svc, mock := setupReportService(t)
	ctx := context.Background()
	productID := seedReportData(t, db)
	admin := entity.Actor{ID: "test-admin-001", Username: "test_admin", Role: entity.RoleAdmin}

	for _, format := range []string{"xml", "xlsx"} {
		report, err := svc.Create(ctx, CreateReportReq{ProductID: productID, ReportType: "final", ReportFormat: format}, admin)
		if err != nil {
			t.Fatalf("Create %s failed: %v", format, err)
		}
		mock.Add(reportDelay)
		done := waitForReportStatus(t, db, report.ID, entity.ReportStatusCompleted)
		if done.FileSize == nil || *done.FileSize <= 0 {
			t.Fatalf("expected rendered %s content, got file_size %v", format, done.FileSize)
		}
	}
}

// TestReportValidation tests type/format validation and ownership checks
func TestReportValidation(t *testing.T) {
	db, svc, _ := setupReportService(t)
	ctx := context.Background()
	productID := seedReportData(t, db)
	admin := entity.Actor{ID: "test-admin-001", Username: "test_admin", Role: entity.RoleAdmin}

	if _, err := svc.Create(ctx, CreateReportReq{ProductID: productID, ReportType: "weekly"}, admin); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected VALIDATION_ERROR for unknown type, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateReportReq{ProductID: productID, ReportFormat: "PDF"}, admin); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected VALIDATION_ERROR for unknown format, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateReportReq{ProductID: "prod-missing"}, admin); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected VALIDATION_ERROR for missing product, got %v", err)
	}

	testutil.SeedSupplier(t, db, "sup-rep-002", "rep_other")
	other := entity.Actor{ID: "sup-rep-002", Username: "rep_other", Role: entity.RoleSupplier}
	if _, err := svc.Create(ctx, CreateReportReq{ProductID: productID}, other); errs.KindOf(err) != errs.KindPermission {
		t.Fatalf("expected PERMISSION_DENIED for foreign product, got %v", err)
	}
}

// TestReportRecoverPending tests that reports stranded in generating are
// rescheduled on startup
func TestReportRecoverPending(t *testing.T) {
	db, svc, mock := setupReportService(t)
	ctx := context.Background()
	productID := seedReportData(t, db)

	stranded := &entity.Report{
		ID:           "rep-stranded-001",
		ProductID:    productID,
		ReportType:   "composite",
		ReportFormat: "JSON",
		Status:       entity.ReportStatusGenerating,
	}
	if err := db.Create(stranded).Error; err != nil {
		t.Fatalf("seed stranded report failed: %v", err)
	}

	if err := svc.RecoverPending(ctx); err != nil {
		t.Fatalf("RecoverPending failed: %v", err)
	}

	mock.Add(reportDelay)
	done := waitForReportStatus(t, db, stranded.ID, entity.ReportStatusCompleted)
	if done.GeneratedAt == nil {
		t.Fatal("expected recovered report to be generated")
	}
}
