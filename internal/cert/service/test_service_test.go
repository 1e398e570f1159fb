package service

import (
	"context"
	"sync"
	"testing"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/cert/testutil"
	"github.com/facebookgo/clock"
	"gorm.io/gorm"
)

func setupTestService(t *testing.T) (*gorm.DB, *TestService, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	clk := clock.New()
	notifier := NewNotificationService(repos.Notification, nil, clk)
	svc := NewTestService(repos.Test, repos.TestHistory, repos.Product, notifier, clk)
	return db, svc, repos
}

func testerActor() entity.Actor {
	return entity.Actor{ID: "test-tester-001", Username: "test_tester", Role: entity.RoleTester}
}

// TestTestWorkflow tests the full test lifecycle and the history chain it leaves behind
func TestTestWorkflow(t *testing.T) {
	db, svc, repos := setupTestService(t)
	ctx := context.Background()
	tester := testerActor()

	testutil.SeedSupplier(t, db, "sup-wf-001", "wf_supplier")
	testutil.SeedProduct(t, db, "prod-wf-001", "sup-wf-001", "Smart Plug", entity.ProductStatusTesting)

	// Create: initial history record has NULL old_status
	created, err := svc.Create(ctx, CreateTestReq{
		ProductID: "prod-wf-001",
		TestType:  "Safety",
		TestName:  "Electrical safety inspection",
	}, tester)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Status != entity.TestStatusPending {
		t.Fatalf("expected status pending, got %s", created.Status)
	}
	if created.Priority != entity.TestPriorityMedium {
		t.Fatalf("expected default priority medium, got %s", created.Priority)
	}

	// Start on pending must fail, only scheduled tests can start
	if _, err := svc.Start(ctx, created.ID, tester); errs.KindOf(err) != errs.KindInvalidState {
		t.Fatalf("expected INVALID_STATE starting a pending test, got %v", err)
	}

	// Schedule via generic update, leaves a status_update record
	scheduled := entity.TestStatusScheduled
	if _, err := svc.Update(ctx, created.ID, UpdateTestReq{Status: &scheduled}, tester); err != nil {
		t.Fatalf("Update to scheduled failed: %v", err)
	}

	// Start: scheduled → in_progress
	started, err := svc.Start(ctx, created.ID, tester)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if started.Status != entity.TestStatusInProgress {
		t.Fatalf("expected status in_progress, got %s", started.Status)
	}
	if started.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}

	// Complete with pass result
	completed, err := svc.Complete(ctx, created.ID, CompleteTestReq{
		ResultStatus:  entity.TestResultPass,
		ResultSummary: "All safety checks passed",
	}, tester)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.Status != entity.TestStatusCompleted {
		t.Fatalf("expected status completed, got %s", completed.Status)
	}
	if completed.ResultStatus == nil || *completed.ResultStatus != entity.TestResultPass {
		t.Fatalf("expected result pass, got %v", completed.ResultStatus)
	}
	if completed.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	// Completing a terminal test must fail
	if _, err := svc.Complete(ctx, created.ID, CompleteTestReq{ResultStatus: entity.TestResultFail}, tester); errs.KindOf(err) != errs.KindInvalidState {
		t.Fatalf("expected INVALID_STATE completing twice, got %v", err)
	}

	// History must reconstruct the full status chain
	history, err := svc.History(ctx, created.ID, tester)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 history records, got %d", len(history))
	}
	if history[0].ChangeType != entity.ChangeTypeTestCreated || history[0].OldStatus != nil {
		t.Fatalf("expected first record test_created with NULL old_status, got %s %v", history[0].ChangeType, history[0].OldStatus)
	}
	for i := 1; i < len(history); i++ {
		if history[i].OldStatus == nil || *history[i].OldStatus != history[i-1].NewStatus {
			t.Fatalf("broken history chain at record %d: old=%v prev.new=%s", i, history[i].OldStatus, history[i-1].NewStatus)
		}
	}
	if history[3].ChangeType != entity.ChangeTypeTestCompleted {
		t.Fatalf("expected last record test_completed, got %s", history[3].ChangeType)
	}

	// Completion notifies the product's supplier
	count, err := repos.Notification.CountByRecipientAndType(ctx, "sup-wf-001", entity.NotifyTestCompleted)
	if err != nil {
		t.Fatalf("count notifications failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 test_completed notification, got %d", count)
	}
}

// TestTestPermissions tests that suppliers cannot manage tests and cannot see other suppliers' tests
func TestTestPermissions(t *testing.T) {
	db, svc, _ := setupTestService(t)
	ctx := context.Background()

	testutil.SeedSupplier(t, db, "sup-perm-001", "perm_owner")
	testutil.SeedSupplier(t, db, "sup-perm-002", "perm_other")
	testutil.SeedProduct(t, db, "prod-perm-001", "sup-perm-001", "Router", entity.ProductStatusTesting)
	testutil.SeedTest(t, db, "test-perm-001", "prod-perm-001", entity.TestStatusPending)

	owner := entity.Actor{ID: "sup-perm-001", Username: "perm_owner", Role: entity.RoleSupplier}
	other := entity.Actor{ID: "sup-perm-002", Username: "perm_other", Role: entity.RoleSupplier}

	if _, err := svc.Create(ctx, CreateTestReq{ProductID: "prod-perm-001", TestType: "Quality", TestName: "x"}, owner); errs.KindOf(err) != errs.KindPermission {
		t.Fatalf("expected PERMISSION_DENIED for supplier create, got %v", err)
	}
	if _, err := svc.Start(ctx, "test-perm-001", owner); errs.KindOf(err) != errs.KindPermission {
		t.Fatalf("expected PERMISSION_DENIED for supplier start, got %v", err)
	}

	// Owner can read, other supplier cannot
	if _, err := svc.Get(ctx, "test-perm-001", owner); err != nil {
		t.Fatalf("owner Get failed: %v", err)
	}
	if _, err := svc.Get(ctx, "test-perm-001", other); errs.KindOf(err) != errs.KindPermission {
		t.Fatalf("expected PERMISSION_DENIED for other supplier, got %v", err)
	}
}

// TestTestCreateValidation tests type and status validation on create
func TestTestCreateValidation(t *testing.T) {
	db, svc, _ := setupTestService(t)
	ctx := context.Background()
	tester := testerActor()

	testutil.SeedSupplier(t, db, "sup-val-001", "val_supplier")
	testutil.SeedProduct(t, db, "prod-val-001", "sup-val-001", "Lamp", entity.ProductStatusTesting)

	if _, err := svc.Create(ctx, CreateTestReq{ProductID: "prod-val-001", TestType: "Acoustic", TestName: "x"}, tester); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected VALIDATION_ERROR for unknown type, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateTestReq{ProductID: "prod-val-001", TestType: "Safety", TestName: "x", Status: "running"}, tester); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected VALIDATION_ERROR for unknown status, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateTestReq{ProductID: "prod-missing", TestType: "Safety", TestName: "x"}, tester); errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("expected VALIDATION_ERROR for missing product, got %v", err)
	}
}

// TestCompleteConcurrent tests that concurrent completion has exactly one winner
// and leaves exactly one test_completed history record
func TestCompleteConcurrent(t *testing.T) {
	db, svc, _ := setupTestService(t)
	ctx := context.Background()
	tester := testerActor()

	testutil.SeedSupplier(t, db, "sup-cc-001", "cc_supplier")
	testutil.SeedProduct(t, db, "prod-cc-001", "sup-cc-001", "Charger", entity.ProductStatusTesting)
	testutil.SeedTest(t, db, "test-cc-001", "prod-cc-001", entity.TestStatusInProgress)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Complete(ctx, "test-cc-001", CompleteTestReq{ResultStatus: entity.TestResultPass}, tester)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else if errs.KindOf(err) == errs.KindInvalidState {
			losses++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got %d wins / %d losses", wins, losses)
	}

	var count int64
	db.Model(&entity.TestHistory{}).
		Where("test_id = ? AND change_type = ?", "test-cc-001", entity.ChangeTypeTestCompleted).
		Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 test_completed history record, got %d", count)
	}
}

// TestProductTestsSummary tests the aggregate counters and pass rate
func TestProductTestsSummary(t *testing.T) {
	db, svc, _ := setupTestService(t)
	ctx := context.Background()
	tester := testerActor()

	testutil.SeedSupplier(t, db, "sup-sum-001", "sum_supplier")
	testutil.SeedProduct(t, db, "prod-sum-001", "sup-sum-001", "Speaker", entity.ProductStatusTesting)

	pass := entity.TestResultPass
	fail := entity.TestResultFail
	seed := []entity.Test{
		{ID: "t-sum-1", ProductID: "prod-sum-001", TestType: "Safety", TestName: "a", Status: entity.TestStatusCompleted, ResultStatus: &pass},
		{ID: "t-sum-2", ProductID: "prod-sum-001", TestType: "Quality", TestName: "b", Status: entity.TestStatusCompleted, ResultStatus: &fail},
		{ID: "t-sum-3", ProductID: "prod-sum-001", TestType: "Compliance", TestName: "c", Status: entity.TestStatusInProgress},
		{ID: "t-sum-4", ProductID: "prod-sum-001", TestType: "Performance", TestName: "d", Status: entity.TestStatusPending},
		{ID: "t-sum-5", ProductID: "prod-sum-001", TestType: "Environmental", TestName: "e", Status: entity.TestStatusScheduled},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed test failed: %v", err)
		}
	}

	tests, summary, err := svc.ProductTests(ctx, "prod-sum-001", tester)
	if err != nil {
		t.Fatalf("ProductTests failed: %v", err)
	}
	if len(tests) != 5 {
		t.Fatalf("expected 5 tests, got %d", len(tests))
	}
	if summary.Total != 5 || summary.Completed != 2 || summary.InProgress != 1 || summary.Pending != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.PassRate != 50 {
		t.Fatalf("expected pass rate 50, got %v", summary.PassRate)
	}
}
