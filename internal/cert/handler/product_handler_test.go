package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/bitfantasy/nimo-cert/internal/cert/testutil"
	"github.com/facebookgo/clock"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func setupProductTest(t *testing.T) (*gorm.DB, *gin.Engine, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	clk := clock.New()

	notifier := service.NewNotificationService(repos.Notification, nil, clk)
	svc := service.NewProductService(repos.Product, repos.Supplier, notifier, clk)
	h := NewProductHandler(svc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/products", h.Create)
	api.GET("/products", h.List)
	api.GET("/products/:id", h.Get)
	api.PUT("/products/:id", h.Update)
	api.POST("/products/:id/submit", h.Submit)
	api.PUT("/products/:id/status", h.UpdateStatus)

	return db, router, repos
}

// TestProductSubmitWorkflow tests draft creation, submission, the submission
// notification and the admin-driven review transitions
func TestProductSubmitWorkflow(t *testing.T) {
	db, router, repos := setupProductTest(t)

	testutil.SeedSupplier(t, db, "sup-h-001", "acme")
	token := testutil.SupplierToken("sup-h-001")

	// Create draft product
	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name":     "Smart Thermostat",
		"category": "Electronics",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["submission_status"] != "draft" {
		t.Fatalf("expected status draft, got %v", data["submission_status"])
	}
	productID := data["id"].(string)

	// Submit: draft → submitted
	w2 := testutil.DoRequest(router, http.MethodPost, "/api/v1/products/"+productID+"/submit", nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	resp2 := testutil.ParseResponse(w2)
	data2 := resp2["data"].(map[string]interface{})
	product := data2["product"].(map[string]interface{})
	if product["submission_status"] != "submitted" {
		t.Fatalf("expected status submitted, got %v", product["submission_status"])
	}
	if product["submission_date"] == nil {
		t.Fatal("expected submission_date to be set")
	}

	// Submission writes a notification for the supplier
	count, err := repos.Notification.CountByRecipientAndType(context.Background(), "sup-h-001", entity.NotifyProductSubmitted)
	if err != nil {
		t.Fatalf("count notifications failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 product_submitted notification, got %d", count)
	}

	// Resubmitting must fail with an invalid-state code
	w3 := testutil.DoRequest(router, http.MethodPost, "/api/v1/products/"+productID+"/submit", nil, token)
	if w3.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for resubmit, got %d: %s", w3.Code, w3.Body.String())
	}
	if code := testutil.ParseResponse(w3)["code"].(float64); code != 40002 {
		t.Fatalf("expected code 40002, got %v", code)
	}

	// Editing after submission is rejected, only drafts are editable
	w4 := testutil.DoRequest(router, http.MethodPut, "/api/v1/products/"+productID,
		map[string]interface{}{"name": "Renamed"}, token)
	if w4.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for edit after submit, got %d: %s", w4.Code, w4.Body.String())
	}

	// Only admins may drive the review states
	w5 := testutil.DoRequest(router, http.MethodPut, "/api/v1/products/"+productID+"/status",
		map[string]interface{}{"status": "in_review"}, token)
	if w5.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for supplier status change, got %d: %s", w5.Code, w5.Body.String())
	}

	adminToken := testutil.AdminToken()
	w6 := testutil.DoRequest(router, http.MethodPut, "/api/v1/products/"+productID+"/status",
		map[string]interface{}{"status": "in_review"}, adminToken)
	if w6.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w6.Code, w6.Body.String())
	}
	data6 := testutil.ParseResponse(w6)["data"].(map[string]interface{})
	if data6["submission_status"] != "in_review" {
		t.Fatalf("expected status in_review, got %v", data6["submission_status"])
	}
	if data6["review_date"] == nil {
		t.Fatal("expected review_date to be set")
	}

	// in_review → completed skips testing and must be rejected
	w7 := testutil.DoRequest(router, http.MethodPut, "/api/v1/products/"+productID+"/status",
		map[string]interface{}{"status": "completed"}, adminToken)
	if w7.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for illegal transition, got %d: %s", w7.Code, w7.Body.String())
	}

	// in_review → testing → completed stamps the completion date
	w8 := testutil.DoRequest(router, http.MethodPut, "/api/v1/products/"+productID+"/status",
		map[string]interface{}{"status": "testing"}, adminToken)
	if w8.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w8.Code, w8.Body.String())
	}
	w9 := testutil.DoRequest(router, http.MethodPut, "/api/v1/products/"+productID+"/status",
		map[string]interface{}{"status": "completed"}, adminToken)
	if w9.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w9.Code, w9.Body.String())
	}
	data9 := testutil.ParseResponse(w9)["data"].(map[string]interface{})
	if data9["completion_date"] == nil {
		t.Fatal("expected completion_date to be set")
	}
}

// TestProductListIsolation tests that suppliers only see their own products
func TestProductListIsolation(t *testing.T) {
	db, router, _ := setupProductTest(t)

	testutil.SeedSupplier(t, db, "sup-iso-001", "iso_one")
	testutil.SeedSupplier(t, db, "sup-iso-002", "iso_two")
	testutil.SeedProduct(t, db, "prod-iso-001", "sup-iso-001", "Kettle", entity.ProductStatusDraft)
	testutil.SeedProduct(t, db, "prod-iso-002", "sup-iso-002", "Toaster", entity.ProductStatusDraft)

	w := testutil.DoRequest(router, http.MethodGet, "/api/v1/products", nil, testutil.SupplierToken("sup-iso-001"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 product for supplier, got %d", len(items))
	}
	if items[0].(map[string]interface{})["id"] != "prod-iso-001" {
		t.Fatalf("supplier saw a foreign product: %v", items[0])
	}

	// A foreign product detail is denied, not hidden
	w2 := testutil.DoRequest(router, http.MethodGet, "/api/v1/products/prod-iso-002", nil, testutil.SupplierToken("sup-iso-001"))
	if w2.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign product, got %d: %s", w2.Code, w2.Body.String())
	}

	// Staff see everything
	w3 := testutil.DoRequest(router, http.MethodGet, "/api/v1/products", nil, testutil.TesterToken())
	data3 := testutil.ParseResponse(w3)["data"].(map[string]interface{})
	if total := data3["pagination"].(map[string]interface{})["total"].(float64); total != 2 {
		t.Fatalf("expected tester to see 2 products, got %v", total)
	}
}
