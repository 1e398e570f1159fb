package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/bitfantasy/nimo-cert/internal/cert/testutil"
	"github.com/bitfantasy/nimo-cert/internal/config"
	"github.com/gin-gonic/gin"
)

func setupAuthTest(t *testing.T) *gin.Engine {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:             testutil.JWTSecret,
			AccessTokenExpire:  2 * time.Hour,
			RefreshTokenExpire: 168 * time.Hour,
			Issuer:             "nimo-cert",
		},
	}

	svc := service.NewAuthService(repos.Supplier, nil, cfg)
	h := NewAuthHandler(svc)

	router := testutil.SetupRouter()
	router.POST("/api/v1/auth/register", h.Register)
	router.POST("/api/v1/auth/login", h.Login)
	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/auth/me", h.Me)

	return router
}

// TestRegisterAndLogin tests the register → login → me flow
func TestRegisterAndLogin(t *testing.T) {
	router := setupAuthTest(t)

	// Register
	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/auth/register", map[string]interface{}{
		"username": "acme_labs",
		"email":    "contact@acme-labs.com",
		"password": "s3cret-pass",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["role"] != "supplier" || data["status"] != "active" {
		t.Fatalf("expected active supplier account, got role=%v status=%v", data["role"], data["status"])
	}
	if _, ok := data["password_hash"]; ok {
		t.Fatal("password hash must not appear in responses")
	}

	// Duplicate username is rejected
	w2 := testutil.DoRequest(router, http.MethodPost, "/api/v1/auth/register", map[string]interface{}{
		"username": "acme_labs",
		"email":    "other@acme-labs.com",
		"password": "s3cret-pass",
	}, "")
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate username, got %d: %s", w2.Code, w2.Body.String())
	}

	// Login
	w3 := testutil.DoRequest(router, http.MethodPost, "/api/v1/auth/login", map[string]interface{}{
		"username": "acme_labs",
		"password": "s3cret-pass",
	}, "")
	if w3.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w3.Code, w3.Body.String())
	}
	data3 := testutil.ParseResponse(w3)["data"].(map[string]interface{})
	pair := data3["token"].(map[string]interface{})
	accessToken, _ := pair["access_token"].(string)
	if accessToken == "" || pair["refresh_token"] == "" {
		t.Fatal("expected both access and refresh tokens")
	}

	// The issued access token authenticates /auth/me
	w4 := testutil.DoRequest(router, http.MethodGet, "/api/v1/auth/me", nil, accessToken)
	if w4.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w4.Code, w4.Body.String())
	}
	data4 := testutil.ParseResponse(w4)["data"].(map[string]interface{})
	if data4["username"] != "acme_labs" {
		t.Fatalf("expected username acme_labs, got %v", data4["username"])
	}

	// Wrong password yields the same opaque error as an unknown user
	w5 := testutil.DoRequest(router, http.MethodPost, "/api/v1/auth/login", map[string]interface{}{
		"username": "acme_labs",
		"password": "wrong-pass",
	}, "")
	if w5.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong password, got %d: %s", w5.Code, w5.Body.String())
	}
	w6 := testutil.DoRequest(router, http.MethodPost, "/api/v1/auth/login", map[string]interface{}{
		"username": "nobody",
		"password": "wrong-pass",
	}, "")
	if w6.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown user, got %d: %s", w6.Code, w6.Body.String())
	}
	if testutil.ParseResponse(w5)["message"] != testutil.ParseResponse(w6)["message"] {
		t.Fatal("login errors must not reveal whether the username exists")
	}

	// Unauthenticated access is refused
	w7 := testutil.DoRequest(router, http.MethodGet, "/api/v1/auth/me", nil, "")
	if w7.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d: %s", w7.Code, w7.Body.String())
	}
}
