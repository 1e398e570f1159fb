package service

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证服务
type AuthService struct {
	supplierRepo *repository.SupplierRepository
	rdb          *redis.Client
	cfg          *config.Config
}

// NewAuthService 创建认证服务
func NewAuthService(supplierRepo *repository.SupplierRepository, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		supplierRepo: supplierRepo,
		rdb:          rdb,
		cfg:          cfg,
	}
}

// TokenPair Token对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RegisterReq 注册请求
type RegisterReq struct {
	Username           string `json:"username" binding:"required"`
	Email              string `json:"email" binding:"required,email"`
	Password           string `json:"password" binding:"required,min=8"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	Phone              string `json:"phone"`
	Address            string `json:"address"`
	RegistrationNumber string `json:"registration_number"`
}

// Register 注册供应商账号
func (s *AuthService) Register(ctx context.Context, req RegisterReq) (*entity.Supplier, error) {
	// 用户名查重
	if _, err := s.supplierRepo.FindByUsername(ctx, req.Username); err == nil {
		return nil, errs.Validation("用户名 %s 已被注册", req.Username)
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	supplier := &entity.Supplier{
		ID:                 uuid.New().String()[:32],
		Username:           req.Username,
		Email:              req.Email,
		PasswordHash:       string(hash),
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Phone:              req.Phone,
		Address:            req.Address,
		RegistrationNumber: req.RegistrationNumber,
		Role:               entity.RoleSupplier,
		Status:             entity.SupplierStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		return nil, err
	}

	return supplier, nil
}

// LoginReq 登录请求
type LoginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 用户名密码登录
func (s *AuthService) Login(ctx context.Context, req LoginReq) (*entity.Supplier, *TokenPair, error) {
	supplier, err := s.supplierRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, errs.Permission("用户名或密码错误")
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(supplier.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, errs.Permission("用户名或密码错误")
	}

	if supplier.Status != entity.SupplierStatusActive {
		return nil, nil, errs.Permission("账号已停用")
	}

	pair, err := s.generateTokenPair(ctx, supplier)
	if err != nil {
		return nil, nil, err
	}

	return supplier, pair, nil
}

// generateTokenPair 生成Token对
func (s *AuthService) generateTokenPair(ctx context.Context, supplier *entity.Supplier) (*TokenPair, error) {
	now := time.Now()

	// Access Token
	accessClaims := jwt.MapClaims{
		"sub":      supplier.ID,
		"uid":      supplier.ID,
		"username": supplier.Username,
		"email":    supplier.Email,
		"role":     supplier.Role,
		"iss":      s.cfg.JWT.Issuer,
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.JWT.AccessTokenExpire).Unix(),
		"jti":      uuid.New().String(),
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, err
	}

	// Refresh Token
	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub":  supplier.ID,
		"type": "refresh",
		"iss":  s.cfg.JWT.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWT.RefreshTokenExpire).Unix(),
		"jti":  refreshJti,
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, err
	}

	// 存储Refresh Token到Redis（未配置Redis时跳过，刷新功能不可用）
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, "token:refresh:"+refreshJti, supplier.ID, s.cfg.JWT.RefreshTokenExpire).Err(); err != nil {
			return nil, errs.Storage("存储refresh token失败", err)
		}
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
	}, nil
}

// RefreshToken 刷新Token（旧refresh token作废，一次一换）
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	token, err := jwt.Parse(refreshTokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, errs.Permission("refresh token无效")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errs.Permission("refresh token无效")
	}

	if claims["type"] != "refresh" {
		return nil, errs.Permission("token类型错误")
	}

	jti, _ := claims["jti"].(string)
	if s.rdb == nil {
		return nil, errs.Permission("refresh token已失效")
	}
	supplierID, err := s.rdb.Get(ctx, "token:refresh:"+jti).Result()
	if err != nil {
		return nil, errs.Permission("refresh token已失效")
	}

	supplier, err := s.supplierRepo.FindByID(ctx, supplierID)
	if err != nil {
		return nil, errs.Permission("账号不存在")
	}

	// 删除旧的Refresh Token
	s.rdb.Del(ctx, "token:refresh:"+jti)

	return s.generateTokenPair(ctx, supplier)
}

// Logout 登出，作废refresh token
func (s *AuthService) Logout(ctx context.Context, refreshTokenString string) error {
	if s.rdb == nil || refreshTokenString == "" {
		return nil
	}

	token, err := jwt.Parse(refreshTokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if jti, ok := claims["jti"].(string); ok {
			s.rdb.Del(ctx, "token:refresh:"+jti)
		}
	}

	return nil
}

// GetCurrentUser 获取当前用户
func (s *AuthService) GetCurrentUser(ctx context.Context, supplierID string) (*entity.Supplier, error) {
	supplier, err := s.supplierRepo.FindByID(ctx, supplierID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("账号不存在")
		}
		return nil, err
	}
	return supplier, nil
}
