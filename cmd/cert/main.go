package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/handler"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/bitfantasy/nimo-cert/internal/cert/service"
	"github.com/bitfantasy/nimo-cert/internal/cert/sse"
	"github.com/bitfantasy/nimo-cert/internal/config"
	"github.com/bitfantasy/nimo-cert/internal/middleware"
	"github.com/facebookgo/clock"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-cert service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.Supplier{},
		&entity.Product{},
		&entity.ProductFile{},
		&entity.Test{},
		&entity.TestHistory{},
		&entity.Report{},
		&entity.Notification{},
		&entity.AuditLog{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis（未配置时禁用refresh token功能）
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = initRedis(cfg.Redis)
	} else {
		zapLogger.Warn("Redis not configured, refresh tokens disabled")
	}

	// 初始化MinIO（未配置时附件/报告对象不入库）
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			zapLogger.Fatal("Failed to init MinIO client", zap.Error(err))
		}
	} else {
		zapLogger.Warn("MinIO not configured, object storage disabled")
	}

	// 初始化依赖
	clk := clock.New()
	hub := sse.NewHub()
	repos := repository.NewRepositories(db)

	notificationSvc := service.NewNotificationService(repos.Notification, hub, clk)
	authSvc := service.NewAuthService(repos.Supplier, rdb, cfg)
	supplierSvc := service.NewSupplierService(repos.Supplier, clk)
	productSvc := service.NewProductService(repos.Product, repos.Supplier, notificationSvc, clk)
	fileSvc := service.NewProductFileService(repos.ProductFile, repos.Product, clk)
	testSvc := service.NewTestService(repos.Test, repos.TestHistory, repos.Product, notificationSvc, clk)
	reportSvc := service.NewReportService(repos.Report, repos.Test, repos.Product, cfg.Report, clk)

	if minioClient != nil {
		fileSvc.SetMinioClient(minioClient, cfg.MinIO.Bucket)
		reportSvc.SetMinioClient(minioClient, cfg.MinIO.Bucket)
	}

	// 补排停机期间滞留的报告
	if err := reportSvc.RecoverPending(context.Background()); err != nil {
		zapLogger.Warn("Failed to recover pending reports", zap.Error(err))
	}

	handlers := handler.NewHandlers(
		authSvc, supplierSvc, productSvc, fileSvc, testSvc, reportSvc,
		notificationSvc, repos.AuditLog, handler.NewSSEHandler(hub),
	)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, repos, cfg, db, zapLogger)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	// 停掉未触发的报告定时器，滞留的generating下次启动时补排
	reportSvc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, repos *repository.Repositories, cfg *config.Config, db *gorm.DB, zapLogger *zap.Logger) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// SSE 实时推送（需要认证，支持 query param token）
		sseGroup := v1.Group("/sse")
		sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			sseGroup.GET("/events", h.SSE.Stream)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		authorized.Use(middleware.Audit(repos.AuditLog, zapLogger))
		{
			// 当前用户
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 供应商
			suppliers := authorized.Group("/suppliers")
			{
				suppliers.GET("", h.Supplier.List)
				suppliers.GET("/:id", h.Supplier.Get)
				suppliers.PUT("/:id", h.Supplier.Update)
			}

			// 产品
			products := authorized.Group("/products")
			{
				products.POST("", h.Product.Create)
				products.GET("", h.Product.List)
				products.GET("/:id", h.Product.Get)
				products.PUT("/:id", h.Product.Update)
				products.POST("/:id/submit", h.Product.Submit)
				products.PUT("/:id/status", h.Product.UpdateStatus)
				products.GET("/:id/tests", h.Test.ProductTests)
				products.GET("/:id/reports", h.Report.ProductReports)
				products.POST("/:id/files", h.ProductFile.Upload)
				products.GET("/:id/files", h.ProductFile.List)
			}

			// 附件下载
			authorized.GET("/files/:id/download", h.ProductFile.Download)

			// 检测任务
			tests := authorized.Group("/tests")
			{
				tests.POST("", h.Test.Create)
				tests.GET("", h.Test.List)
				tests.GET("/:id", h.Test.Get)
				tests.PUT("/:id", h.Test.Update)
				tests.POST("/:id/start", h.Test.Start)
				tests.POST("/:id/complete", h.Test.Complete)
				tests.GET("/:id/history", h.Test.History)
			}

			// 检测报告
			reports := authorized.Group("/reports")
			{
				reports.POST("", h.Report.Create)
				reports.GET("", h.Report.List)
				reports.GET("/:id/status", h.Report.Status)
				reports.GET("/:id/download", h.Report.Download)
			}

			// 通知
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.POST("/:id/read", h.Notification.MarkRead)
			}

			// 审计日志（仅管理员）
			auditLogs := authorized.Group("/audit-logs")
			auditLogs.Use(middleware.RequireRole(entity.RoleAdmin))
			{
				auditLogs.GET("", h.AuditLog.List)
			}
		}
	}
}
