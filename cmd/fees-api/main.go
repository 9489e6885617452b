package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/smartcampusmng/campus-fees-api/api/swagger"
	"github.com/smartcampusmng/campus-fees-api/internal/handler"
	"github.com/smartcampusmng/campus-fees-api/internal/middleware"
	"github.com/smartcampusmng/campus-fees-api/internal/models"
	"github.com/smartcampusmng/campus-fees-api/internal/repository"
	"github.com/smartcampusmng/campus-fees-api/internal/service"
	"github.com/smartcampusmng/campus-fees-api/pkg/cache"
	"github.com/smartcampusmng/campus-fees-api/pkg/config"
	"github.com/smartcampusmng/campus-fees-api/pkg/database"
	"github.com/smartcampusmng/campus-fees-api/pkg/logger"
	corsmiddleware "github.com/smartcampusmng/campus-fees-api/pkg/middleware/cors"
	reqidmiddleware "github.com/smartcampusmng/campus-fees-api/pkg/middleware/requestid"
)

// @title Campus Fees API
// @version 1.0.0
// @description Student fee obligations, payments and alerting
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	cacheEnabled := true
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		cacheEnabled = false
	}

	var cacheSvc *service.CacheService
	if cacheEnabled {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Fees.CacheTTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Fees.CacheTTL, logr, false)
	}

	validate := validator.New()

	feeTypeRepo := repository.NewFeeTypeRepository(db)
	studentFeeRepo := repository.NewStudentFeeRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	alertRepo := repository.NewFeeAlertRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	tokenSvc := service.NewTokenService(cfg.JWT.Secret)
	feeTypeSvc := service.NewFeeTypeService(feeTypeRepo, cacheSvc, cfg.Fees.CacheTTL, logr).WithMetrics(metricsSvc)
	studentFeeSvc := service.NewStudentFeeService(studentFeeRepo, feeTypeRepo, studentRepo, logr).WithMetrics(metricsSvc)
	paymentSvc := service.NewPaymentService(paymentRepo, studentFeeRepo, studentRepo, validate, logr, cfg.Fees.ReceiptMaxRetries).WithMetrics(metricsSvc)
	alertSvc := service.NewFeeAlertService(alertRepo, studentFeeRepo, validate, logr, cfg.Alerts.MaxBatchSize).WithMetrics(metricsSvc)
	exportSvc := service.NewExportService(paymentRepo, studentFeeRepo, service.ExportConfig{
		Enabled: cfg.Exports.Enabled,
		MaxRows: cfg.Exports.MaxRows,
	}, logr, nil, nil)

	feeTypeHandler := handler.NewFeeTypeHandler(feeTypeSvc)
	studentFeeHandler := handler.NewStudentFeeHandler(studentFeeSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	alertHandler := handler.NewFeeAlertHandler(alertSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	selfOrStaff := middleware.RBAC(string(models.RoleAdmin), string(models.RoleStaff), "SELF")

	api.GET("/fee-types", feeTypeHandler.List)
	api.GET("/fee-types/:id", feeTypeHandler.Get)
	api.DELETE("/fee-types/cache", admin, feeTypeHandler.InvalidateCache)

	api.GET("/students/:studentId/fees", selfOrStaff, studentFeeHandler.ListForStudent)
	api.GET("/students/:studentId/fees/pending", selfOrStaff, studentFeeHandler.ListPendingForStudent)
	api.POST("/students/:studentId/fees/initial", staff, studentFeeHandler.CreateInitial)
	api.GET("/students/:studentId/payments", selfOrStaff, paymentHandler.ListForStudent)
	api.GET("/fees/pending", staff, studentFeeHandler.ListPending)
	api.GET("/fees/pending/export", staff, exportHandler.OutstandingFees)

	api.POST("/payments", staff, paymentHandler.Create)
	api.GET("/payments", staff, paymentHandler.List)
	api.GET("/payments/export", staff, exportHandler.PaymentRegister)

	api.POST("/alerts", staff, alertHandler.Create)
	api.POST("/alerts/batch", staff, alertHandler.CreateBatch)
	api.GET("/alerts", staff, alertHandler.List)
	api.GET("/alerts/exists", staff, alertHandler.Exists)
	api.DELETE("/alerts/:id", staff, alertHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
