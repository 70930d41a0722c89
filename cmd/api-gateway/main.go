package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dumeirei/lawconsult-backend/internal/common/cache"
	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/common/database"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/common/tracing"
	"github.com/dumeirei/lawconsult-backend/internal/models"
)

// @title 律师结算服务 API
// @version 1.0
// @description 律师收入结算、收款账户与提现审核接口
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()

	log.Info("Starting lawyer settlement service",
		zap.String("version", "1.0.0"),
		zap.String("env", cfg.Server.Mode),
	)

	// 初始化链路追踪
	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, models.SettlementModels()...); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// 初始化 Redis 连接，不可用时降级为数据库行锁
	var redisClient redis.UniversalClient
	if client, err := cache.Init(&cfg.Redis); err != nil {
		log.Warn("Redis unavailable, distributed locks disabled", zap.Error(err))
	} else {
		redisClient = client
		defer client.Close()
		log.Info("Redis connected successfully")
	}

	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	app, err := newApplication(cfg, log, db, redisClient, metrics.Init(cfg.Metrics.Namespace))
	if err != nil {
		log.Fatal("Failed to init application", zap.Error(err))
	}

	engine := gin.New()
	setupRouter(engine, app)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 后台任务
	app.scheduler.Start()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if app.consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.consumer.Run(bgCtx); err != nil {
				log.Error("Consultation paid consumer exited", zap.Error(err))
			}
		}()
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	app.scheduler.Stop()
	stopBackground()
	wg.Wait()
	if app.consumer != nil {
		_ = app.consumer.Close()
	}
	if app.publisher != nil {
		_ = app.publisher.Close()
	}

	if err := tracer.Shutdown(ctx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}

	if err := database.Close(); err != nil {
		log.Warn("Database close failed", zap.Error(err))
	}

	log.Info("Server exited")
}
