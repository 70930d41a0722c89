// Package main 是应用程序入口
package main

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/common/cache"
	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/common/crypto"
	"github.com/dumeirei/lawconsult-backend/internal/common/jwt"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/common/response"
	"github.com/dumeirei/lawconsult-backend/internal/consumer"
	settlementHandler "github.com/dumeirei/lawconsult-backend/internal/handler/settlement"
	"github.com/dumeirei/lawconsult-backend/internal/middleware"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
	"github.com/dumeirei/lawconsult-backend/internal/scheduler"
	settlementService "github.com/dumeirei/lawconsult-backend/internal/service/settlement"
)

// 可以执行资金操作的管理员角色
var fundOperatorRoles = []string{"super_admin", "finance"}

const (
	withdrawRateLimit  = 10
	withdrawRateWindow = time.Minute
)

// application 组装好的服务依赖
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	redis   redis.UniversalClient
	metrics *metrics.Metrics
	jwt     *jwt.Manager

	lawyerH *settlementHandler.LawyerHandler
	adminH  *settlementHandler.AdminHandler

	scheduler *scheduler.Scheduler
	consumer  *consumer.ConsultationPaidConsumer
	publisher *consumer.KafkaPublisher
}

// newApplication 初始化仓储、服务、处理器和后台任务
// redisClient 为 nil 时分布式锁与限流退化为放行
func newApplication(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	m *metrics.Metrics,
) (*application, error) {
	codec, err := crypto.NewSecretCodec(cfg.Settlement.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("init secret codec: %w", err)
	}

	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.JWT.Secret,
		AccessExpireTime: cfg.JWT.AccessTokenDuration(),
		Issuer:           cfg.JWT.Issuer,
	})

	// 初始化仓储
	lawyerRepo := repository.NewLawyerRepository(db)
	walletRepo := repository.NewLawyerWalletRepository(db)
	incomeRepo := repository.NewLawyerIncomeRecordRepository(db)
	bankRepo := repository.NewLawyerBankAccountRepository(db)
	withdrawalRepo := repository.NewWithdrawalRequestRepository(db)

	locker := cache.NewLocker(redisClient)

	// 初始化服务
	lawyerSvc := settlementService.NewLawyerService(lawyerRepo)
	walletSvc := settlementService.NewWalletService(db, walletRepo)
	incomeSvc := settlementService.NewIncomeService(db, &cfg.Settlement, incomeRepo, lawyerRepo, walletSvc, m)
	bankSvc := settlementService.NewBankAccountService(db, bankRepo, walletSvc, codec)
	withdrawalSvc := settlementService.NewWithdrawalService(db, &cfg.Settlement, withdrawalRepo, bankRepo, incomeRepo,
		walletSvc, codec, locker, m)
	reconcileSvc := settlementService.NewReconcileService(db, walletRepo, incomeRepo, m)

	app := &application{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		metrics: m,
		jwt:     jwtManager,
		lawyerH: settlementHandler.NewLawyerHandler(lawyerSvc, walletSvc, incomeSvc, bankSvc, withdrawalSvc),
		adminH:  settlementHandler.NewAdminHandler(withdrawalSvc, incomeSvc, reconcileSvc),
	}

	// Kafka 收发
	if cfg.Kafka.Enabled {
		app.publisher = consumer.NewKafkaPublisher(&cfg.Kafka, m)
		withdrawalSvc.SetPublisher(app.publisher)
		app.consumer = consumer.NewConsultationPaidConsumer(&cfg.Kafka, incomeSvc, m)
	} else {
		withdrawalSvc.SetPublisher(consumer.NopPublisher{})
	}

	// 定时任务
	app.scheduler = scheduler.NewScheduler(locker, m)
	tasks := scheduler.NewTaskHandler(incomeSvc, reconcileSvc)
	if err := scheduler.RegisterTasks(app.scheduler, tasks, &cfg.Settlement); err != nil {
		return nil, fmt.Errorf("register scheduler tasks: %w", err)
	}

	return app, nil
}

// setupRouter 设置路由
func setupRouter(r *gin.Engine, app *application) {
	// 全局中间件
	r.Use(middleware.Recovery(app.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.CORS(&app.cfg.CORS))
	if app.cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(&middleware.TracingConfig{
			ServiceName: app.cfg.Tracing.ServiceName,
			SkipPaths:   []string{"/health", "/ready", app.cfg.Metrics.Path},
		}))
	}
	r.Use(middleware.AccessLog(app.logger))
	if app.cfg.Metrics.Enabled && app.metrics != nil {
		r.Use(app.metrics.Middleware())
		r.GET(app.cfg.Metrics.Path, metrics.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(app.db, app.redis))

	// Swagger 文档
	if !app.cfg.IsRelease() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	{
		// 律师端接口
		lawyer := v1.Group("")
		lawyer.Use(middleware.UserAuth(app.jwt), middleware.NoCache())
		app.lawyerH.RegisterRoutes(lawyer,
			middleware.UserRateLimit(app.redis, "withdraw", withdrawRateLimit, withdrawRateWindow))

		// 管理端接口
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(app.jwt), middleware.NoCache(), middleware.AuditLog(app.logger))
		app.adminH.RegisterRoutes(admin, middleware.RequireRole(fundOperatorRoles...))
	}

	// 404 处理
	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "接口不存在")
	})
}
