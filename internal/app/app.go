// Package app 组装进程依赖：数据库、迁移、Redis、消息队列、链路追踪与业务服务。
package app

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"library-lending/config"
	"library-lending/internal/report"
	"library-lending/internal/repository"
	"library-lending/internal/scheduler"
	"library-lending/internal/service"
	"library-lending/pkg/clock"
	"library-lending/pkg/database"
	"library-lending/pkg/mq"
	"library-lending/pkg/obs"
	"library-lending/pkg/redis"
)

// App 进程级依赖
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	SQL      *sql.DB
	Redis    *redis.Client // 连接失败时为 nil
	MQ       *mq.Publisher // 连接失败时为 nil
	Service  *service.Service
	Reporter *report.Reporter

	shutdownTracer obs.ShutdownFunc
}

// Open 按顺序初始化依赖；Redis 与 RabbitMQ 不可用时降级运行
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	shutdown, err := obs.InitTracer(ctx, &cfg.Tracing)
	if err != nil {
		return nil, err
	}
	a.shutdownTracer = shutdown

	// 1. 数据库与迁移
	a.DB, err = database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.SQL, err = a.DB.DB()
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := database.RunMigrations(a.SQL, logger); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("数据库连接成功")

	// 2. Redis（扫描任务分布式锁）
	a.Redis, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，扫描任务将不加锁执行", zap.Error(err))
		a.Redis = nil
	}

	// 3. RabbitMQ（逾期通知投递）
	var publisher service.NoticePublisher
	a.MQ, err = mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		logger.Warn("RabbitMQ 连接失败，逾期通知仅写入数据库", zap.Error(err))
		a.MQ = nil
	} else {
		publisher = a.MQ
	}

	// 4. 依赖注入: Store → Service
	clk := clock.System()
	store := repository.NewStore(a.DB, cfg.Lending.LockTimeout)
	a.Service = service.NewService(&cfg.Lending, store, clk, publisher, logger)
	a.Reporter = report.NewReporter(a.SQL, clk, cfg.Lending.GraceDays, logger)

	return a, nil
}

// Scheduler 基于配置创建定时扫描调度器
func (a *App) Scheduler() *scheduler.Scheduler {
	var locker scheduler.Locker
	if a.Redis != nil {
		locker = a.Redis
	}
	s := scheduler.New(locker, a.Config.Sweep.LockTTL, a.Logger)
	for _, job := range scheduler.LendingJobs(a.Service, &a.Config.Sweep, a.Config.Lending.SuspensionThresholdCents) {
		s.Add(job)
	}
	return s
}

// Close 逆序释放资源
func (a *App) Close() {
	if a.MQ != nil {
		if err := a.MQ.Close(); err != nil {
			a.Logger.Warn("关闭 RabbitMQ 连接失败", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("关闭 Redis 连接失败", zap.Error(err))
		}
	}
	if a.SQL != nil {
		if err := a.SQL.Close(); err != nil {
			a.Logger.Warn("关闭数据库连接失败", zap.Error(err))
		}
	}
	if a.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracer(ctx); err != nil {
			a.Logger.Warn("关闭链路追踪失败", zap.Error(err))
		}
	}
}
