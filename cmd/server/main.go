package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/leopark123/ideahub/internal/cache"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/config"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/event"
	"github.com/leopark123/ideahub/internal/handler"
	"github.com/leopark123/ideahub/internal/kafka"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/leopark123/ideahub/internal/logic"
	"github.com/leopark123/ideahub/internal/money"
	"github.com/leopark123/ideahub/internal/payment"
	"github.com/leopark123/ideahub/internal/repository"
	"github.com/leopark123/ideahub/internal/router"
	"github.com/leopark123/ideahub/internal/task"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("Server exited: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	currency, err := money.ParseCurrency(cfg.Ledger.DefaultCurrency)
	if err != nil {
		return fmt.Errorf("ledger.default_currency: %w", err)
	}

	// 初始化存储
	store, directory, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	dispatcher, err := event.NewDispatcher(cfg.Event.PoolSize)
	if err != nil {
		return err
	}
	defer dispatcher.Close()
	dispatcher.Register(event.LogProcessor{})

	// 退款默认线下处理，启用 Kafka 时交给支付服务
	var gateway logic.PaymentGateway = payment.OfflineGateway{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()
		dispatcher.Register(kafka.NewEventSink(producer, cfg.Kafka.EventsTopic))
		gateway = kafka.NewRefundGateway(producer, cfg.Kafka.RefundTopic)
	}

	var (
		statsCache logic.StatsCache
		limiter    *handler.RateLimiter
	)
	if cfg.Redis.Enabled {
		client, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		sc := cache.NewStatsCache(client, cfg.Redis.StatsTTL)
		statsCache = sc
		dispatcher.Register(cache.NewInvalidator(sc))
		limiter = handler.NewRateLimiter(client, cfg.RateLimit)
	} else if cfg.RateLimit.Enabled {
		logger.Warn("Rate limiting requires redis, write endpoints are not limited")
	}

	clk := clock.System{}
	opts := logic.Options{
		DefaultCurrency:  currency,
		ConflictRetries:  cfg.Ledger.ConflictRetries,
		AutoCorrectDrift: cfg.Ledger.AutoCorrectDrift,
	}
	coordinator := logic.NewSettlementCoordinator(store, clk, dispatcher, opts)
	campaigns := logic.NewCampaignLogic(store, clk, directory, coordinator, statsCache, opts)
	investments := logic.NewInvestmentLogic(store, clk, directory, coordinator)
	refunds := logic.NewRefundLogic(store, clk, gateway, logic.RefundOptions{
		InitialBackoff: cfg.Refund.InitialBackoff,
		MaxBackoff:     cfg.Refund.MaxBackoff,
		Multiplier:     cfg.Refund.Multiplier,
		StuckAfter:     cfg.Refund.StuckAfter,
		BatchSize:      cfg.Refund.BatchSize,
		Workers:        cfg.Refund.Workers,
	})
	relay := logic.NewEventRelay(store, clk, dispatcher, cfg.Event.OutboxMinAge, cfg.Task.BatchSize)

	// 启动定时任务
	manager, err := task.NewManager()
	if err != nil {
		return err
	}
	dispatcher.Register(task.NewExpiryTimer(manager.Scheduler(), coordinator, clk), domain.EventCampaignActivated)
	batch := cfg.Task.BatchSize
	if err := manager.Register(
		task.NewCampaignActivationJob(coordinator, cfg.Task.Activation, batch),
		task.NewCampaignExpiryJob(coordinator, cfg.Task.Expiry, batch),
		task.NewPaidSettlementJob(coordinator, cfg.Task.PaidSweep, cfg.Task.PaidSweepIdle, batch),
		task.NewLedgerReconcileJob(coordinator, cfg.Task.Reconcile, cfg.Task.ClosedWithin, batch),
		task.NewRefundDispatchJob(refunds, cfg.Task.Refund),
		task.NewEventOutboxJob(relay, cfg.Task.Outbox),
	); err != nil {
		return err
	}
	manager.Start()
	defer manager.Stop()

	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(cfg.Kafka)
		if err != nil {
			return err
		}
		consumer.Handle(cfg.Kafka.PaidTopic, kafka.PaymentHandler(investments))
		consumer.Handle(cfg.Kafka.RefundAckTopic, kafka.RefundSettledHandler(refunds))
		consumer.Start(ctx)
		defer consumer.Close()
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(cfg.Auth, router.Services{
		Campaigns:   campaigns,
		Investments: investments,
		Refunds:     refunds,
		Coordinator: coordinator,
		Limiter:     limiter,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// openStore 按 database.driver 选择存储和项目目录
func openStore(cfg *config.Config) (repository.Store, logic.ProjectDirectory, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store for development only: writes are serialized across campaigns and data is lost on restart")
		dir, err := repository.NewStaticProjectDirectory(cfg.Directory.Projects)
		if err != nil {
			return nil, nil, nil, err
		}
		return repository.NewMemoryStore(), dir, func() {}, nil
	}

	// 初始化数据库
	db, err := repository.Init(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if cfg.Database.Migrate {
		if err := repository.RunMigrations(cfg.Database.URL()); err != nil {
			return nil, nil, nil, err
		}
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repository.NewGormStore(db), repository.NewGormProjectDirectory(db), closeDB, nil
}
