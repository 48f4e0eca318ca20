package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"mall/internal/cache"
	"mall/internal/config"
	"mall/internal/consumer"
	"mall/internal/database"
	"mall/internal/event"
	"mall/internal/monitor"
	"mall/internal/redis"
	"mall/internal/repository"
	"mall/internal/scheduler"
	"mall/internal/service/bargain"
	"mall/internal/service/flashsale"
	"mall/internal/service/inventory"
	"mall/internal/service/order"
	"mall/internal/service/team"
	"mall/internal/utils"
	"mall/pkg/log"
	"mall/pkg/queue"
	"mall/pkg/snowflake"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	nodeID := flag.Int64("node", 1, "snowflake node id")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		log.WithFields(log.Fields{
			"error": err.Error(),
		}).Fatal("Failed to load config")
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.WithError(err).Fatal("Failed to initialize logger")
	}

	// only the log level is applied live; everything else needs a restart
	loader.Watch(func(next *config.Config) {
		if err := log.SetLevel(next.Log.Level); err != nil {
			log.WithError(err).Warn("Ignoring invalid log level from reloaded config")
			return
		}
		log.WithField("level", next.Log.Level).Info("Config reloaded")
	}, func(err error) {
		log.WithError(err).Warn("Config reload rejected")
	})

	// database
	db, err := database.New(cfg.Database)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err.Error(),
		}).Fatal("Failed to initialize database")
	}
	defer database.Close(db)
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			log.WithError(err).Fatal("Failed to migrate database")
		}
	}

	// redis is optional: without it the cache is local only, rate limits are
	// per instance and every instance runs the sweeper
	var (
		redisClient *goredis.Client
		cmd         goredis.Cmdable
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(cfg.Redis)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err.Error(),
			}).Fatal("Failed to initialize redis")
		}
		defer redisClient.Close()
		cmd = redisClient
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	metrics := monitor.NewMetricsCollector(cfg.Metrics.Namespace)
	if sqlDB, err := db.DB(); err == nil {
		if err := metrics.RegisterDB(sqlDB, cfg.Database.DBName); err != nil {
			log.WithError(err).Warn("Failed to register database metrics")
		}
	}

	tracer, err := monitor.NewTracer(cfg.Tracing, config.Env())
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracer")
	}

	store, err := cache.New(cfg.Cache, cmd, metrics)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize cache")
	}

	idGenerator, err := snowflake.NewIDGenerator(*nodeID)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err.Error(),
		}).Fatal("Failed to create ID generator")
	}

	messageQueue := queue.NewMemoryQueue(&queue.MemoryQueueConfig{
		BufferSize: cfg.Promotion.EventBufferSize,
		Timeout:    cfg.Promotion.EventPublishAfter,
		OnError: func(topic string, err error) {
			log.WithFields(log.Fields{
				"topic": topic,
				"error": err.Error(),
			}).Warn("Event handler failed")
		},
	})
	publisher := event.NewQueuePublisher(messageQueue, metrics)

	// repositories
	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)

	// services
	inventoryService := inventory.NewInventoryService(db, inventoryRepo, metrics)
	teamService := team.NewTeamService(db, repository.NewTeamRepository(db), productRepo, inventoryService, publisher, metrics, cfg.Promotion)
	bargainService := bargain.NewBargainService(db, repository.NewBargainRepository(db), productRepo, inventoryService, publisher, metrics, cfg.Promotion)
	flashSaleService := flashsale.NewFlashSaleService(db, repository.NewFlashSaleRepository(db), productRepo, inventoryService, store, metrics, cfg.Promotion)
	orderService := order.NewOrderService(order.Deps{
		DB:        db,
		Orders:    repository.NewOrderRepository(db),
		Users:     repository.NewUserRepository(db),
		Products:  productRepo,
		Inventory: inventoryService,
		Teams:     teamService,
		Bargains:  bargainService,
		FlashSale: flashSaleService,
		Publisher: publisher,
		Metrics:   metrics,
		IDs:       idGenerator,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifications := consumer.NewNotificationConsumer(messageQueue, metrics)
	if err := notifications.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start notification consumer")
	}

	var sweeper *scheduler.Sweeper
	if cfg.Promotion.SweepEnabled {
		sweeper = scheduler.NewSweeper(cmd, teamService, orderService, bargainService, metrics, scheduler.Config{
			Interval: cfg.Promotion.SweepInterval,
			LockTTL:  cfg.Promotion.SweepLockTTL,
		})
		sweeper.Start(ctx)
	}

	router := setupRouter(cfg, routerDeps{
		db:        db,
		redis:     redisClient,
		cmd:       cmd,
		metrics:   metrics,
		tracer:    tracer,
		jwt:       utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, cfg.Security.JWT.Expire),
		orders:    orderService,
		teams:     teamService,
		bargains:  bargainService,
		flashSale: flashSaleService,
		inventory: inventoryService,
	})

	server := &http.Server{
		Addr:           cfg.Server.GetAddr(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.WithFields(log.Fields{
			"addr": server.Addr,
			"mode": cfg.Server.Mode,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithFields(log.Fields{
				"error": err.Error(),
			}).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Server forced to shutdown")
	}

	// stop producers of work before the queue they publish to
	if sweeper != nil {
		sweeper.Stop()
	}
	notifications.Stop()
	if err := messageQueue.Close(); err != nil {
		log.WithError(err).Warn("Failed to close message queue")
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to flush traces")
	}

	log.Info("Server exited")
}
