// Package main provides the main entry point for the Revly reputation backend
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/revlyhq/revly-backend/app/handlers"
	"github.com/revlyhq/revly-backend/app/router"
	"github.com/revlyhq/revly-backend/app/scheduler"
	"github.com/revlyhq/revly-backend/app/services"
	businessflow "github.com/revlyhq/revly-backend/business_flow"
	"github.com/revlyhq/revly-backend/config"
	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/repository"
)

// Application represents the main application structure
type Application struct {
	router   router.Router
	config   *config.ProductionConfig
	server   *fiber.App
	sessions *businessflow.SessionManager

	stopFuncs []func()
}

func main() {
	log.Println("Starting Revly backend...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers before closing the listener
	app.sessions.Shutdown()
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Customer{},
		&models.FeedbackEntry{},
		&models.ActivityLog{},
		&models.SyncCursor{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s", cfg.RedisURL)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity
// issues early. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeDeliveryService picks the delivery backend based on configuration
func initializeDeliveryService(cfg *config.ProductionConfig) services.DeliveryService {
	if cfg.Delivery.ProviderDomain == "mock" {
		return services.NewMockDeliveryService()
	}
	return services.NewDeliveryService(&cfg.Delivery)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	feedbackRepo := repository.NewFeedbackEntryRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	cursorRepo := repository.NewSyncCursorRepository(db)

	// Initialize services
	deliveryService := initializeDeliveryService(cfg)
	billingService := services.NewBillingService(&cfg.Billing)
	storeClient := services.NewFeedbackStoreClient(&cfg.FeedbackStore)
	eventBus := services.NewEventBus()

	linkService, err := services.NewLinkTokenService(cfg.Links.SecretKey, cfg.Links.TTL, cfg.Links.Issuer, cfg.Links.Domain)
	if err != nil {
		return nil, err
	}

	var profileCache services.ProfileCache
	if rc != nil {
		profileCache = services.NewRedisProfileCache(rc)
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	} else {
		profileCache = services.NewMemoryProfileCache()
	}

	creditGate := businessflow.NewCreditGate(billingService, profileCache, cfg.Cache.ProfileTTL, log.Default())

	// Session manager with a poller per tenant session
	deps := businessflow.SessionDeps{
		DB:        db,
		Customers: customerRepo,
		Feedback:  feedbackRepo,
		Activity:  activityRepo,
		Cursors:   cursorRepo,
		Delivery:  deliveryService,
		Gate:      creditGate,
		Store:     storeClient,
		Links:     linkService,
		Events:    eventBus,
		Queue: businessflow.QueueSettings{
			BatchSize:  cfg.Queue.BatchSize,
			ItemDelay:  cfg.Queue.ItemDelay,
			BatchDelay: cfg.Queue.BatchDelay,
			MaxPending: cfg.Queue.MaxPending,
		},
	}
	sessions := businessflow.NewSessionManager(deps, func(session *businessflow.Session) func(ctx context.Context) {
		poller := scheduler.NewFeedbackPoller(session, storeClient, cfg.Poller)
		return poller.Run
	})

	// Initialize handlers
	feedbackHandler := handlers.NewFeedbackHandler(sessions)
	customerHandler := handlers.NewCustomerHandler(sessions)
	activityHandler := handlers.NewActivityHandler(activityRepo)
	reviewLinkHandler := handlers.NewReviewLinkHandler(sessions, linkService, cfg.Links.ReviewURL)

	appRouter := router.NewFiberRouter(cfg, feedbackHandler, customerHandler, activityHandler, reviewLinkHandler)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		sessions:  sessions,
		stopFuncs: stopFuncs,
	}, nil
}
