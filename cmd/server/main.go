package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwaweather/backend/internal/config"
	"github.com/cwaweather/backend/internal/delivery/http"
	"github.com/cwaweather/backend/internal/notify"
	"github.com/cwaweather/backend/internal/repository/postgres"
	"github.com/cwaweather/backend/internal/scheduler"
	"github.com/cwaweather/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Database connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool := connect(ctx, cfg.DatabaseURL)
	if pool != nil {
		defer pool.Close()
	}

	// Dependency Injection: Repositories
	var repo service.BatchRepository
	if pool != nil {
		repo = postgres.NewPostgresRepository(pool)
	} else {
		repo = postgres.NewMemoryRepository()
	}
	if err := repo.Init(ctx); err != nil {
		log.Fatalf("Failed to initialise weather table: %v", err)
	}

	// Dependency Injection: Services
	dashboardSvc := service.NewDashboardService(repo, cfg.TrendBatches)

	var (
		pipeline *service.Pipeline
		manual   *service.Pipeline
		notifier notify.Notifier = notify.Noop{}
	)
	if cfg.MQTTBrokerURL != "" {
		n, err := notify.NewMQTTNotifier(notify.MQTTOptions{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
		})
		if err != nil {
			log.Printf("Warning: MQTT notifier disabled: %v", err)
		} else {
			notifier = n
			log.Printf("Publishing batches to %s on %s", cfg.MQTTTopic, cfg.MQTTBrokerURL)
		}
	}
	defer notifier.Close()

	if cfg.CWAAPIKey != "" {
		client := service.NewCWAClient(service.CWAClientConfig{
			APIKey:      cfg.CWAAPIKey,
			BaseURL:     cfg.CWABaseURL,
			DatasetID:   cfg.CWADatasetID,
			Timeout:     cfg.CWATimeout,
			InsecureTLS: cfg.CWAInsecureTLS,
		})
		pipeline = service.NewPipeline(repo, client, service.NewBatchIDGenerator(), notifier)
		manual = pipeline.WithFetcher(service.NewRateLimitedFetcher(client, cfg.RefreshRPS, cfg.RefreshBurst))
	} else {
		log.Println("CWA_API_KEY not set, fetching is disabled")
	}

	var sched *scheduler.Scheduler
	if pipeline != nil && cfg.FetchInterval > 0 {
		sched = scheduler.New(pipeline, cfg.FetchInterval, cfg.CWATimeout+30*time.Second)
		if err := sched.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "CWA Weather API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.CWATimeout + 10*time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Routes
	http.SetupRoutes(app, dashboardSvc, manual)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if sched != nil {
		sched.Stop()
	}
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited gracefully")
}

// connect returns nil when PostgreSQL is not configured or unreachable; the
// server then keeps batches in memory
func connect(ctx context.Context, databaseURL string) *pgxpool.Pool {
	if databaseURL == "" {
		log.Println("DATABASE_URL not set, running with in-memory storage")
		return nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Printf("Warning: Could not connect to database: %v", err)
		log.Println("Running with in-memory storage")
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		log.Printf("Warning: Database ping failed: %v", err)
		log.Println("Running with in-memory storage")
		pool.Close()
		return nil
	}

	log.Println("Connected to PostgreSQL")
	return pool
}
