package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askarbek-dev/kitchenline/internal/adapter/amqp"
	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/adapter/memory"
	"github.com/askarbek-dev/kitchenline/internal/adapter/postgres"
	"github.com/askarbek-dev/kitchenline/internal/adapter/rabbitmq"
	"github.com/askarbek-dev/kitchenline/internal/app/events"
	"github.com/askarbek-dev/kitchenline/internal/app/lifecycle"
	"github.com/askarbek-dev/kitchenline/internal/app/pricing"
	"github.com/askarbek-dev/kitchenline/internal/app/queue"
	"github.com/askarbek-dev/kitchenline/internal/config"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"

	httpAdapter "github.com/askarbek-dev/kitchenline/internal/adapter/http"
)

func main() {
	mode := flag.String("mode", "", "Service mode: api, event-subscriber")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	storage := flag.String("storage", "postgres", "Storage backend: postgres, memory")
	cafeID := flag.String("cafe-id", "", "Cafe filter (for event-subscriber)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	minLevel := logger.LevelInfo
	if *debug {
		minLevel = logger.LevelDebug
	}
	lgr := logger.New(*mode, minLevel)

	switch *mode {
	case "api":
		runAPI(ctx, cfg, lgr, *storage)

	case "event-subscriber":
		runEventSubscriber(ctx, cfg, lgr, *cafeID)

	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, lgr logger.Logger, storage string) {
	var repo interfaces.OrderRepository

	switch storage {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()

		lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
			"host": cfg.Database.Host,
			"db":   cfg.Database.Database,
		})

		repo = postgres.NewOrderRepository(db)

	case "memory":
		lgr.Info("memory_storage", "Using in-memory storage", "startup", nil)
		repo = memory.NewOrderRepository()

	default:
		log.Fatalf("Invalid storage: %s", storage)
	}

	hub := events.NewHub(lgr)
	publishers := []interfaces.EventPublisher{hub}

	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		// Вещание best-effort: работаем дальше только с локальным хабом.
		lgr.Error("rabbitmq_unavailable", "RabbitMQ unavailable, broker fanout disabled", "startup", nil, err)
	} else {
		defer mqConn.Close()
		publishers = append(publishers, rabbitmq.NewPublisher(mqConn))
		lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
			"host": cfg.RabbitMQ.Host,
		})
	}

	publisher := events.NewFanout(lgr, publishers...)

	if mqConn != nil {
		// Мост из брокера в локальный хаб: события других экземпляров
		// координатора доходят до подписчиков этого процесса.
		bridge := amqp.NewEventHandler(hub, publisher.Origin(), lgr)
		bridgeConsumer := rabbitmq.NewConsumer(mqConn, "", 1)
		go func() {
			if err := bridgeConsumer.ConsumeEvents(ctx, bridge.HandleEvent); err != nil {
				lgr.Error("consumer_error", "Error consuming broker events", "runtime", nil, err)
			}
		}()
	}

	queueService := queue.NewService(repo, publisher, lgr, cfg.Kitchen.DefaultShortDuration())
	pricer := pricing.NewCalculator(cfg.Kitchen.TaxRatePercent)
	lifecycleService := lifecycle.NewService(repo, queueService, pricer, lgr)

	orderHandler := httpAdapter.NewOrderHandler(lifecycleService, lgr)
	kitchenHandler := httpAdapter.NewKitchenHandler(queueService, hub, lgr)

	mux := http.NewServeMux()
	mux.HandleFunc("/orders", orderHandler.HandleOrders)
	mux.HandleFunc("/orders/", orderHandler.HandleOrders)
	mux.HandleFunc("/kitchen/", kitchenHandler.HandleKitchen)

	handler := httpAdapter.LoggingMiddleware(lgr)(mux)
	handler = httpAdapter.RecoveryMiddleware(lgr)(handler)
	handler = httpAdapter.RequestIDMiddleware()(handler)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("Coordinator API started on port %d", cfg.HTTP.Port), "startup", map[string]interface{}{
		"port":    cfg.HTTP.Port,
		"storage": storage,
	})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		lgr.Info("shutdown_initiated", "Shutting down coordinator API", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}

func runEventSubscriber(ctx context.Context, cfg *config.Config, lgr logger.Logger, cafeID string) {
	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	consumer := rabbitmq.NewConsumer(mqConn, cafeID, 1)
	handler := amqp.NewLogHandler(lgr)

	lgr.Info("service_started", "Event subscriber started", "startup", map[string]interface{}{
		"cafe_id": cafeID,
	})

	go func() {
		if err := consumer.ConsumeEvents(ctx, handler.HandleEvent); err != nil {
			lgr.Error("consumer_error", "Error consuming events", "runtime", nil, err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	lgr.Info("shutdown_initiated", "Shutting down event subscriber", "shutdown", nil)
}
