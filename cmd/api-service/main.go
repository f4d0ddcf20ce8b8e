package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/gigflow/internal/api/handler"
	"github.com/cuongbtq/gigflow/internal/api/router"
	"github.com/cuongbtq/gigflow/internal/chat"
	"github.com/cuongbtq/gigflow/internal/config"
	"github.com/cuongbtq/gigflow/internal/joblock"
	"github.com/cuongbtq/gigflow/internal/marketplace"
	"github.com/cuongbtq/gigflow/internal/notify"
	"github.com/cuongbtq/gigflow/internal/realtime"
	"github.com/cuongbtq/gigflow/internal/storage"
	"github.com/cuongbtq/gigflow/shared/logger"
	"github.com/cuongbtq/gigflow/shared/postgresql"
	"github.com/cuongbtq/gigflow/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// eventSink receives hire notices and chat messages after they are persisted
type eventSink interface {
	marketplace.HireNotifier
	chat.MessageFanout
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("events", cfg.Events.Mode),
	)

	store, healthCheck, err := initStorage(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	registry := realtime.NewRegistry()
	rooms := realtime.NewRooms()
	localRouter := realtime.NewRouter(appLogger.With(slog.String("component", "realtime")).Logger, registry, rooms)

	// Consumers outlive the HTTP server so in-flight events still reach sockets.
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var (
		sink         eventSink = localRouter
		rabbitClient *rabbitmq.Client
		consumer     *notify.Consumer
	)

	if cfg.Events.Mode == config.EventsModeRabbitMQ {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		appLogger.Info("RabbitMQ connection established",
			slog.String("queue", rabbitClient.QueueName()),
		)

		sink = notify.NewPublisher(appLogger.Logger, rabbitClient)
		consumer = notify.NewConsumer(&notify.ConsumerConfig{
			Logger:          appLogger.With(slog.String("component", "consumer")).Logger,
			Source:          rabbitClient,
			Target:          localRouter,
			ConsumerTag:     fmt.Sprintf("%s-%s", cfg.App.Name, uuid.NewString()[:8]),
			Concurrency:     cfg.RabbitMQ.Consumer.Concurrency,
			DeliveryTimeout: cfg.RabbitMQ.Consumer.DeliveryTimeout,
		})
		if err := consumer.Start(consumerCtx); err != nil {
			return err
		}
	}

	// One lock table serves hires and chat sends so both serialize per job.
	locks := joblock.New()

	marketService := marketplace.NewService(&marketplace.Config{
		Logger:        appLogger.With(slog.String("component", "marketplace")).Logger,
		Store:         store,
		Locks:         locks,
		Notifier:      sink,
		NotifyTimeout: cfg.Events.NotifyTimeout,
	})

	chatService := chat.NewService(&chat.Config{
		Logger:        appLogger.With(slog.String("component", "chat")).Logger,
		Store:         store,
		Gate:          chat.NewGate(store, cfg.Messaging.HistoryAfterCompletion),
		Locks:         locks,
		Fanout:        sink,
		MaxTextLength: cfg.Messaging.MaxTextLength,
	})

	hub := realtime.NewHub(&realtime.HubConfig{
		Logger:   appLogger.With(slog.String("component", "hub")).Logger,
		Registry: registry,
		Rooms:    rooms,
		Router:   localRouter,
		Chat:     chatService,
		Timings: realtime.Timings{
			WriteWait:      cfg.Realtime.WriteWait,
			PongWait:       cfg.Realtime.PongWait,
			PingInterval:   cfg.Realtime.PingInterval,
			MaxMessageSize: cfg.Realtime.MaxMessageSize,
		},
		SendBuffer:     cfg.Realtime.SendBuffer,
		EventTimeout:   cfg.Realtime.EventTimeout,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	})

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := router.SetupRouter(&router.Config{
		Deps: &handler.Dependencies{
			Logger:      appLogger.Logger,
			Marketplace: marketService,
			Chat:        chatService,
			Hub:         hub,
		},
		Auth:           router.NewTokenAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.CookieName),
		HealthCheck:    healthCheck,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		ServiceName:    cfg.App.Name,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.String("error", err.Error()))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by http.Server.
	hub.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.String("error", err.Error()),
		)
		return err
	}

	if consumer != nil {
		stopConsumer()
		consumer.Wait()
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		NoColor:      cfg.NoColor,
	})
}

// initStorage opens the configured backend and returns its health check
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Gateway, func(ctx context.Context) error, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return storage.NewMemoryStore(), nil, nil
	}

	dbClient, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Database connection established", slog.String("stats", dbClient.Stats()))

	return storage.NewPostgresStore(dbClient, logger), dbClient.HealthCheck, nil
}

// initRabbitMQ connects to the broker and declares this instance's queue
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}
