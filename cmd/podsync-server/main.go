package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vsinha/podsync/pkg/application/services/ingestion"
	"github.com/vsinha/podsync/pkg/application/services/provisioning"
	"github.com/vsinha/podsync/pkg/application/services/resolver"
	"github.com/vsinha/podsync/pkg/application/services/synchronization"
	"github.com/vsinha/podsync/pkg/domain/repositories"
	"github.com/vsinha/podsync/pkg/infrastructure/cache"
	"github.com/vsinha/podsync/pkg/infrastructure/config"
	"github.com/vsinha/podsync/pkg/infrastructure/discovery"
	"github.com/vsinha/podsync/pkg/infrastructure/events"
	mongorepo "github.com/vsinha/podsync/pkg/infrastructure/repositories/mongo"
	"github.com/vsinha/podsync/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/podsync/pkg/interfaces/http/handlers"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := log.New(os.Stderr, "podsync ", log.LstdFlags)

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Println("Connected to MongoDB")

	db := client.Database(cfg.MongoDB)

	podRepo := mongorepo.NewPodRepository(db)
	if err := podRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("Warning: failed to create pod indexes: %v", err)
	}

	// Item store
	var itemRepo repositories.ItemRepository
	switch cfg.ItemStore {
	case config.ItemStorePostgres:
		sqlDB, err := sqlx.Connect("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer sqlDB.Close()

		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		log.Println("Connected to PostgreSQL")

		pgRepo := postgres.NewItemRepository(sqlDB)
		if err := pgRepo.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		itemRepo = pgRepo
	default:
		mongoItems := mongorepo.NewItemRepository(db)
		if err := mongoItems.EnsureIndexes(ctx); err != nil {
			log.Printf("Warning: failed to create item indexes: %v", err)
		}
		itemRepo = mongoItems
	}

	// Events: in-process store drives cache invalidation, Kafka fans out
	eventStore := events.NewInMemoryEventStoreWithRetention(logger, cfg.EventRetention)
	publisher := events.MultiPublisher{eventStore}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		publisher = append(publisher, kafkaPublisher)
		log.Println("Kafka publisher initialized")
	}

	responseCache := cache.NewResponseCache(cfg.CacheTTL, cache.DefaultMaxEntries)
	go responseCache.Start()
	defer responseCache.Stop()
	if err := cache.NewInvalidator(responseCache).Register(eventStore); err != nil {
		return fmt.Errorf("failed to register cache invalidator: %w", err)
	}

	// Initialize services and handlers
	engine := synchronization.NewEngineWithConfig(
		synchronization.EngineConfig{MaxAttempts: cfg.SyncMaxAttempts},
		itemRepo, podRepo, publisher, logger,
	)
	locator := resolver.NewResolver(itemRepo, podRepo, logger)
	locator.SlowJoinThreshold = cfg.SlowJoinThreshold

	handler := handlers.NewPodSyncHandler(handlers.Dependencies{
		Items:       itemRepo,
		Pods:        podRepo,
		Engine:      engine,
		Resolver:    locator,
		Reconciler:  ingestion.NewReconciler(itemRepo, publisher, logger),
		Provisioner: provisioning.NewProvisioner(podRepo, publisher, logger),
		Cache:       responseCache,
		Events:      eventStore,
		Logger:      logger,
	})

	// Setup router
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	// Register with Consul
	serviceID := fmt.Sprintf("%s-%s", discovery.ServiceName, cfg.ServiceID)
	if cfg.ConsulAddr != "" {
		consulClient, err := discovery.NewConsulClient(cfg.ConsulAddr)
		if err != nil {
			return fmt.Errorf("failed to create consul client: %w", err)
		}

		if err := consulClient.RegisterService(serviceID, discovery.ServiceName, cfg.ServiceAddress, cfg.ServerPort); err != nil {
			return fmt.Errorf("failed to register service with consul: %w", err)
		}
		log.Printf("Registered with Consul as %s at %s:%s", serviceID, cfg.ServiceAddress, cfg.ServerPort)

		defer func() {
			if err := consulClient.DeregisterService(serviceID); err != nil {
				log.Printf("Failed to deregister service: %v", err)
			}
		}()
	}

	// Start HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting %s on port %s", discovery.ServiceName, cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited gracefully")
	return nil
}
