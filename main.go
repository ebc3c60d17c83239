package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/kafka"
	"storefront/pkg/rabbitmq"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load(config.New())
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := repositories.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}
	store := repositories.NewGORMStore(db)
	seedProducts(context.Background(), store.Repositories().Products)

	publisher, mqClient, err := newPublisher(cfg.Events)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize event broker")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("Error closing event publisher")
		}
	}()

	providers, err := app.NewProviders(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to configure payment providers")
	}

	application, err := app.New(cfg, app.Deps{
		Store:     store,
		Publisher: publisher,
		Providers: providers,
		AccessLog: true,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to build application")
	}

	if mqClient != nil {
		if err := mqClient.ConsumeOrderEvents(auditEvent); err != nil {
			log.WithError(err).Error("Failed to start RabbitMQ consumer")
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := application.Listen(cfg.Server.Port); err != nil {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-quit
	log.Info("Shutting down server...")
	if err := application.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("Error during Fiber shutdown")
	}
	log.Info("Server gracefully stopped")
}

func openDatabase(cfg config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// SQLite serializes writers; one connection avoids "database is locked" under concurrent transactions.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// newPublisher connects the configured broker. The RabbitMQ client is also returned so
// main can attach the audit consumer to it.
func newPublisher(cfg config.Events) (events.Publisher, *rabbitmq.Client, error) {
	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			return nil, nil, err
		}
		return events.NewAMQPPublisher(client), client, nil
	case config.BrokerKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, nil, fmt.Errorf("KAFKA_BROKERS is empty")
		}
		return events.NewKafkaPublisher(kafka.NewProducer(kafka.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})), nil, nil
	default:
		return events.NopPublisher{}, nil, nil
	}
}

// auditEvent logs each order event read back from the queue.
func auditEvent(msg amqp.Delivery) error {
	evt, err := events.Decode(msg.Body)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"component":       "audit",
		"event":           evt.Type,
		"order_id":        evt.OrderID,
		"status":          evt.Status,
		"previous_status": evt.PreviousStatus,
	}).Info("order event")
	return nil
}

// seedProducts fills an empty catalog with a few products.
func seedProducts(ctx context.Context, repo repositories.ProductRepository) {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		log.WithError(err).Warn("Could not read catalog, skipping seed")
		return
	}
	if len(existing) > 0 {
		return
	}

	products := []models.Product{
		{ID: "prod-1", Name: "Laptop", Description: "High performance laptop", Price: decimal.RequireFromString("1200.00"), DiscountPercent: 10, Stock: 10},
		{ID: "prod-2", Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("75.00"), Stock: 25},
		{ID: "prod-3", Name: "Mouse", Description: "Ergonomic wireless mouse", Price: decimal.RequireFromString("25.00"), Stock: 50},
	}
	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			log.WithError(err).WithField("product", products[i].Name).Error("Error seeding product")
			continue
		}
		log.WithFields(log.Fields{"product": products[i].Name, "id": products[i].ID}).Info("Seeded product")
	}
}
