package main

import (
	"haulbid/internal/finalizer/notify"
	"haulbid/internal/finalizer/repository"
	"haulbid/internal/finalizer/service"
	"haulbid/internal/finalizer/validator"
	"haulbid/pkg/app"
	"haulbid/pkg/config"
	"haulbid/pkg/kafka"
	kafka_config "haulbid/pkg/kafka/config"
	kafka_middleware "haulbid/pkg/kafka/middleware"
	"haulbid/pkg/metrics"

	"github.com/joho/godotenv"
)

const ServiceName = "finalizer"

func main() {
	// Optional .env for local development; env vars win in deployment.
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting auto-finalization worker")

	m := metrics.NewMetrics("haulbid_finalizer")
	serverApp := app.NewApplication(cfg)
	finalizerService := initServices(cfg, m, serverApp)

	serverApp.SetApp(finalizerService)
	serverApp.Run()
}

func initServices(cfg *config.Config, m *metrics.Metrics, serverApp *app.Application) service.FinalizerService {
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	bidRepo := repository.NewMongoBidRepository(cfg)
	shipmentRepo := repository.NewMongoShipmentRepository(cfg)
	eventRepo := repository.NewMongoEventRepository(cfg)
	lockRepo := repository.NewMongoFinalizeLockRepository(cfg)
	shipmentValidator := validator.NewValidator(cfg.Log)

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotificationsTopic, cfg.NotificationsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(m))
	}
	serverApp.OnShutdown(func() error {
		stats := producer.Stats()
		cfg.Log.Info("Closing Kafka producer",
			"messages", stats.Messages,
			"errors", stats.Errors,
		)
		return producer.Close()
	})
	notifier := notify.NewKafkaNotifier(producer, ServiceName, cfg.Log)

	finalizerService := service.NewFinalizerService(
		cfg,
		bookingRepo,
		bidRepo,
		shipmentRepo,
		eventRepo,
		lockRepo,
		shipmentValidator,
		notifier,
		m,
	)

	cfg.Log.Info("Finalizer service initialized", "database", cfg.MongoDatabaseName)
	return finalizerService
}
