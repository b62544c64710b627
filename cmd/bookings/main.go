package main

import (
	"context"

	"slotguard/internal/bookings/events"
	bookinghandler "slotguard/internal/bookings/handler"
	bookingrepo "slotguard/internal/bookings/repository"
	bookingservice "slotguard/internal/bookings/service"
	"slotguard/internal/bookings/sweeper"
	bookingvalidator "slotguard/internal/bookings/validator"
	providerhandler "slotguard/internal/providers/handler"
	providerrepo "slotguard/internal/providers/repository"
	providerservice "slotguard/internal/providers/service"
	providervalidator "slotguard/internal/providers/validator"
	"slotguard/pkg/app"
	"slotguard/pkg/config"
	"slotguard/pkg/contracts"
	"slotguard/pkg/db/memory"
	"slotguard/pkg/kafka"
	kafkaconfig "slotguard/pkg/kafka/config"
	kafkamiddleware "slotguard/pkg/kafka/middleware"
	"slotguard/pkg/tracing"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()
	cfg.SetRedis()

	shutdownTracing, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.OtelEnabled,
		ServiceName:  ServiceName,
		OTLPEndpoint: cfg.OtelEndpoint,
		SampleRatio:  cfg.OtelSampleRatio,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to set up tracing", "error", err)
	}

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication()

	publisher, closePublisher := initPublisher(cfg)
	dispatcher := events.NewDispatcher(publisher, cfg.WriteTimeout, cfg.Log)

	store := memory.NewStore()
	providers := providerrepo.NewProviderRepository(cfg, store)
	bookingService := bookingservice.NewBookingService(
		bookingrepo.New(cfg, store),
		providers,
		bookingvalidator.NewBookingValidator(cfg.Log, cfg.CancelReasonMinLength),
		dispatcher,
		cfg,
	)
	cfg.Log.Info("Booking service initialized", "store_driver", cfg.StoreDriver)

	handlers := []contracts.Handler{bookinghandler.NewBookingHandler(bookingService, cfg.Log)}
	if cfg.StoreDriver == config.DriverMemory {
		// The memory store is per process, so providers are served here too.
		providerService := providerservice.NewProviderService(providers, providervalidator.NewProviderValidator(cfg.Log), cfg)
		handlers = append(handlers, providerhandler.NewProviderHandler(providerService, cfg.Log))
		cfg.Log.Info("Memory store in use, provider endpoints mounted on the bookings service")
	}
	serverApp.SetApp(cfg, handlers...)

	completion := sweeper.New(bookingService, cfg.CompletionSweepInterval, cfg.Log)
	serverApp.AddWorker("completion-sweeper", completion)

	serverApp.AddShutdownHook("completion-sweeper", completion.Stop)
	serverApp.AddShutdownHook("event-dispatcher", dispatcher.Wait)
	serverApp.AddShutdownHook("event-publisher", closePublisher)
	serverApp.AddShutdownHook("tracing", shutdownTracing)
	serverApp.Run()
}

// initPublisher returns the Kafka publisher when Kafka is enabled and a
// log-only publisher otherwise.
func initPublisher(cfg *config.Config) (events.Publisher, func(context.Context) error) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events are logged only")
		return events.NewLogPublisher(cfg.Log), func(context.Context) error { return nil }
	}

	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create booking events producer", "error", err)
	}

	metrics := kafkamiddleware.NewMetrics()
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.ProducerMiddleware())

	return events.NewKafkaPublisher(producer), func(context.Context) error {
		metrics.Log(cfg.Log)
		return producer.Close()
	}
}
