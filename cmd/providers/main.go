package main

import (
	"context"

	"slotguard/internal/providers/consumer"
	"slotguard/internal/providers/handler"
	"slotguard/internal/providers/repository"
	"slotguard/internal/providers/service"
	"slotguard/internal/providers/validator"
	"slotguard/pkg/app"
	"slotguard/pkg/config"
	"slotguard/pkg/db/memory"
	"slotguard/pkg/kafka"
	kafkaconfig "slotguard/pkg/kafka/config"
	kafkamiddleware "slotguard/pkg/kafka/middleware"
	"slotguard/pkg/tracing"
)

const ServiceName = "providers"

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

	cfg.Log.Info("Starting Providers service")
	providerService := initServices(cfg)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewProviderHandler(providerService, cfg.Log))
	if cfg.KafkaEnabled {
		initRegistrationConsumer(cfg, serverApp, providerService)
	}
	serverApp.AddShutdownHook("tracing", shutdownTracing)
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ProviderService {
	providerRepo := repository.NewProviderRepository(cfg, memory.NewStore())
	providerService := service.NewProviderService(
		providerRepo,
		validator.NewProviderValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Provider service initialized", "store_driver", cfg.StoreDriver)
	return providerService
}

func initRegistrationConsumer(cfg *config.Config, serverApp *app.Application, providerService service.ProviderService) {
	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	registrations := consumer.NewRegistrationHandler(providerService, cfg.Log)
	c, err := kafka.NewConsumer(kafkaCfg, cfg.ProviderRegistrationsTopic, registrations.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create registration consumer", "error", err)
	}

	metrics := kafkamiddleware.NewMetrics()
	c.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
	c.Use(metrics.ConsumerMiddleware())

	serverApp.AddWorker("registration-consumer", c)
	serverApp.AddShutdownHook("registration-consumer", func(context.Context) error {
		metrics.Log(cfg.Log)
		return c.Close()
	})
}
