package main

import (
	"context"
	"time"

	"slotwise/internal/scheduling/handler"
	"slotwise/internal/scheduling/repository"
	"slotwise/internal/scheduling/service"
	"slotwise/internal/scheduling/validator"
	"slotwise/pkg/app"
	"slotwise/pkg/config"
	"slotwise/pkg/events"
	kafka_config "slotwise/pkg/kafka/config"
	"slotwise/pkg/linktoken"
)

const ServiceName = "scheduling"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Scheduling service")

	publisher, err := events.NewPublisher(kafka_config.Load(), cfg.Log, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err)
	}
	defer publisher.Close()

	tokens, err := linktoken.NewService(cfg.LinkTokenSecret, cfg.LinkTokenTTL)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize link token service", "error", err)
	}

	providerHandler, publicHandler := initHandlers(cfg, tokens, publisher)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, providerHandler, publicHandler)
	serverApp.Run()
}

func initHandlers(cfg *config.Config, tokens *linktoken.Service, publisher service.EventPublisher) (*handler.SchedulingHandler, *handler.PublicHandler) {
	v := validator.NewSchedulingValidator(cfg.Log)

	clientRepo := repository.NewMongoClientRepository(cfg)
	scheduleRepo := repository.NewMongoScheduleRepository(cfg)
	proposalRepo := repository.NewMongoProposalRepository(cfg)
	configRepo := repository.NewMongoWorkingConfigRepository(cfg)
	lockRepo := repository.NewMongoSlotLockRepository(cfg)

	ensureIndexes(cfg, scheduleRepo, lockRepo)

	negotiation := service.NewNegotiationService(
		proposalRepo, scheduleRepo, clientRepo, configRepo, lockRepo, v, publisher, cfg)
	approval := service.NewApprovalService(
		scheduleRepo, clientRepo, configRepo, lockRepo, v, publisher, cfg)
	query := service.NewQueryService(scheduleRepo, clientRepo, configRepo, cfg)
	clients := service.NewClientService(clientRepo, v, cfg)
	workingConfig := service.NewWorkingConfigService(configRepo, v, cfg)

	cfg.Log.Info("Scheduling services initialized", "database", cfg.MongoDatabaseName)

	providerHandler := handler.NewSchedulingHandler(negotiation, approval, query, clients, workingConfig, cfg.Log)
	publicHandler := handler.NewPublicHandler(tokens, negotiation, approval, query, cfg.Log)
	return providerHandler, publicHandler
}

func ensureIndexes(cfg *config.Config, schedules repository.ScheduleRepository, locks repository.SlotLockRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := schedules.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create schedule indexes", "error", err)
	}
	if err := locks.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create slot lock indexes", "error", err)
	}
	cfg.Log.Info("Database indexes ensured")
}
