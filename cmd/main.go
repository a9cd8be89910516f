package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"waflow/internal/infrastructure"
	"waflow/internal/interfaces/http"
	"waflow/internal/logging"
	"waflow/internal/repository"
	"waflow/internal/usecases"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := infrastructure.LoadConfig()
	log := logging.New(cfg.LogLevel)

	ctx := context.Background()

	// The client migrates the schema on construction.
	pgClient, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pgClient.Close()

	// Repositories
	tenantRepo := repository.NewTenantRepository(pgClient.Pool)
	accountRepo := repository.NewAccountRepository(pgClient.Pool)
	userRepo := repository.NewUserRepository(pgClient.Pool)
	flowRepo := repository.NewFlowRepository(pgClient.Pool)
	sessionRepo := repository.NewSessionRepository(pgClient.Pool)
	messageRepo := repository.NewMessageRepository(pgClient.Pool)
	webhookLogRepo := repository.NewWebhookLogRepository(pgClient.Pool)

	// Outbound side
	metaClient := infrastructure.NewMetaClient(cfg.GraphAPIBaseURL, cfg.GraphAPIVersion, log)
	limiter := infrastructure.NewRecipientLimiter(cfg.SendRate, cfg.SendBurst)
	gateway := infrastructure.NewMessageGateway(accountRepo, metaClient, messageRepo, limiter, cfg.SendRetries, cfg.SendRetryDelay, log)

	// Engine
	handlers := usecases.NewHandlerSet(gateway, userRepo, flowRepo, log)
	executor := usecases.NewExecutor(handlers, sessionRepo, flowRepo, gateway, cfg.FlowMaxIterations, log)
	resolver := usecases.NewFlowResolver(flowRepo, log)
	sessionService := usecases.NewSessionService(sessionRepo, gateway, cfg.SessionTimeoutMinutes, log)
	messageService := usecases.NewMessageService(userRepo, sessionService, resolver, executor,
		sessionRepo, gateway, messageRepo, infrastructure.NewKeyedLocks(), log)

	// HTTP
	handler := http.NewHandler(messageService, tenantRepo, accountRepo, webhookLogRepo, cfg.WebhookLogging, log)
	adminHandler := http.NewAdminHandler(tenantRepo, accountRepo, flowRepo, sessionRepo, messageRepo, webhookLogRepo, gateway, log)

	router := gin.Default()
	http.SetupRoutes(router, handler, adminHandler, http.NewMiddleware())

	log.Info("listening", "addr", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Error("http server", "error", err)
		os.Exit(1)
	}
}
