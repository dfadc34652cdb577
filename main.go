package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/audit"
	"github.com/quillio/quill-engine/pkg/config"
	"github.com/quillio/quill-engine/pkg/database"
	"github.com/quillio/quill-engine/pkg/handlers"
	"github.com/quillio/quill-engine/pkg/llm"
	"github.com/quillio/quill-engine/pkg/logging"
	"github.com/quillio/quill-engine/pkg/middleware"
	"github.com/quillio/quill-engine/pkg/repositories"
	"github.com/quillio/quill-engine/pkg/retry"
	"github.com/quillio/quill-engine/pkg/schema"
	"github.com/quillio/quill-engine/pkg/services"
	"github.com/quillio/quill-engine/pkg/sqlguard"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model),
		zap.Strings("tables", cfg.Assistant.Tables))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrationDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	client, err := llm.NewClient(&cfg.AI, logger)
	if err != nil {
		logger.Fatal("Failed to create model client", zap.Error(err))
	}

	counter := llm.NewTokenCounter(logger)
	budget := llm.NewBudget(counter, cfg.AI.MaxContextTokens, cfg.AI.ReservedResponseTokens, logger)
	pool := llm.NewWorkerPool(cfg.AI.MaxConcurrentCalls, logger)

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.AI.MaxRetries
	retryCfg.InitialDelay = time.Duration(cfg.AI.RetryInitialDelayMs) * time.Millisecond

	catalog := schema.NewCatalog(
		schema.NewPostgresIntrospector(db.Pool),
		cfg.Assistant.Tables,
		cfg.Assistant.SchemaCacheTTL(),
		logger,
	)

	validator := sqlguard.NewValidator(sqlguard.Config{
		AllowedTables: cfg.Assistant.Tables,
		TenantColumn:  cfg.Assistant.TenantColumn,
		TenantTables:  cfg.Assistant.TenantTables,
	}, logger)

	auditor := audit.NewSecurityAuditor(logger)

	chatService := services.NewChatService(
		client,
		catalog,
		services.NewRanker(client, logger),
		services.NewIntentExtractor(client, budget, retryCfg, cfg.AI.Temperature, logger),
		validator,
		services.NewExecutor(services.NewPgxRunner(db.Pool), cfg.Assistant.RowCap, logger),
		services.NewSynthesizer(client, pool, cfg.Assistant.ChunkSize, logger),
		services.NewSuggestionGenerator(client, logger),
		repositories.NewChatLogRepository(db),
		auditor,
		services.ChatConfig{
			TenantColumn: cfg.Assistant.TenantColumn,
			SchemaTopK:   cfg.Assistant.SchemaTopK,
			MaxTurns:     cfg.Assistant.MaxConversationTurns,
		},
		logger,
	)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)

	// Chat routes require a tenant scope; health endpoints do not.
	chatMux := http.NewServeMux()
	handlers.NewChatHandler(chatService, logger).RegisterRoutes(chatMux)
	mux.Handle("/api/", middleware.TenantScope(auditor, logger)(chatMux))

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting quill-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown did not complete cleanly", zap.Error(err))
	}
}
