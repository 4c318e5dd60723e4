package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"fintrack/internal/config"
	"fintrack/internal/corrections"
	"fintrack/internal/database"
	"fintrack/internal/handlers"
	"fintrack/internal/logger"
	"fintrack/internal/mlclient"
	"fintrack/internal/server"
	"fintrack/internal/services"
	"fintrack/internal/validator"

	_ "fintrack/internal/docs" // Import swagger docs
)

// @title           Fintrack API
// @version         1.0
// @description     Personal finance tracking with ML-assisted transaction categorization and self-adjusting budgets.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineAPIKey
// @in header
// @name X-API-Key

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(appConfig.Env, appConfig.LogLevel)
	defer logger.Sync()
	log := logger.Get()

	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	mlClient := mlclient.NewClient(appConfig.MLServiceURL, &http.Client{Timeout: appConfig.MLTimeout})

	sink, closeSink, err := newCorrectionSink(appConfig, mlClient)
	if err != nil {
		return err
	}
	defer closeSink()

	dispatcher := corrections.NewDispatcher(sink, corrections.Options{
		QueueSize: appConfig.CorrectionQueueSize,
		Workers:   appConfig.CorrectionWorkers,
		Timeout:   appConfig.CorrectionTimeout,
	})

	// Initialize services
	db := dbManager.DB()
	auditService := services.NewAuditService(db)
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db)
	estimator := services.NewBudgetEstimator(db, services.EstimateOptions{
		Months:     appConfig.BudgetWindowMonths,
		Multiplier: appConfig.BudgetMultiplier,
		Minimum:    appConfig.BudgetMinimum,
	})
	budgetService := services.NewBudgetService(db, estimator)
	categoryService := services.NewCategoryService(db, budgetService)
	goalService := services.NewGoalService(db)
	transactionService := services.NewTransactionService(db, services.TransactionServiceDeps{
		Accounts:         accountService,
		Categories:       categoryService,
		Budgets:          budgetService,
		Categorizer:      mlClient,
		Corrections:      dispatcher,
		Audit:            auditService,
		BatchConcurrency: appConfig.PredictBatchConcurrency,
	})

	validator.Register()

	router := server.NewRouter(server.Handlers{
		Auth:         handlers.NewAuthHandler(userService, auditService),
		Accounts:     handlers.NewAccountHandler(accountService, auditService),
		Categories:   handlers.NewCategoryHandler(categoryService, auditService),
		Transactions: handlers.NewTransactionHandler(transactionService),
		Budgets:      handlers.NewBudgetHandler(budgetService, auditService),
		Goals:        handlers.NewGoalHandler(goalService),
		ML:           handlers.NewMLHandler(mlClient),
	}, server.Options{
		PipelineAPIKey: appConfig.PipelineAPIKey,
		Health:         func() gin.H { return gin.H{"corrections": dispatcher.Stats()} },
		Swagger:        true,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Fintrack server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warnw("Correction queue not fully drained", "error", err, "stats", dispatcher.Stats())
	}
	return nil
}

// newCorrectionSink publishes corrections to the broker when AMQP_URL is set,
// for cmd/corrections-worker to forward, and posts them straight to the ML
// service otherwise.
func newCorrectionSink(cfg *config.Config, ml *mlclient.Client) (corrections.Sink, func(), error) {
	if cfg.AMQPURL == "" {
		return corrections.NewHTTPSink(ml), func() {}, nil
	}
	sink, err := corrections.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect correction broker: %w", err)
	}
	logger.Get().Infow("Publishing corrections to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return sink, func() { _ = sink.Close() }, nil
}
