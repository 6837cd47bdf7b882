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

	"github.com/rs/cors"

	"lana/internal/billing"
	"lana/internal/cfdi"
	"lana/internal/config"
	"lana/internal/database"
	"lana/internal/extraction"
	"lana/internal/logger"
	"lana/internal/recurring"
	"lana/internal/server"
	"lana/internal/services"
	"lana/internal/storage"
	"lana/internal/validator"
)

//go:generate swag init -g cmd/api/main.go -d ../../ -o ../../internal/docs

// @title           Lana API
// @version         1.0
// @description     Lana is a home-finance application: income and expenses, budgets, recurring rules, cash-flow forecasts and CFDI invoicing.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineKey
// @in header
// @name X-API-Key
// @description Pipeline API key for scheduled jobs.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("database close error", "error", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Vendors. Each one is optional; the features behind a missing vendor
	// answer PROVIDER_NOT_CONFIGURED.
	var invoiceProvider cfdi.Provider
	if appConfig.FacturapiAPIKey != "" {
		invoiceProvider = cfdi.NewFacturapiClient(appConfig.FacturapiBaseURL, appConfig.FacturapiAPIKey,
			&http.Client{Timeout: appConfig.RequestTimeout})
	} else {
		log.Warn("FACTURAPI_API_KEY not set, invoicing disabled")
	}

	var archive storage.Archive
	if appConfig.GCSBucket != "" {
		gcs, err := storage.NewGCSArchive(ctx, appConfig.GCSBucket)
		if err != nil {
			return fmt.Errorf("failed to open document archive: %w", err)
		}
		defer gcs.Close()
		archive = gcs
	} else {
		log.Warn("GCS_BUCKET not set, invoice documents are not archived")
	}

	var gen extraction.Generator
	if appConfig.GeminiAPIKey != "" {
		if gen, err = extraction.NewGeminiGenerator(ctx, appConfig.GeminiAPIKey); err != nil {
			return fmt.Errorf("failed to create receipt extractor: %w", err)
		}
	} else {
		log.Warn("GEMINI_API_KEY not set, receipt scans disabled")
	}
	extractor := extraction.NewExtractor(gen, appConfig.GeminiModel)

	var gateway billing.Gateway
	if appConfig.StripeSecretKey != "" {
		gateway = billing.NewStripeGateway(appConfig.StripeSecretKey)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, billing disabled")
	}
	prices := billing.Prices{Pro: appConfig.StripeProPriceID, Business: appConfig.StripeBusinessPriceID}

	// Initialize services
	db := dbManager.DB()
	recurringService := services.NewRecurringService(db, appConfig.RecurringSweepConcurrency)
	svc := server.Services{
		User:        services.NewUserService(db),
		Audit:       services.NewAuditService(db),
		Category:    services.NewCategoryService(db),
		Transaction: services.NewTransactionService(db, invoiceProvider),
		Budget:      services.NewBudgetService(db),
		Recurring:   recurringService,
		Settings:    services.NewSettingsService(db),
		Cashflow:    services.NewCashflowService(db),
		Calendar:    services.NewCalendarService(db),
		Invoice:     services.NewInvoiceService(db, invoiceProvider, archive),
		Receipt:     services.NewReceiptService(db, extractor),
		Billing:     services.NewBillingService(db, gateway, prices, appConfig.StripeWebhookSecret),
		Export:      services.NewExportService(db),
	}

	router := server.NewRouter(svc, server.Options{
		PipelineAPIKey: appConfig.PipelineAPIKey,
		RequestLogging: true,
		Swagger:        appConfig.Env != "production",
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: appConfig.CORSAllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      appConfig.RequestTimeout + 30*time.Second,
	}

	// Background recurring sweep
	recurring.NewRunner(recurringService, recurring.RunnerConfig{
		JitterMin: appConfig.RecurringJitterMin,
		JitterMax: appConfig.RecurringJitterMax,
		Interval:  appConfig.RecurringSweepInterval,
	}, log).Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Lana backend server on port %s", appConfig.Port)
		if appConfig.Env != "production" {
			log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		}
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
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
