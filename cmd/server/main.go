package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	appinvoice "github.com/erp/invoicing/internal/application/invoice"
	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/cache"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/migration"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/infrastructure/printing"
	"github.com/erp/invoicing/internal/infrastructure/scheduler"
	"github.com/erp/invoicing/internal/infrastructure/storage"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/erp/invoicing/internal/interfaces/http/handler"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/erp/invoicing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

//	@title			POS Invoicing API
//	@version		1.0
//	@description	Sales, credit collections and invoice documents for shop tills

//	@host		localhost:8080
//	@BasePath	/api/v1

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting POS invoicing server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("database", cfg.Database.Driver),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	var (
		meter          metric.Meter
		invoiceMetrics *telemetry.InvoiceMetrics
	)
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter(cfg.Telemetry.ServiceName)
		if invoiceMetrics, err = telemetry.NewInvoiceMetrics(meter); err != nil {
			log.Warn("Invoice metrics unavailable", zap.Error(err))
		}
	}

	// Database
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel))
	db, err := persistence.NewDatabase(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if err := migrateSchema(cfg, db, log); err != nil {
		log.Fatal("Failed to prepare schema", zap.Error(err))
	}

	dbSystem := "postgresql"
	if cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:  cfg.Telemetry.Enabled,
		DBSystem: dbSystem,
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Database tracing unavailable", zap.Error(err))
	}

	// Printing
	paper, err := printing.ParsePaperSize(cfg.Printing.PaperSize)
	if err != nil {
		log.Fatal("Invalid paper size", zap.Error(err))
	}
	var pdf printing.PDFRenderer
	if cfg.Printing.Engine == "chromedp" {
		chrome, err := printing.NewChromedpRendererFromConfig(cfg.Printing.ChromeURL, cfg.Printing.NoSandbox, cfg.Printing.RenderTimeout, log)
		if err != nil {
			log.Fatal("Failed to initialize PDF renderer", zap.Error(err))
		}
		pdf = chrome
	}
	renderer := printing.NewInvoiceRenderer(printing.NewTemplateEngine(), pdf, &printing.InvoiceRendererConfig{
		PaperSize:      paper,
		Timeout:        cfg.Printing.RenderTimeout,
		MaxConcurrency: cfg.Printing.MaxConcurrency,
		Logger:         log,
	})
	defer func() {
		_ = renderer.Close()
	}()

	artifactStore, err := printing.NewFileSystemStorage(&printing.FileSystemStorageConfig{
		BasePath:  cfg.Printing.ArtifactDir,
		Extension: renderer.Extension(),
		Logger:    log,
	})
	if err != nil {
		log.Fatal("Failed to prepare artifact directory", zap.Error(err))
	}
	log.Info("Invoice documents",
		zap.String("dir", artifactStore.BasePath()),
		zap.String("format", strings.TrimPrefix(renderer.Extension(), ".")),
		zap.String("paper", string(paper)),
	)

	// Idempotency keys for payment collection
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()

	// Repositories and services
	uow := persistence.NewGormUnitOfWork(db.DB, cfg.Ledger.MaxSerializationRetries, log)
	headers := persistence.NewGormInvoiceRepository(db.DB)
	legacy := persistence.NewGormLegacySaleRepository(db.DB)
	resolver := appinvoice.NewItemResolver(
		persistence.NewGormRawItemSource(db.DB, log),
		log,
		persistence.NewCurrentItemSource(db.DB, log),
		persistence.NewLegacyItemSource(db.DB, log),
	)
	assembler := appinvoice.NewViewAssembler(log)
	shop := appinvoice.NewShopInfoLoader(persistence.NewGormSettingsRepository(db.DB), shopDefaults(cfg.Shop), log)

	regenOpts := []appinvoice.RegenerationOption{appinvoice.WithRegenerationMetrics(invoiceMetrics)}
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3InvoiceArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize invoice archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Warn("Invoice archive bucket check failed; archiving will be retried per document", zap.Error(err))
		}
		regenOpts = append(regenOpts, appinvoice.WithArchiver(archive))
		log.Info("Invoice archiving enabled", zap.String("bucket", archive.Bucket()))
	}
	regen := appinvoice.NewRegenerationEngine(headers, legacy, resolver, assembler, shop, renderer, artifactStore, uow, log, regenOpts...)

	var opener appinvoice.ArtifactOpener
	if cmd := printing.NewCommandOpener(cfg.Printing.ViewCommand, cfg.Printing.PrintCommand, log); cmd.Enabled() {
		opener = cmd
	}

	idempotencyCfg := shared.DefaultIdempotencyConfig()
	if cfg.Ledger.IdempotencyTTL > 0 {
		idempotencyCfg.TTL = cfg.Ledger.IdempotencyTTL
	}

	saleService := appinvoice.NewSaleService(uow, shop, regen, invoiceMetrics, log)
	ledgerService := appinvoice.NewLedgerService(uow, headers, headers, legacy, log,
		appinvoice.WithIdempotency(idempotencyStore, idempotencyCfg),
		appinvoice.WithLedgerMetrics(invoiceMetrics),
	)
	artifactService := appinvoice.NewArtifactService(headers, legacy, resolver, assembler, shop, regen, artifactStore, opener, log)

	// Artifact retention
	retention, err := scheduler.NewRetentionScheduler(artifactStore, log, scheduler.RetentionSchedulerConfig{
		RetentionDays:  cfg.Printing.RetentionDays,
		CleanupHour:    3,
		RunOnStart:     true,
		CleanupTimeout: 15 * time.Minute,
	})
	if err != nil {
		log.Fatal("Invalid retention settings", zap.Error(err))
	}
	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	if err := retention.Start(schedulerCtx); err != nil {
		log.Fatal("Failed to start retention sweep", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	engine := router.NewEngine(router.EngineConfig{
		Logger:         log,
		ServiceName:    cfg.Telemetry.ServiceName,
		Tracing:        tracerProvider.IsEnabled(),
		Profiling:      profiler.IsEnabled(),
		Meter:          meter,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CORS:           cors,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		Sales:     handler.NewSaleHandler(saleService),
		Invoices:  handler.NewInvoiceHandler(ledgerService, artifactService, regen, artifactStore),
		Customers: handler.NewCustomerHandler(ledgerService),
		System:    handler.NewSystemHandler(db, version),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := retention.Stop(shutdownCtx); err != nil {
		log.Warn("Retention sweep did not stop cleanly", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler stop failed", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Logger provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrateSchema creates the current-layout tables. SQLite terminals use GORM
// auto-migration; PostgreSQL applies the embedded SQL migrations.
func migrateSchema(cfg *config.Config, db *persistence.Database, log *zap.Logger) error {
	if cfg.Database.Driver == "sqlite" {
		return db.AutoMigrate()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.NewEmbedded(sqlDB, log)
	if err != nil {
		return err
	}
	// Close would also close sqlDB, which the server keeps using
	return m.Up()
}

func shopDefaults(s config.ShopConfig) invoice.ShopInfo {
	return invoice.ShopInfo{
		Name:           s.Name,
		AddressLines:   s.Address,
		Phone:          s.Phone,
		Email:          s.Email,
		GSTIN:          s.GSTIN,
		StateCode:      s.StateCode,
		FooterNote:     s.FooterNote,
		CurrencySymbol: s.CurrencySymbol,
		DefaultTaxRate: decimal.NewFromFloat(s.DefaultTaxRate),
	}
}
