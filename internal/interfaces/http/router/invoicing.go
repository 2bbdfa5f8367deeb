package router

import (
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/interfaces/http/handler"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers served by the invoicing API
type Handlers struct {
	Sales     *handler.SaleHandler
	Invoices  *handler.InvoiceHandler
	Customers *handler.CustomerHandler
	System    *handler.SystemHandler
}

// EngineConfig configures the gin engine built by NewEngine
type EngineConfig struct {
	Logger         *zap.Logger
	ServiceName    string
	Tracing        bool
	Profiling      bool
	Meter          metric.Meter // nil disables HTTP metrics
	MaxBodySize    int64
	CORS           middleware.CORSConfig
	TrustedProxies []string
}

// SalesRoutes returns the route group for recording sales
func SalesRoutes(h *handler.SaleHandler) *DomainGroup {
	g := NewDomainGroup("sales", "/sales")
	g.POST("", h.RecordSale)
	return g
}

// InvoiceRoutes returns the route group for invoice views, payments and documents
func InvoiceRoutes(h *handler.InvoiceHandler) *DomainGroup {
	g := NewDomainGroup("invoices", "/invoices")
	g.GET("/:id", h.GetInvoice).
		GET("/:id/payments", h.ListPayments).
		POST("/:id/payments", h.CollectPayment).
		POST("/:id/artifact", h.EnsureArtifact).
		GET("/:id/artifact", h.DownloadArtifact).
		POST("/:id/open", h.OpenArtifact).
		POST("/:id/regenerate", h.Regenerate)
	return g
}

// CustomerRoutes returns the route group for customer statements
func CustomerRoutes(h *handler.CustomerHandler) *DomainGroup {
	g := NewDomainGroup("customers", "/customers")
	g.GET("/:id/ledger", h.GetLedger).
		GET("/:id/invoices", h.ListInvoices)
	return g
}

// NewEngine builds the gin engine with the middleware stack and every route
// of the invoicing API. Middleware order:
//  1. Recovery
//  2. RequestID, TerminalID
//  3. Tracing and span enrichment, profiling labels
//  4. Request logging and HTTP metrics
//  5. Security headers, CORS, body limit
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := logger.OrNop(cfg.Logger)
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TerminalID())
	if cfg.Tracing {
		tc := middleware.DefaultTracingConfig()
		if cfg.ServiceName != "" {
			tc.ServiceName = cfg.ServiceName
		}
		engine.Use(middleware.TracingWithConfig(tc))
		engine.Use(middleware.TracingAttributeInjector())
		engine.Use(middleware.SpanErrorMarker())
	}
	if cfg.Profiling {
		engine.Use(middleware.Profiling())
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetrics(cfg.Meter, log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	if h.Sales != nil {
		r.Register(SalesRoutes(h.Sales))
	}
	if h.Invoices != nil {
		r.Register(InvoiceRoutes(h.Invoices))
	}
	if h.Customers != nil {
		r.Register(CustomerRoutes(h.Customers))
	}
	if h.System != nil {
		system := NewDomainGroup("system", "/system")
		system.GET("/info", h.System.GetSystemInfo).
			GET("/ping", h.System.Ping)
		r.Register(system)
	}
	r.Setup()
	log.Debug("API routes registered", zap.Strings("routes", r.Routes()))

	return engine
}
