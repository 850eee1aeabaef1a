package router

import (
	"time"

	"github.com/ally-360/pos-terminal/internal/config"
	"github.com/ally-360/pos-terminal/internal/handler"
	"github.com/ally-360/pos-terminal/internal/infra"
	"github.com/ally-360/pos-terminal/internal/middleware"
	"github.com/ally-360/pos-terminal/internal/observability"
	"github.com/ally-360/pos-terminal/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
)

// Deps are the components the local API serves. They are built once in the
// composition root.
type Deps struct {
	Sales     *service.SaleService
	Registers *service.RegisterService
	State     *service.StateManager
	Hub       *infra.Hub
	Metrics   *observability.Metrics
	Breaker   *infra.CircuitBreaker
	Limiter   *middleware.RateLimiter
	Checks    map[string]handler.HealthCheck
	Receipt   infra.ReceiptOptions
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← StateManager ← SnapshotRepository
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(d.Metrics.Middleware())
	if d.Limiter == nil {
		d.Limiter = middleware.NewRateLimiter(1000, time.Minute)
	}
	r.Use(d.Limiter.Middleware())

	// ── Handlers ─────────────────────────────────────────────────────────────
	windowsH := handler.NewWindowsHandler(d.Sales)
	registerH := handler.NewRegisterHandler(d.Registers)
	salesH := handler.NewSalesHandler(d.Sales, d.Receipt)
	sessionH := handler.NewSessionHandler(d.State, d.Hub)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.Checks, d.Breaker))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	v1 := r.Group("/v1", middleware.CashierAuth(cfg.JWTSecret))
	{
		windows := v1.Group("/windows")
		{
			windows.POST("", windowsH.Create)
			windows.GET("", windowsH.List)
			windows.GET("/:id", windowsH.Get)
			windows.PUT("/:id/active", windowsH.SetActive)
			windows.DELETE("/:id", windowsH.Cancel)
			windows.PUT("/:id/customer", windowsH.BindCustomer)
			windows.DELETE("/:id/customer", windowsH.UnbindCustomer)
			windows.POST("/:id/items", windowsH.AddItem)
			windows.PATCH("/:id/items/:lineId", windowsH.UpdateQuantity)
			windows.DELETE("/:id/items/:lineId", windowsH.RemoveItem)
			windows.PUT("/:id/adjustments", windowsH.SetAdjustments)
			windows.POST("/:id/payments", windowsH.AddPayment)
			windows.DELETE("/:id/payments/:paymentId", windowsH.RemovePayment)
			windows.GET("/:id/confirmation", windowsH.Confirmation)
			windows.POST("/:id/complete", windowsH.Complete)
		}

		v1.GET("/sales", salesH.History)
		v1.GET("/sales/:id/receipt", salesH.Receipt)

		register := v1.Group("/register")
		{
			register.GET("", registerH.Current)
			register.POST("/open", registerH.Open)
			register.POST("/sync", registerH.Sync)
			register.POST("/movements", registerH.RecordMovement)
			register.POST("/close", registerH.InitiateClose)
			register.GET("/close/summary", registerH.Summary)
			register.POST("/close/confirm", registerH.ConfirmClose)
			register.POST("/close/dismiss", registerH.DismissClose)
		}

		v1.GET("/state", sessionH.State)
		v1.GET("/events", sessionH.Events)
		v1.POST("/session/logout", sessionH.Logout)
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
