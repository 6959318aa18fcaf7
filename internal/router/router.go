package router

import (
	"time"

	"github.com/Skarath13/cards/internal/bizdate"
	"github.com/Skarath13/cards/internal/config"
	"github.com/Skarath13/cards/internal/grid"
	"github.com/Skarath13/cards/internal/handler"
	"github.com/Skarath13/cards/internal/infra"
	"github.com/Skarath13/cards/internal/middleware"
	"github.com/Skarath13/cards/internal/repository"
	"github.com/Skarath13/cards/internal/service"
	"github.com/Skarath13/cards/internal/session"
	"github.com/Skarath13/cards/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the infrastructure pieces built by the composition root.
// Redis, Reports, Dispatcher and Sink may be nil.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Sessions   *session.Manager
	Calendar   *bizdate.Calendar
	Breaker    *infra.CircuitBreaker
	Reports    infra.ReportStore
	Dispatcher *worker.Dispatcher
	Sink       grid.FailureSink
}

// Services is the service layer shared by the HTTP API and the job workers.
type Services struct {
	Auth   service.AuthService
	Ledger service.LedgerService
	Reset  service.ResetService
}

// NewServices wires repositories into services.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func NewServices(d Deps) *Services {
	cfg := d.Config

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(d.DB)
	txRepo := repository.NewTransactionRepository(d.DB)
	archiveRepo := repository.NewArchiveRepository(d.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	opts := grid.Options{
		MinRows:     cfg.LedgerMinRows,
		Debounce:    cfg.PersistDebounce(),
		MaxAttempts: cfg.PersistMaxAttempts,
		Sink:        d.Sink,
		OnPersist:   infra.ObserveLedgerWrite,
	}
	if d.Breaker != nil {
		opts.Breaker = d.Breaker
	}
	ledgerSvc := service.NewLedgerService(txRepo, d.Calendar, opts)

	resetDeps := service.ResetDeps{
		Archive:  archiveRepo,
		Users:    userRepo,
		Ledger:   ledgerSvc,
		Calendar: d.Calendar,
		Reports:  d.Reports,
	}
	if d.Dispatcher != nil && cfg.SMTPEnabled() {
		resetDeps.Mail = d.Dispatcher
		resetDeps.ReportEmail = cfg.ReportEmail
	}

	return &Services{
		Auth:   service.NewAuthService(userRepo, d.Sessions, cfg),
		Ledger: ledgerSvc,
		Reset:  service.NewResetService(resetDeps),
	}
}

// New returns a configured Gin engine serving svcs.
func New(d Deps, svcs *Services) *gin.Engine {
	cfg := d.Config
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(infra.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svcs.Auth)
	usersH := handler.NewUsersHandler(svcs.Auth)
	ledgerH := handler.NewLedgerHandler(svcs.Ledger)
	resetH := handler.NewResetHandler(svcs.Reset)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.NewHealthHandler(d.DB, d.Redis, d.Calendar).Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/v1/services", handler.Services)

	auth := r.Group("/v1/auth")
	{
		auth.POST("/pin", middleware.PinRateLimiter(), authH.PinLogin)
	}

	cron := r.Group("/v1/cron", middleware.CronAuth(cfg.CronSecret))
	{
		cron.POST("/reset-daily", resetH.ResetDaily)
		cron.GET("/reset-daily", resetH.ResetDaily)
	}

	// Device session routes
	v1 := r.Group("/v1", middleware.SessionAuth(cfg.JWTSecret, d.Sessions))
	{
		v1.POST("/auth/logout", authH.Logout)
		v1.POST("/auth/reset-pin", authH.ResetPIN)
		v1.GET("/auth/me", authH.Me)

		ledger := v1.Group("/ledger/:payment_type")
		{
			ledger.GET("", ledgerH.View)
			ledger.GET("/totals", ledgerH.Totals)
			ledger.POST("/flush", ledgerH.Flush)
			ledger.POST("/rows", ledgerH.AddRow)
			ledger.DELETE("/rows", ledgerH.RemoveRow)
			ledger.PATCH("/rows/:entry", ledgerH.EditCell)
			ledger.POST("/rows/:entry/delete", ledgerH.RequestDelete)
			ledger.POST("/delete/confirm", ledgerH.ConfirmDelete)
			ledger.DELETE("/delete", ledgerH.CancelDelete)
		}

		users := v1.Group("/users", middleware.RequireRole(service.RoleAdmin, service.RoleManager))
		{
			users.POST("", usersH.Create)
			users.GET("", usersH.List)
		}
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
