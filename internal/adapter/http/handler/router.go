package handler

import (
	"sendit-ledger/internal/adapter/http/middleware"
	"sendit-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	Updates        UpdateHandler      // nil = Telegram webhook disabled
	WebhookPath    string             // e.g. "/webhook"
	WebhookSecret  string             // empty = Telegram webhook disabled
	RateLimiter    ports.RateLimiter  // nil = rate limiting disabled
	AuditSvc       ports.AuditService // nil = audit logging disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(IndexTemplate())

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if a limiter is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	ledger := NewLedgerHandler(deps.LedgerSvc, deps.Logger)

	// Web form routes
	r.GET("/", Index)
	r.POST("/balance", rl("balance"), ledger.Balance)
	r.POST("/send_money", rl("transfers"), ledger.Transfer)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/balance", rl("balance"), ledger.Balance)
		v1.POST("/transfers", rl("transfers"), ledger.Transfer)
		v1.GET("/accounts/:username/transfers", rl("history"), ledger.History)
	}

	if deps.Updates != nil && deps.WebhookPath != "" && deps.WebhookSecret != "" {
		r.POST(deps.WebhookPath, rl("webhook"), TelegramWebhook(deps.Updates, deps.WebhookSecret, deps.Logger))
	}

	return r
}
