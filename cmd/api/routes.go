package main

import (
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"delivery-dispatch/internal/allocation"
	"delivery-dispatch/internal/audit"
	"delivery-dispatch/internal/auth"
	"delivery-dispatch/internal/calls"
	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/httpapi"
	"delivery-dispatch/internal/reporting"
	"delivery-dispatch/internal/telephony"
	"delivery-dispatch/internal/workers"
	"delivery-dispatch/pkg/logger"
	"delivery-dispatch/pkg/metrics"
	"delivery-dispatch/pkg/security"
)

type dependencies struct {
	cfg      config.Config
	log      *slog.Logger
	db       *sql.DB
	rdb      *redis.Client
	tokens   *auth.Manager
	metrics  *metrics.Allocation
	gatherer prometheus.Gatherer
}

// newRouter wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func newRouter(d dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(d.log))
	r.Use(cors.New(corsConfig(d.cfg.App.AllowedOrigins)))

	workerRepo := workers.NewPostgresRepo(d.db)
	callRepo := calls.NewPostgresRepo(d.db)
	orderIDs := calls.NewOrderIDGenerator()
	revoker := auth.NewRedisRevoker(d.rdb)

	// public
	r.GET("/", httpapi.Home)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))
	r.NoRoute(httpapi.NotFound)

	// Provider webhook (public, optionally signature-checked).
	{
		engine := allocation.NewEngine(
			allocation.NewPostgresStore(d.db),
			allocation.Egress{
				Enabled:  d.cfg.Twilio.EgressConfigured(),
				CallerID: d.cfg.Twilio.PhoneNumber,
			},
			allocation.Options{
				MaxClaimAttempts: d.cfg.Allocation.MaxAttempts,
				OrderIDs:         orderIDs,
				Metrics:          d.metrics,
			},
		)
		h := telephony.TwilioWebhookHandler{Allocator: engine}

		chain := []gin.HandlerFunc{telephony.RecoverWithTwiML()}
		if d.cfg.Twilio.ValidateSignature {
			chain = append(chain, telephony.RequireTwilioSignature(d.cfg.Twilio.AuthToken, d.cfg.Twilio.PublicBaseURL))
		}
		chain = append(chain, h.HandleInboundCall)
		r.POST("/api/allocate-delivery", chain...)
	}

	// worker account API
	api := &httpapi.Handlers{
		Workers:   workerRepo,
		Calls:     callRepo,
		Tokens:    d.tokens,
		Revoker:   revoker,
		Limiter:   httpapi.NewRedisLoginLimiter(d.rdb, d.cfg.RateLimit.LoginLimit, d.cfg.RateLimit.LoginWindow),
		Passwords: security.NewHasher(0),
		Audit:     audit.NewService(audit.NewPostgresRepo(d.db)),
		Reports:   reporting.NewService(callRepo),
		OrderIDs:  orderIDs,
		Version:   d.cfg.App.Version,
	}
	api.Mount(r, auth.RequireAccessToken(d.tokens, revoker), auth.OptionalAccessToken(d.tokens, revoker))

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	cleaned := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	if len(cleaned) == 0 || (len(cleaned) == 1 && cleaned[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = cleaned
	return c
}
