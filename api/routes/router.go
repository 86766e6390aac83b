package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baanhub/baanhub-backend/api/controllers"
	paymentcontrollers "github.com/baanhub/baanhub-backend/api/controllers/payments"
	webhookcontrollers "github.com/baanhub/baanhub-backend/api/controllers/webhooks"
	"github.com/baanhub/baanhub-backend/api/middleware"
	"github.com/baanhub/baanhub-backend/internal/payments"
	"github.com/baanhub/baanhub-backend/pkg/config"
	"github.com/baanhub/baanhub-backend/pkg/db"
	"github.com/baanhub/baanhub-backend/pkg/enums"
	"github.com/baanhub/baanhub-backend/pkg/logger"
	"github.com/baanhub/baanhub-backend/pkg/metrics"
	"github.com/baanhub/baanhub-backend/pkg/redis"
)

// CacheStore is the Redis surface used by the HTTP layer.
type CacheStore interface {
	redis.IdempotencyStore
	redis.Pinger
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(policy, scope, id string) string
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type signingSecretSource interface {
	SigningSecret() string
}

// RouterParams carries everything NewRouter wires into handlers.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Cache          CacheStore
	Payments       payments.Service
	Webhooks       webhookcontrollers.OmiseWebhookService
	WebhookGuard   webhookGuard
	WebhookSecrets signingSecretSource
	Metrics        *metrics.PaymentMetrics
	// Gatherer backs /metrics; nil skips the endpoint.
	Gatherer prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	chargePolicy := middleware.NewRateLimitPolicy("charges", cfg.Payments.RateLimitWindow, cfg.Payments.RateLimitPerUser, cfg.Payments.RateLimitPerIP)
	sourcePolicy := middleware.NewRateLimitPolicy("sources", cfg.Payments.RateLimitWindow, cfg.Payments.RateLimitPerUser, cfg.Payments.RateLimitPerIP)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, p.Cache, logg))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/omise", webhookcontrollers.OmiseWebhook(p.Webhooks, p.WebhookSecrets, p.WebhookGuard, p.Metrics, logg))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		if p.Cache != nil {
			r.With(
				middleware.RateLimit(chargePolicy, p.Cache, logg),
				middleware.Idempotency(p.Cache, logg),
			).Post("/charges", paymentcontrollers.CreateCharge(p.Payments, logg))
			r.With(
				middleware.RateLimit(sourcePolicy, p.Cache, logg),
				middleware.Idempotency(p.Cache, logg),
			).Post("/sources", paymentcontrollers.CreateSource(p.Payments, logg))
		} else {
			r.Post("/charges", paymentcontrollers.CreateCharge(p.Payments, logg))
			r.Post("/sources", paymentcontrollers.CreateSource(p.Payments, logg))
		}
		r.Get("/access", paymentcontrollers.AccessStatus(p.Payments, logg))
	})

	if !cfg.App.IsProd() {
		r.Route("/api/admin/v1/payments", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, string(enums.UserRoleAdmin), string(enums.UserRoleSuperAdmin)))
			r.Post("/{paymentId}/status", paymentcontrollers.OverrideStatus(p.Payments, logg))
		})
	}

	return r
}
