package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/allergyscan/api/controllers"
	"github.com/angelmondragon/allergyscan/api/middleware"
	"github.com/angelmondragon/allergyscan/pkg/config"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

// RedisStore is the subset of the redis client the request pipeline uses for rate
// limiting and idempotency.
type RedisStore interface {
	middleware.IdempotencyStore
	middleware.RateLimitStore
}

// Deps are the collaborators the HTTP surface needs. Redis and Gatherer are optional.
type Deps struct {
	Sessions middleware.SessionSource
	Redis    RedisStore
	Gatherer prometheus.Gatherer
	Checks   map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Checks))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	var idempotencyStore middleware.IdempotencyStore
	var rateStore middleware.RateLimitStore
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		rateStore = deps.Redis
	}

	scanPolicy := middleware.NewRateLimitPolicy(
		"scan",
		cfg.RateLimit.ScanWindow,
		cfg.RateLimit.ScanIPLimit,
		cfg.RateLimit.ScanDeviceLimit,
	)

	idempotent := middleware.Idempotency(idempotencyStore, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Use(middleware.Device(deps.Sessions, logg))

		r.With(middleware.RateLimit(scanPolicy, rateStore, logg), idempotent).Post("/scans", controllers.SubmitScan(logg))
		r.Route("/scans/history", func(r chi.Router) {
			r.Get("/", controllers.ScanHistory(logg))
			r.Delete("/", controllers.ClearScanHistory(logg))
			r.With(idempotent).Post("/restore", controllers.RestoreScanHistory(logg))
			r.Get("/{scanId}/highlight", controllers.ScanHighlight(logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(logg))
			r.Post("/seen", controllers.MarkNotificationsSeen(logg))
			r.Delete("/", controllers.ClearNotifications(logg))
		})

		r.Get("/goals/today", controllers.TodayGoal(logg))

		r.Get("/profile/allergies", controllers.GetAllergyProfile(logg))
		r.With(idempotent).Put("/profile/allergies", controllers.PutAllergyProfile(logg))

		r.Route("/pipeline", func(r chi.Router) {
			r.Get("/state", controllers.PipelineState(logg))
			r.Post("/dismiss", controllers.DismissPipeline(logg))
			r.Post("/acknowledge", controllers.AcknowledgePipeline(logg))
		})
	})

	return r
}
