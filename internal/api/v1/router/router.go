package router

import (
	"net/http"
	"strings"
	"time"

	"studybuddy/internal/api/v1/handler"
	"studybuddy/internal/config"
	"studybuddy/internal/metrics"
	"studybuddy/internal/middleware"
	"studybuddy/internal/repository"
	"studybuddy/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Services is the business layer the router exposes.
type Services struct {
	Sessions     service.SessionService
	Subscription service.SubscriptionService
	Usage        service.UsageService
	Upgrade      service.UpgradeService
	Expiry       service.ExpiryService
	Stats        service.StatsService
	DeadLetters  service.DeadLetterService
}

// NewServices wires repositories over pool into the entitlement services.
func NewServices(pool *pgxpool.Pool, events service.EventPublisher, m *metrics.EntitlementMetrics, logger zerolog.Logger) Services {
	now := service.Clock(time.Now)

	subRepo := repository.NewSubscriptionRepo(pool)
	studentRepo := repository.NewStudentRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	requestRepo := repository.NewUpgradeRequestRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	statsRepo := repository.NewStatsRepo(pool)

	subSvc := service.NewSubscriptionService(subRepo, studentRepo, usageRepo, requestRepo, m, now, logger)
	return Services{
		Sessions:     service.NewSessionService(sessionRepo, studentRepo, now, logger),
		Subscription: subSvc,
		Usage:        service.NewUsageService(usageRepo, subSvc, m, now, logger),
		Upgrade:      service.NewUpgradeService(requestRepo, studentRepo, subRepo, subSvc, events, m, now, logger),
		Expiry:       service.NewExpiryService(subRepo, events, m, now, logger),
		Stats:        service.NewStatsService(statsRepo, studentRepo, logger),
		DeadLetters:  service.NewDeadLetterService(repository.NewDeadLetterRepo(pool), m, logger),
	}
}

// New builds the HTTP handler: /v1 API, /health and /metrics, wrapped in
// CORS and request logging.
func New(cfg *config.Config, svcs Services, gatherer prometheus.Gatherer, logger zerolog.Logger) http.Handler {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initialized")

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentHandler := handler.NewStudentHandler(svcs.Subscription, svcs.Usage, svcs.Upgrade, validate, logger)
	institutionHandler := handler.NewInstitutionHandler(svcs.Sessions, svcs.Upgrade, validate, logger)
	adminHandler := handler.NewAdminHandler(svcs.Sessions, svcs.Stats, svcs.Expiry, validate, logger)
	eventsHandler := handler.NewEventsHandler(svcs.DeadLetters, validate, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	cronMiddleware := middleware.CronSecretMiddleware(cfg.CronSecret, logger)
	pushMiddleware := middleware.PubSubAuthMiddleware(cfg.Environment == "development",
		cfg.PubSubPushAudience, cfg.PubSubPushServiceAccount, logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		studentHandler.RegisterRoutes(r, authMiddleware)
		institutionHandler.RegisterRoutes(r)
		adminHandler.RegisterRoutes(r, cronMiddleware)
		eventsHandler.RegisterRoutes(r, pushMiddleware)
	})

	// Redirect /api/* to /v1/* for older clients
	r.HandleFunc("/api/*", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusPermanentRedirect)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(r))
}
