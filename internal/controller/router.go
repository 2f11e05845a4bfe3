package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/checkout/internal/infrastructure/config"
	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/checkout/internal/middleware"
	"github.com/cassiomorais/checkout/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	CheckoutService *service.CheckoutService
	Metrics         *observability.Metrics
	MetricsHandler  http.Handler
	ServerConfig    config.ServerConfig
	JWTSecret       string
	BackendURL      string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	checkoutH := NewCheckoutController(deps.CheckoutService)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/checkout", func(r chi.Router) {
		rl := deps.ServerConfig.RateLimit
		limited := rl.Requests > 0 && rl.Window > 0
		if limited {
			// unauthenticated floods are cut before token verification
			r.Use(customMW.RateLimit(rl.Requests*2, rl.Window))
		}
		r.Use(customMW.RequireAuth(deps.JWTSecret, deps.BackendURL))
		if limited {
			r.Use(customMW.RateLimitBySubject(rl.Requests, rl.Window))
		}

		r.Post("/sessions", checkoutH.OpenSession)
		r.Get("/sessions", checkoutH.ListSessions)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", checkoutH.GetSession)
			r.Delete("/", checkoutH.CloseSession)
			r.Post("/channel", checkoutH.SelectChannel)
			r.Post("/option", checkoutH.SelectOption)
			r.Post("/status-check", checkoutH.CheckStatus)

			r.Get("/widget", checkoutH.WidgetParams)
			r.Post("/widget/success", checkoutH.WidgetSuccess)
			r.Post("/widget/close", checkoutH.WidgetClose)

			r.Post("/confirm-retry", checkoutH.StartConfirmRetry)
			r.Post("/bank-transfer/confirm", checkoutH.ConfirmBankTransfer)

			r.Get("/instruments", checkoutH.ListInstruments)
			r.Post("/instruments/select", checkoutH.SelectInstrument)
			r.Post("/instruments/pay", checkoutH.PayWithInstrument)
			r.Delete("/instruments/{instrumentID}", checkoutH.RemoveInstrument)
		})
	})

	return r
}
