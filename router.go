package main

import (
	"context"
	"net/http"
	"time"

	analytics_api "ms-topup/internal/analytics/api"
	"ms-topup/internal/config"
	"ms-topup/internal/logger"
	"ms-topup/internal/metrics"
	"ms-topup/internal/order/order_api"
	"ms-topup/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func newRouter(cfg *config.Config, h *order_api.Handler, ah *analytics_api.Handler, requireAuth func(http.Handler) http.Handler, db pinger, m *metrics.Metrics, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(order_api.RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(db))
	r.Handle("/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		h.Routes(r, requireAuth)
		if ah != nil {
			ah.RegisterRoutes(r, requireAuth)
		}
	})
	log.Info("ROUTER", "Order routes registered under /api/orders")
	return r
}

func healthHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			_ = utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("DATABASE_UNAVAILABLE", "database is unreachable"))
			return
		}
		_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	}
}
