package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/config"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/handler"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health       handler.HealthHandler
	Home         handler.HomeHandler
	Auth         handler.AuthHandler
	Accounts     handler.AccountHandler
	Customers    handler.CustomerHandler
	Fulfillments handler.FulfillmentHandler
	Stores       handler.StoreHandler
	Dashboard    handler.DashboardHandler
}

// NewRouter wires HTTP routes and middleware.
func NewRouter(cfg config.Config, logger *slog.Logger, auth *service.AuthService, cookies service.CookieCodec, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "HX-Request", "X-CSRF-Token"},
		ExposedHeaders:   []string{"HX-Redirect"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	h.Health.RegisterRoutes(r)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Group(func(sr chi.Router) {
		sr.Use(SessionMiddleware(auth, cookies))
		h.Auth.RegisterRoutes(sr)
		sr.Group(func(lr chi.Router) {
			if cfg.LoginRateLimit > 0 {
				lr.Use(httprate.LimitByIP(cfg.LoginRateLimit, time.Minute))
			}
			h.Auth.RegisterLoginRoutes(lr)
		})

		sr.Group(func(pr chi.Router) {
			pr.Use(RequireAuth)
			h.Home.RegisterRoutes(pr)
			h.Dashboard.RegisterRoutes(pr)
			h.Customers.RegisterRoutes(pr)
			h.Fulfillments.RegisterRoutes(pr)
			h.Stores.RegisterRoutes(pr)

			pr.Group(func(ar chi.Router) {
				ar.Use(RequireRole(domain.RoleAdmin))
				h.Accounts.RegisterRoutes(ar)
			})
		})
	})

	return r
}
