package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	ValidateToken  TokenValidator
}

func NewRouter(cart *CartHandler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	if cfg.ValidateToken == nil {
		cfg.ValidateToken = MockTokenValidator
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", "X-Request-ID",
			HeaderCartID, HeaderSessionID, HeaderCustomerID, HeaderCustomerToken,
		},
		ExposedHeaders:   []string{HeaderCartID, "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.ValidateToken))
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Post("/items", cart.AddItem)
			r.Patch("/items", cart.UpdateItem)
			r.Delete("/items", cart.RemoveItem)
			r.Post("/discounts", cart.ApplyDiscount)
			r.Delete("/discounts/{rule_id}", cart.RemoveDiscount)
		})
	})

	return r
}
