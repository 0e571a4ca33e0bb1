// internal/router/router.go
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"scan2pay-service/config"
	"scan2pay-service/internal/handler"
	"scan2pay-service/pkg/security"
)

// Pinger reports whether the ledger store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Payments *handler.PaymentHandler
	Callback *handler.CallbackHandler
	Vendors  *handler.VendorHandler
}

func SetupRoutes(
	h Handlers,
	tokens *security.TokenManager,
	health Pinger,
	cfg config.ServerConfig,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(middleware.Recoverer)
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r.Use(middleware.Timeout(timeout))

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/api/v1/payments/health", healthHandler(health))
	r.Handle("/metrics", promhttp.Handler())

	// Some gateway registrations still point at the legacy callback path.
	r.Post("/mpesa/callback", h.Callback.HandleMpesaSTKCallback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/vendors", func(r chi.Router) {
			r.Post("/register", h.Vendors.HandleRegister)
			r.Post("/login", h.Vendors.HandleLogin)
			r.With(AuthMiddleware(tokens)).Get("/me", h.Vendors.HandleProfile)
		})

		// Customer-facing: the account number identifies the vendor.
		r.Post("/payments", h.Payments.HandleCreatePayment)

		r.Route("/callbacks/mpesa", func(r chi.Router) {
			r.Post("/stk", h.Callback.HandleMpesaSTKCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokens))
			r.Post("/withdrawals", h.Payments.HandleWithdraw)
			r.Get("/transactions", h.Payments.HandleLedger)
			r.Get("/statements", h.Payments.HandleStatement)
		})
	})

	return r
}

func healthHandler(health Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := health.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNAVAILABLE"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
