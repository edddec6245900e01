package router

import (
	"context"
	"net/http"
	"time"

	"github.com/antonminaichev/linkcard/internal/logger"
	"github.com/antonminaichev/linkcard/internal/middleware"
	"github.com/antonminaichev/linkcard/internal/order"
	"github.com/antonminaichev/linkcard/internal/rbac"
	"github.com/antonminaichev/linkcard/internal/session"
	"github.com/antonminaichev/linkcard/internal/verification"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(
	sessionH *session.Handler,
	orderH *order.Handler,
	verificationH *verification.Handler,
	sessions middleware.SessionValidator,
	health ...Pinger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(logger.WithLogging)
	r.Use(chiMiddleware.Recoverer)

	r.Use(middleware.GzipHandler)

	r.Get("/health", healthHandler(health))

	r.Post("/admin-login", sessionH.Login)
	r.Delete("/admin-login", sessionH.Logout)

	r.Post("/send-mobile-otp", verificationH.SendOTP)
	r.Post("/verify-mobile-otp", verificationH.VerifyOTP)
	r.Post("/bypass-mobile-verification", verificationH.Bypass)
	r.Get("/mobile-verification", verificationH.Status)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Session(sessions))

		r.Get("/me", sessionH.Me)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdminAccess)

			r.With(middleware.RequirePermission(rbac.ViewOrders)).Get("/orders", orderH.ListOrders)
			r.With(middleware.RequirePermission(rbac.CreateOrders)).Post("/orders", orderH.CreateOrder)
			r.With(middleware.RequirePermission(rbac.UpdateOrders)).Patch("/orders/{id}/status", orderH.UpdateStatus)
			r.With(middleware.RequirePermission(rbac.SendEmails)).Post("/orders/{id}/resend-email", orderH.ResendEmail)
		})
	})

	return r
}

func healthHandler(deps []Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, d := range deps {
			if err := d.Ping(ctx); err != nil {
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
