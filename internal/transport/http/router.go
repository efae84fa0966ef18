package http

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gymbuddy-notify/internal/config"
	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/observability/metrics"
	"github.com/gymbuddy-notify/internal/transport/http/handler"
	appmiddleware "github.com/gymbuddy-notify/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// lifetime of background helpers such as the rate limiter sweeper.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(appmiddleware.AccessLog(accessLogger(deps.AccessLog)))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Without a verifier both reject every request with 401.
	authMw := appmiddleware.Auth(deps.Verifier)
	streamAuthMw := appmiddleware.StreamAuth(deps.Verifier)

	// 20 requests/second, burst of 40, per client IP on event ingestion.
	eventsRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(20), 40)

	healthH := handler.NewHealthHandler()
	notifH := handler.NewNotificationHandler(deps.Notifications)
	deviceH := handler.NewDeviceHandler(deps.Push)
	prefH := handler.NewPreferenceHandler(deps.Preferences)
	eventH := handler.NewEventHandler(deps.Notifications)
	streamH := handler.NewStreamHandler(deps.Hub)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.With(streamAuthMw).Get("/notifications/stream", streamH.Stream)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/counts", notifH.Counts)
			r.Put("/notifications/read-all", notifH.MarkAllAsRead)
			r.Put("/notifications/seen-all", notifH.MarkAllAsSeen)
			r.Get("/notifications/{id}", notifH.Get)
			r.Put("/notifications/{id}/read", notifH.MarkAsRead)
			r.Put("/notifications/{id}/seen", notifH.MarkAsSeen)

			r.Get("/devices/tokens", deviceH.ListTokens)
			r.Post("/devices/tokens", deviceH.RegisterToken)
			r.Delete("/devices/tokens", deviceH.UnregisterToken)

			r.Get("/preferences", prefH.Get)
			r.Patch("/preferences", prefH.Update)

			// Event ingestion and diagnostics for trusted callers
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleService))

				r.With(eventsRL.Limit).Post("/events", eventH.Trigger)
				r.With(eventsRL.Limit).Post("/events/bulk", eventH.TriggerBulk)
				r.Get("/notifications/{id}/deliveries", notifH.DeliveryLogs)
			})
		})
	})

	return r
}

func accessLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	return log.New(w, "", log.LstdFlags)
}
