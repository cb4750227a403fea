// Package api assembles the HTTP surface: routes, middleware chain, and the
// handlers behind them.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gatherline/server/internal/api/handlers"
	"github.com/gatherline/server/internal/api/middleware"
	"github.com/gatherline/server/internal/auth"
	"github.com/gatherline/server/internal/config"
	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/domain/registrations"
	"github.com/gatherline/server/internal/domain/users"
	"github.com/gatherline/server/internal/metrics"
	"github.com/gatherline/server/internal/uploads"
)

// Dependencies carries everything the router needs. The caller owns the
// lifecycle of each item.
type Dependencies struct {
	Config     config.Config
	Logger     zerolog.Logger
	Users      users.Repository
	Events     events.Repository
	Regs       registrations.Repository
	Tokens     *auth.JWTManager
	Images     *uploads.Store
	Mailer     registrations.ConfirmationSender
	Reconciler registrations.Reconciler
	DB         handlers.Pinger
	Version    string
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config

	usersService := users.NewService(deps.Users, deps.Tokens, deps.Logger)
	eventsService := events.NewService(deps.Events, deps.Images, deps.Logger)
	registrationsService := registrations.NewService(deps.Regs, deps.Events, deps.Reconciler, deps.Mailer, deps.Logger)

	authHandler := handlers.NewAuthHandler(usersService, cfg.Environment)
	eventsHandler := handlers.NewEventsHandler(eventsService, deps.Images, cfg.Environment)
	registrationsHandler := handlers.NewRegistrationsHandler(registrationsService, cfg.Environment)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Version)

	requireAuth := middleware.RequireAuth(deps.Tokens, cfg.Environment)
	rateLimit := middleware.RateLimit(cfg.RateLimit)
	loginTier := middleware.WithRateLimitTierHandler(middleware.TierLogin)
	jsonBody := middleware.PublicRequestSize()
	uploadBody := middleware.UploadRequestSize()

	// The tier wrapper must sit outside the limiter so the tier is on the
	// context before the bucket is chosen.
	limited := func(h http.Handler) http.Handler { return rateLimit(h) }
	loginLimited := func(h http.Handler) http.Handler { return loginTier(rateLimit(h)) }

	mux := http.NewServeMux()

	mux.Handle("/healthz", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(healthHandler.Healthz),
	}))
	mux.Handle("/readyz", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(healthHandler.Readyz),
	}))
	mux.Handle("/metrics", metrics.Handler())

	mux.Handle("/auth/register", methodMux(map[string]http.Handler{
		http.MethodPost: limited(jsonBody(http.HandlerFunc(authHandler.Register))),
	}))
	mux.Handle("/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: loginLimited(jsonBody(http.HandlerFunc(authHandler.Login))),
	}))
	mux.Handle("/auth/protected", methodMux(map[string]http.Handler{
		http.MethodGet: limited(requireAuth(http.HandlerFunc(authHandler.Protected))),
	}))

	mux.Handle("/api/v1/events", methodMux(map[string]http.Handler{
		http.MethodGet:  limited(http.HandlerFunc(eventsHandler.List)),
		http.MethodPost: limited(requireAuth(uploadBody(http.HandlerFunc(eventsHandler.Create)))),
	}))
	mux.Handle("/api/v1/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    limited(http.HandlerFunc(eventsHandler.Get)),
		http.MethodPut:    limited(uploadBody(http.HandlerFunc(eventsHandler.Update))),
		http.MethodDelete: limited(http.HandlerFunc(eventsHandler.Delete)),
	}))

	mux.Handle("/api/v1/registrations", methodMux(map[string]http.Handler{
		http.MethodGet:  limited(http.HandlerFunc(registrationsHandler.List)),
		http.MethodPost: limited(jsonBody(http.HandlerFunc(registrationsHandler.Create))),
	}))
	mux.Handle("/api/v1/registrations/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    limited(http.HandlerFunc(registrationsHandler.Get)),
		http.MethodPut:    limited(jsonBody(http.HandlerFunc(registrationsHandler.Update))),
		http.MethodDelete: limited(http.HandlerFunc(registrationsHandler.Delete)),
	}))

	if deps.Images != nil {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.Images.Dir()))))
	}

	var handler http.Handler = mux
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
