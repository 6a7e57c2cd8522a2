// Package server provides the HTTP handler assembly for the Plugmart API.
// It accepts all dependencies as parameters so that both main() and tests
// can build the same handler chain without route drift.
package server

import (
	"net/http"

	"github.com/plugmart/plugmart/internal/auth"
	"github.com/plugmart/plugmart/internal/config"
	"github.com/plugmart/plugmart/internal/middleware"
	"github.com/plugmart/plugmart/internal/store"
)

// App holds all dependencies needed to build the HTTP handler.
type App struct {
	Store   store.Store
	Tokens  *auth.TokenService
	Hasher  *auth.Hasher
	Limiter *middleware.RateLimiter // nil disables rate limiting
	Config  *config.Config
}

// Handler builds and returns the complete HTTP handler with all routes
// registered and middleware applied.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	// Bind the handlers to this App's dependencies.
	h := &handlers{app: a}

	guard := middleware.RequireAuth(a.Tokens)
	limit := middleware.RateLimit(a.Limiter)

	// Health (public)
	mux.HandleFunc("GET /api/health", h.handleHealth)

	// Auth routes (public, rate limited)
	mux.Handle("POST /api/admin/login", limit(http.HandlerFunc(h.handleAdminLogin)))
	mux.Handle("POST /api/users/register", limit(http.HandlerFunc(h.handleRegister)))
	mux.Handle("POST /api/users/login", limit(http.HandlerFunc(h.handleCustomerLogin)))

	// Catalog: listing is public, mutation is guarded
	mux.HandleFunc("GET /api/plugins", h.handleListPlugins)
	mux.Handle("POST /api/plugins", guard(http.HandlerFunc(h.handleCreatePlugin)))
	mux.Handle("DELETE /api/plugins/{id}", guard(http.HandlerFunc(h.handleDeletePlugin)))

	// Feedback: submission is a public write path, listing is guarded
	mux.Handle("POST /api/feedback", limit(http.HandlerFunc(h.handleCreateFeedback)))
	mux.Handle("GET /api/feedback", guard(http.HandlerFunc(h.handleListFeedback)))

	// Orders: creation is a public write path, listing and status are guarded
	mux.Handle("POST /api/orders", limit(http.HandlerFunc(h.handleCreateOrder)))
	mux.Handle("GET /api/orders", guard(http.HandlerFunc(h.handleListOrders)))
	mux.Handle("PATCH /api/orders/{id}", guard(http.HandlerFunc(h.handleUpdateOrderStatus)))

	// Accounts and reporting (guarded)
	mux.Handle("GET /api/users", guard(http.HandlerFunc(h.handleListCustomers)))
	mux.Handle("POST /api/admin/accounts", guard(http.HandlerFunc(h.handleCreateAdmin)))
	mux.Handle("GET /api/stats", guard(http.HandlerFunc(h.handleStats)))

	// Everything else under /api is a JSON 404; this service is API-only.
	mux.HandleFunc("/api/", h.handleNotFound)
	mux.HandleFunc("/", h.handleNotFound)

	// Wrap with middleware
	return middleware.SecurityHeaders(middleware.RequestID(mux))
}
