package handler

import (
	"net/http"
	"time"

	"github.com/msomdec/trackitnow/internal/metrics"
	"github.com/msomdec/trackitnow/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, auth *service.AuthService, ledger *service.LedgerService, notify *service.NotificationService, limiter *service.RateLimiter, cookieSecure bool) {
	pages := NewPageHandler(auth, ledger, notify, cookieSecure)
	authAPI := NewAuthHandler(auth, notify, cookieSecure)
	ordersAPI := NewOrderHandler(ledger, notify)

	page := func(h http.HandlerFunc) http.Handler { return RequirePageAuth(auth, h) }
	api := func(h http.HandlerFunc) http.Handler { return RequireAuth(auth, h) }
	limited := func(h http.HandlerFunc) http.Handler { return RateLimit(limiter, h) }

	mux.HandleFunc("GET /healthz", HandleHealthz(time.Now()))
	mux.Handle("GET /metrics", metrics.Handler())

	// Pages.
	mux.Handle("GET /{$}", OptionalAuth(auth, http.HandlerFunc(pages.HandleLoginPage)))
	mux.Handle("POST /login", limited(pages.HandleLogin))
	mux.HandleFunc("GET /signup", pages.HandleSignupPage)
	mux.Handle("POST /signup", limited(pages.HandleSignup))
	mux.HandleFunc("POST /logout", pages.HandleLogout)
	mux.Handle("GET /track", page(pages.HandleTrack))
	mux.Handle("GET /ship", page(pages.HandleShip))
	mux.Handle("POST /orders", page(pages.HandlePlaceOrder))
	mux.Handle("GET /orders", page(pages.HandleOrders))
	mux.Handle("GET /order-success", page(pages.HandleOrderSuccess))
	mux.Handle("POST /orders/{index}/delete", page(pages.HandleDeleteOrder))

	// JSON API.
	mux.Handle("POST /api/auth/register", limited(authAPI.HandleRegister))
	mux.Handle("POST /api/auth/login", limited(authAPI.HandleLogin))
	mux.HandleFunc("POST /api/auth/logout", authAPI.HandleLogout)
	mux.Handle("GET /api/auth/me", api(authAPI.HandleMe))
	mux.Handle("GET /api/orders", api(ordersAPI.HandleList))
	mux.Handle("POST /api/orders", api(ordersAPI.HandleCreate))
	mux.Handle("DELETE /api/orders/{index}", api(ordersAPI.HandleDelete))
}
