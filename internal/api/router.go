// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cartographus/internal/auth"
)

// Gateway is the subset of internal/gateway.Gateway the router mounts
// directly: the /ws upgrade handler.
type Gateway interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Router wires the handler and middleware into the chi surface this
// domain needs: /ws, /api/ping, a health check, and /metrics.
type Router struct {
	handler       *Handler
	gateway       Gateway
	authMW        *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter constructs a Router.
func NewRouter(handler *Handler, gateway Gateway, authMW *auth.Middleware, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, gateway: gateway, authMW: authMW, chiMiddleware: chiMW}
}

func chiMiddlewareAdapter(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup builds the chi mux: global request-id/recoverer/CORS/security
// headers, then the health, /ws, /api/ping, and /metrics routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(chiMiddlewareAdapter(router.authMW.SecurityHeaders))

	r.Get("/healthz", router.handler.Health)
	r.Get("/ws", router.gateway.ServeWS)

	r.Route("/api/ping", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Post("/", router.handler.Ping)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
